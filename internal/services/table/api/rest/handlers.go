package rest

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/seralith/wartable/internal/battlemap"
	"github.com/seralith/wartable/internal/grant"
	apperrors "github.com/seralith/wartable/internal/platform/errors"
	"github.com/seralith/wartable/internal/platform/requestctx"
	"github.com/seralith/wartable/internal/services/table/api/ws"
	"github.com/seralith/wartable/internal/services/table/app"
)

var tracer = otel.Tracer("github.com/seralith/wartable/internal/services/table/api/rest")

// API routes authority operations over HTTP.
type API struct {
	service  *app.Service
	hub      *ws.Hub
	verifier grant.Verifier
	upgrader websocket.Upgrader
}

// New wires the REST API.
func New(service *app.Service, hub *ws.Hub, verifier grant.Verifier) *API {
	return &API{
		service:  service,
		hub:      hub,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			// Grants authenticate requests; origins are not restricted.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the routed HTTP handler.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(http.MethodGet+" /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	route := func(pattern string, handler http.HandlerFunc) {
		mux.HandleFunc(pattern, a.withGrant(a.traced(pattern, handler)))
	}

	route(http.MethodGet+" /api/v1/maps/{campaignID}", a.handleSnapshot)
	route(http.MethodDelete+" /api/v1/maps/{campaignID}", a.handleClearMap)

	route(http.MethodPut+" /api/v1/maps/{campaignID}/strokes", a.handleAddStroke)
	route(http.MethodDelete+" /api/v1/maps/{campaignID}/strokes", a.handleClearStrokes)
	route(http.MethodDelete+" /api/v1/maps/{campaignID}/strokes/{strokeID}", a.handleDeleteStroke)

	route(http.MethodPost+" /api/v1/maps/{campaignID}/tokens", a.handleAddToken)
	route(http.MethodPatch+" /api/v1/maps/{campaignID}/tokens/{tokenID}", a.handleUpdateToken)
	route(http.MethodDelete+" /api/v1/maps/{campaignID}/tokens/{tokenID}", a.handleDeleteToken)

	route(http.MethodPost+" /api/v1/maps/{campaignID}/shapes", a.handleAddShape)
	route(http.MethodPatch+" /api/v1/maps/{campaignID}/shapes/{shapeID}", a.handleUpdateShape)
	route(http.MethodDelete+" /api/v1/maps/{campaignID}/shapes/{shapeID}", a.handleDeleteShape)

	route(http.MethodPatch+" /api/v1/maps/{campaignID}/background", a.handleUpdateBackground)
	route(http.MethodDelete+" /api/v1/maps/{campaignID}/background", a.handleClearBackground)

	route(http.MethodPatch+" /api/v1/maps/{campaignID}/settings", a.handleUpdateSettings)

	route(http.MethodPost+" /api/v1/maps/{campaignID}/combat/start", a.handleStartCombat)
	route(http.MethodPost+" /api/v1/maps/{campaignID}/combat/advance", a.handleAdvanceTurn)
	route(http.MethodPost+" /api/v1/maps/{campaignID}/combat/end", a.handleEndCombat)

	route(http.MethodGet+" /api/v1/maps/{campaignID}/log", a.handleListLog)
	route(http.MethodPost+" /api/v1/maps/{campaignID}/log", a.handleAppendLog)
	mux.HandleFunc(http.MethodGet+" /api/v1/maps/{campaignID}/log/stream", a.withGrant(a.handleLogStream))

	route(http.MethodGet+" /api/v1/maps/{campaignID}/library", a.handleListLibrary)
	route(http.MethodPost+" /api/v1/maps/{campaignID}/library", a.handleSaveLibrary)
	route(http.MethodPost+" /api/v1/maps/{campaignID}/library/{entryID}/load", a.handleLoadLibrary)
	route(http.MethodDelete+" /api/v1/maps/{campaignID}/library/{entryID}", a.handleDeleteLibrary)

	return mux
}

// traced opens a span per request named by its route pattern.
func (a *API) traced(pattern string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), pattern,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("campaign.id", r.PathValue("campaignID"))),
		)
		defer span.End()
		handler(w, r.WithContext(ctx))
	}
}

func (a *API) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	doc, err := a.service.Snapshot(r.Context(), r.PathValue("campaignID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (a *API) handleClearMap(w http.ResponseWriter, r *http.Request) {
	if err := a.service.ClearMap(r.Context(), r.PathValue("campaignID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleAddStroke(w http.ResponseWriter, r *http.Request) {
	var stroke battlemap.Stroke
	if !decodeBody(w, r, &stroke) {
		return
	}
	stored, err := a.service.AddStroke(r.Context(), r.PathValue("campaignID"), stroke)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

func (a *API) handleClearStrokes(w http.ResponseWriter, r *http.Request) {
	if err := a.service.ClearStrokes(r.Context(), r.PathValue("campaignID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleDeleteStroke(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteStroke(r.Context(), r.PathValue("campaignID"), r.PathValue("strokeID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleAddToken(w http.ResponseWriter, r *http.Request) {
	var token battlemap.Token
	if !decodeBody(w, r, &token) {
		return
	}
	stored, err := a.service.AddToken(r.Context(), r.PathValue("campaignID"), token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

func (a *API) handleUpdateToken(w http.ResponseWriter, r *http.Request) {
	var patch battlemap.TokenPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	stored, err := a.service.UpdateToken(r.Context(), r.PathValue("campaignID"), r.PathValue("tokenID"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

func (a *API) handleDeleteToken(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteToken(r.Context(), r.PathValue("campaignID"), r.PathValue("tokenID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleAddShape(w http.ResponseWriter, r *http.Request) {
	var shape battlemap.Shape
	if !decodeBody(w, r, &shape) {
		return
	}
	stored, err := a.service.AddShape(r.Context(), r.PathValue("campaignID"), shape)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

func (a *API) handleUpdateShape(w http.ResponseWriter, r *http.Request) {
	var patch battlemap.ShapePatch
	if !decodeBody(w, r, &patch) {
		return
	}
	stored, err := a.service.UpdateShape(r.Context(), r.PathValue("campaignID"), r.PathValue("shapeID"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

func (a *API) handleDeleteShape(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteShape(r.Context(), r.PathValue("campaignID"), r.PathValue("shapeID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleUpdateBackground(w http.ResponseWriter, r *http.Request) {
	var patch battlemap.BackgroundPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	stored, err := a.service.UpdateBackground(r.Context(), r.PathValue("campaignID"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

func (a *API) handleClearBackground(w http.ResponseWriter, r *http.Request) {
	if err := a.service.ClearBackground(r.Context(), r.PathValue("campaignID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch battlemap.SettingsPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	doc, err := a.service.UpdateSettings(r.Context(), r.PathValue("campaignID"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type startCombatRequest struct {
	Order []string `json:"order"`
	Round int      `json:"round"`
	Turn  int      `json:"turn"`
}

func (a *API) handleStartCombat(w http.ResponseWriter, r *http.Request) {
	var req startCombatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	combat, err := a.service.StartCombat(r.Context(), r.PathValue("campaignID"), req.Order, req.Round, req.Turn)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, combat)
}

func (a *API) handleAdvanceTurn(w http.ResponseWriter, r *http.Request) {
	combat, err := a.service.AdvanceTurn(r.Context(), r.PathValue("campaignID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, combat)
}

func (a *API) handleEndCombat(w http.ResponseWriter, r *http.Request) {
	combat, err := a.service.EndCombat(r.Context(), r.PathValue("campaignID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, combat)
}

func (a *API) handleListLog(w http.ResponseWriter, r *http.Request) {
	entries, err := a.service.Log(r.Context(), r.PathValue("campaignID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []battlemap.BattleLogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *API) handleAppendLog(w http.ResponseWriter, r *http.Request) {
	var entry battlemap.BattleLogEntry
	if !decodeBody(w, r, &entry) {
		return
	}
	stored, err := a.service.AppendLog(r.Context(), r.PathValue("campaignID"), entry)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

func (a *API) handleLogStream(w http.ResponseWriter, r *http.Request) {
	campaignID := r.PathValue("campaignID")
	// Same visibility rule as the log listing.
	if p, _ := requestctx.PrincipalFromContext(r.Context()); !p.GM {
		writeError(w, r, apperrors.New(apperrors.CodeGrantForbidden, "battle log stream requires the gm role"))
		return
	}
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	unsubscribe := a.hub.Subscribe(campaignID, conn)

	// Reads are only consumed to detect disconnects.
	go func() {
		defer unsubscribe()
		defer func() { _ = conn.Close() }()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Printf("rest: log stream closed for %s: %v", campaignID, err)
				}
				return
			}
		}
	}()
}

type saveLibraryRequest struct {
	Name string `json:"name"`
}

type libraryEntryResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

func (a *API) handleListLibrary(w http.ResponseWriter, r *http.Request) {
	entries, err := a.service.ListLibrary(r.Context(), r.PathValue("campaignID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]libraryEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, libraryEntryResponse{
			ID:        entry.ID,
			Name:      entry.Name,
			CreatedAt: entry.CreatedAt.UnixMilli(),
			UpdatedAt: entry.UpdatedAt.UnixMilli(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleSaveLibrary(w http.ResponseWriter, r *http.Request) {
	var req saveLibraryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	entry, err := a.service.SaveToLibrary(r.Context(), r.PathValue("campaignID"), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, libraryEntryResponse{
		ID:        entry.ID,
		Name:      entry.Name,
		CreatedAt: entry.CreatedAt.UnixMilli(),
		UpdatedAt: entry.UpdatedAt.UnixMilli(),
	})
}

func (a *API) handleLoadLibrary(w http.ResponseWriter, r *http.Request) {
	doc, err := a.service.LoadFromLibrary(r.Context(), r.PathValue("campaignID"), r.PathValue("entryID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (a *API) handleDeleteLibrary(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteFromLibrary(r.Context(), r.PathValue("campaignID"), r.PathValue("entryID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
