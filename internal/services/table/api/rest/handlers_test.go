package rest

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/seralith/wartable/internal/battlemap"
	"github.com/seralith/wartable/internal/geo"
	"github.com/seralith/wartable/internal/grant"
	"github.com/seralith/wartable/internal/services/table/api/ws"
	"github.com/seralith/wartable/internal/services/table/app"
	tablesqlite "github.com/seralith/wartable/internal/services/table/storage/sqlite"
)

type testAPI struct {
	handler http.Handler
	gm      string
	player  string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	verifier := grant.Verifier{
		Issuer:   "wartable-test",
		Audience: "wartable-map",
		Key:      pub,
		Now:      time.Now,
	}

	store, err := tablesqlite.Open(filepath.Join(t.TempDir(), "table.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	hub := ws.NewHub()
	api := New(app.NewService(store, hub), hub, verifier)

	mint := func(userID string, role grant.Role) string {
		token, err := grant.Mint(priv, grant.MintInput{
			Issuer:     "wartable-test",
			Audience:   "wartable-map",
			CampaignID: "camp-1",
			UserID:     userID,
			Role:       role,
			JWTID:      "jti-" + userID,
			IssuedAt:   time.Now(),
			ExpiresAt:  time.Now().Add(time.Hour),
		})
		if err != nil {
			t.Fatalf("mint: %v", err)
		}
		return token
	}

	return &testAPI{
		handler: api.Handler(),
		gm:      mint("gm-1", grant.RoleGM),
		player:  mint("player-1", grant.RolePlayer),
	}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthzNeedsNoGrant(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestSnapshotRequiresGrant(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodGet, "/api/v1/maps/camp-1", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var body struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Code != "GRANT_MISSING" {
		t.Fatalf("code = %q, want GRANT_MISSING", body.Code)
	}
}

func TestStrokeLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)

	stroke := battlemap.Stroke{
		Color:  "#ffffff",
		Size:   4,
		Points: []geo.Point{{X: 0.1, Y: 0.1}, {X: 0.2, Y: 0.2}},
		Mode:   battlemap.StrokeModeDraw,
	}
	rec := api.do(t, http.MethodPut, "/api/v1/maps/camp-1/strokes", api.gm, stroke)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d: %s", rec.Code, rec.Body.String())
	}
	var stored battlemap.Stroke
	if err := json.Unmarshal(rec.Body.Bytes(), &stored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if stored.ID == "" {
		t.Fatal("no id assigned")
	}

	rec = api.do(t, http.MethodGet, "/api/v1/maps/camp-1", api.player, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("snapshot status = %d", rec.Code)
	}
	var doc battlemap.Map
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if len(doc.Strokes) != 1 {
		t.Fatalf("strokes = %d, want 1", len(doc.Strokes))
	}

	rec = api.do(t, http.MethodDelete, "/api/v1/maps/camp-1/strokes/"+stored.ID, api.gm, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = api.do(t, http.MethodDelete, "/api/v1/maps/camp-1/strokes/"+stored.ID, api.gm, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", rec.Code)
	}
}

func TestShortStrokeRejected(t *testing.T) {
	api := newTestAPI(t)
	stroke := battlemap.Stroke{Points: []geo.Point{{X: 0.1, Y: 0.1}}}
	rec := api.do(t, http.MethodPut, "/api/v1/maps/camp-1/strokes", api.gm, stroke)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestTokenPatchOverHTTP(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/v1/maps/camp-1/tokens", api.gm, battlemap.Token{
		Kind:    battlemap.TokenKindPlayer,
		Label:   "Aya",
		OwnerID: "player-1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d: %s", rec.Code, rec.Body.String())
	}
	var token battlemap.Token
	_ = json.Unmarshal(rec.Body.Bytes(), &token)

	allow := true
	rec = api.do(t, http.MethodPatch, "/api/v1/maps/camp-1/settings", api.gm, battlemap.SettingsPatch{AllowPlayerTokenMoves: &allow})
	if rec.Code != http.StatusOK {
		t.Fatalf("settings status = %d", rec.Code)
	}

	pos := geo.Point{X: 1.7, Y: 0.5}
	rec = api.do(t, http.MethodPatch, "/api/v1/maps/camp-1/tokens/"+token.ID, api.player, battlemap.TokenPatch{Position: &pos})
	if rec.Code != http.StatusOK {
		t.Fatalf("move status = %d: %s", rec.Code, rec.Body.String())
	}
	var moved battlemap.Token
	_ = json.Unmarshal(rec.Body.Bytes(), &moved)
	if moved.Position != (geo.Point{X: 1, Y: 0.5}) {
		t.Fatalf("position = %v, want clamped", moved.Position)
	}

	// Player cannot delete.
	rec = api.do(t, http.MethodDelete, "/api/v1/maps/camp-1/tokens/"+token.ID, api.player, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("player delete status = %d, want 403", rec.Code)
	}
	rec = api.do(t, http.MethodDelete, "/api/v1/maps/camp-1/tokens/"+token.ID, api.gm, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("gm delete status = %d", rec.Code)
	}
}

func TestCombatOverHTTP(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/v1/maps/camp-1/combat/start", api.gm, map[string]any{
		"order": []string{"Goblin", "Hero", "Ogre"},
		"round": 1,
		"turn":  1,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("start status = %d: %s", rec.Code, rec.Body.String())
	}

	var combat battlemap.CombatState
	for i := 0; i < 3; i++ {
		rec = api.do(t, http.MethodPost, "/api/v1/maps/camp-1/combat/advance", api.gm, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("advance %d status = %d", i, rec.Code)
		}
		_ = json.Unmarshal(rec.Body.Bytes(), &combat)
	}
	if combat.Round != 2 || combat.Turn != 1 {
		t.Fatalf("combat = %+v, want round 2 turn 1", combat)
	}

	rec = api.do(t, http.MethodPost, "/api/v1/maps/camp-1/combat/end", api.gm, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("end status = %d", rec.Code)
	}
	rec = api.do(t, http.MethodPost, "/api/v1/maps/camp-1/combat/advance", api.gm, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("inactive advance status = %d, want 409", rec.Code)
	}

	rec = api.do(t, http.MethodPost, "/api/v1/maps/camp-1/combat/start", api.player, map[string]any{"order": []string{"x"}})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("player start status = %d, want 403", rec.Code)
	}
}

func TestLogVisibility(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/v1/maps/camp-1/log", api.player, battlemap.BattleLogEntry{
		Action:  "token_moved",
		Message: "Aya moved",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("append status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = api.do(t, http.MethodGet, "/api/v1/maps/camp-1/log", api.player, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("player read status = %d, want 403", rec.Code)
	}
	rec = api.do(t, http.MethodGet, "/api/v1/maps/camp-1/log", api.gm, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("gm read status = %d", rec.Code)
	}
	var entries []battlemap.BattleLogEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(entries) != 1 || entries[0].ActorID != "player-1" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestLogStreamGMOnly(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/api/v1/maps/camp-1/log/stream", api.player, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("player stream status = %d, want 403", rec.Code)
	}

	// The GM passes the visibility gate; without upgrade headers the
	// handshake itself is what fails.
	rec = api.do(t, http.MethodGet, "/api/v1/maps/camp-1/log/stream", api.gm, nil)
	if rec.Code == http.StatusForbidden {
		t.Fatalf("gm stream status = %d", rec.Code)
	}
}

func TestLibraryOverHTTP(t *testing.T) {
	api := newTestAPI(t)

	_ = api.do(t, http.MethodPost, "/api/v1/maps/camp-1/tokens", api.gm, battlemap.Token{Kind: battlemap.TokenKindEnemy, Label: "Orc"})

	rec := api.do(t, http.MethodPost, "/api/v1/maps/camp-1/library", api.gm, map[string]string{"name": "Ambush"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("save status = %d: %s", rec.Code, rec.Body.String())
	}
	var entry struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &entry)

	rec = api.do(t, http.MethodDelete, "/api/v1/maps/camp-1", api.gm, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("clear status = %d", rec.Code)
	}

	rec = api.do(t, http.MethodPost, "/api/v1/maps/camp-1/library/"+entry.ID+"/load", api.gm, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("load status = %d: %s", rec.Code, rec.Body.String())
	}
	var doc battlemap.Map
	_ = json.Unmarshal(rec.Body.Bytes(), &doc)
	if len(doc.Tokens) != 1 {
		t.Fatalf("restored tokens = %d, want 1", len(doc.Tokens))
	}

	rec = api.do(t, http.MethodDelete, "/api/v1/maps/camp-1/library/"+entry.ID, api.gm, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = api.do(t, http.MethodGet, "/api/v1/maps/camp-1/library", api.player, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("player list status = %d, want 403", rec.Code)
	}
}

func TestGrantForOtherCampaignRejected(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodGet, "/api/v1/maps/camp-2", api.gm, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}
