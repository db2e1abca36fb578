// Package rest exposes the map authority over HTTP JSON, plus the WebSocket
// battle-log stream.
package rest

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	apperrors "github.com/seralith/wartable/internal/platform/errors"
	"github.com/seralith/wartable/internal/platform/i18n"
	"github.com/seralith/wartable/internal/platform/requestctx"
)

// bearerToken extracts the table grant from the Authorization header, falling
// back to the grant query parameter for WebSocket clients that cannot set
// headers.
func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return strings.TrimSpace(r.URL.Query().Get("grant"))
}

// withGrant verifies the table grant for the campaign in the path and stores
// the resulting principal on the request context.
func (a *API) withGrant(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		campaignID := r.PathValue("campaignID")
		g, err := a.verifier.Verify(bearerToken(r), campaignID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		next(w, r.WithContext(requestctx.WithPrincipal(r.Context(), g.Principal())))
	}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError renders a domain error as JSON with a localized user message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.CodeOf(err)
	status := code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		log.Printf("rest: %s %s: %v", r.Method, r.URL.Path, err)
	}

	tag, _ := i18n.ResolveTag(r)
	printer := i18n.Printer(tag)
	message := printer.Sprintf("error." + string(code))
	if message == "error."+string(code) {
		message = printer.Sprintf("error.UNKNOWN")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Code: string(code), Message: message})
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if value != nil {
		_ = json.NewEncoder(w).Encode(value)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}
