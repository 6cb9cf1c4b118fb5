package handlers

import (
	"net/http"

	"github.com/pokevote/gameserver/internal/apierr"
)

// HealthHandler serves GET /health: a plain liveness check. No store
// round-trip; liveness and store-readiness are different concerns.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !apierr.RequireMethod(w, r, http.MethodGet) {
		return
	}
	apierr.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
