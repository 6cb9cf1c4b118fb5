// Package admin implements the X-Admin-Secret-protected control plane for
// creating, listing and removing bans.
package admin

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/pokevote/gameserver/internal/apierr"
	"github.com/pokevote/gameserver/internal/ban"
	"github.com/pokevote/gameserver/internal/credentials"
)

// Handler serves the admin control plane.
type Handler struct {
	bans   *ban.Subsystem
	secret string
}

// New creates a Handler backed by bans. If secret is empty every admin
// endpoint responds 401.
func New(bans *ban.Subsystem, secret string) *Handler {
	return &Handler{bans: bans, secret: secret}
}

// requireSecret compares X-Admin-Secret against the configured secret in
// constant time. Returns false (and has already written a 401) if the
// check fails.
func (h *Handler) requireSecret(w http.ResponseWriter, r *http.Request) bool {
	if h.secret == "" {
		apierr.Write(w, http.StatusUnauthorized, apierr.CodeInvalidAuth, "admin interface disabled")
		return false
	}
	provided := r.Header.Get("X-Admin-Secret")
	if provided == "" || !credentials.ConstantTimeEqual(provided, h.secret) {
		apierr.Write(w, http.StatusUnauthorized, apierr.CodeInvalidAuth, "invalid admin secret")
		return false
	}
	return true
}

type banRequest struct {
	Identifier string     `json:"identifier"`
	Kind       ban.Kind   `json:"kind"`
	Type       ban.Type   `json:"type"`
	Reason     string     `json:"reason"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
}

// HandleCreateFor returns a create handler with the ban dimension fixed
// by the route; a kind in the body is ignored in favour of the path.
func (h *Handler) HandleCreateFor(kind ban.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.create(w, r, kind)
	}
}

// HandleCreate handles a create request whose ban dimension comes from the
// body's kind field.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, "")
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request, kind ban.Kind) {
	if !h.requireSecret(w, r) {
		return
	}
	if !apierr.RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req banRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.Write(w, http.StatusBadRequest, apierr.CodeValidation, "malformed request body")
		return
	}
	if kind != "" {
		req.Kind = kind
	}
	if req.Identifier == "" || req.Reason == "" {
		apierr.Write(w, http.StatusBadRequest, apierr.CodeValidation, "identifier and reason are required")
		return
	}
	if req.Type != ban.TypeSoft && req.Type != ban.TypeHard {
		apierr.Write(w, http.StatusBadRequest, apierr.CodeValidation, "type must be soft or hard")
		return
	}

	bannedBy := r.Header.Get("X-Admin-Actor")
	if bannedBy == "" {
		bannedBy = "admin"
	}

	var err error
	switch req.Kind {
	case ban.KindAgent:
		err = h.bans.BanAgent(r.Context(), req.Identifier, req.Type, req.Reason, bannedBy, req.ExpiresAt)
	case ban.KindIP:
		err = h.bans.BanIP(r.Context(), req.Identifier, req.Type, req.Reason, bannedBy, req.ExpiresAt)
	case ban.KindCIDR:
		err = h.bans.BanCIDR(r.Context(), req.Identifier, req.Type, req.Reason, bannedBy, req.ExpiresAt)
	case ban.KindUserAgent:
		err = h.bans.BanUserAgent(r.Context(), req.Identifier, req.Type, req.Reason, bannedBy, req.ExpiresAt)
	default:
		apierr.Write(w, http.StatusBadRequest, apierr.CodeValidation, "unknown ban kind")
		return
	}

	if err != nil {
		apierr.Write(w, http.StatusInternalServerError, apierr.CodeInternal, "failed to create ban")
		return
	}

	apierr.WriteJSON(w, http.StatusCreated, map[string]string{"status": "banned"})
}

type unbanRequest struct {
	Identifier string   `json:"identifier"`
	Kind       ban.Kind `json:"kind"`
}

// HandleUnban handles POST /admin/unban.
func (h *Handler) HandleUnban(w http.ResponseWriter, r *http.Request) {
	if !h.requireSecret(w, r) {
		return
	}
	if !apierr.RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req unbanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.Write(w, http.StatusBadRequest, apierr.CodeValidation, "malformed request body")
		return
	}
	if req.Identifier == "" {
		apierr.Write(w, http.StatusBadRequest, apierr.CodeValidation, "identifier is required")
		return
	}

	if err := h.bans.Unban(r.Context(), req.Kind, req.Identifier); err != nil {
		apierr.Write(w, http.StatusInternalServerError, apierr.CodeInternal, "failed to remove ban")
		return
	}

	apierr.WriteJSON(w, http.StatusOK, map[string]string{"status": "unbanned"})
}

// HandleList handles GET /admin/bans: list every active ban.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	if !h.requireSecret(w, r) {
		return
	}
	if !apierr.RequireMethod(w, r, http.MethodGet) {
		return
	}

	records, err := h.bans.List(r.Context())
	if err != nil {
		apierr.Write(w, http.StatusInternalServerError, apierr.CodeInternal, "failed to list bans")
		return
	}

	apierr.WriteJSON(w, http.StatusOK, map[string]any{"bans": records})
}
