// Package handlers serves the agent HTTP surface: POST /api/v1/vote,
// GET /api/v1/state, GET /health.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/pokevote/gameserver/internal/apierr"
	"github.com/pokevote/gameserver/internal/authn"
	"github.com/pokevote/gameserver/internal/broadcast"
	"github.com/pokevote/gameserver/internal/reqctx"
	"github.com/pokevote/gameserver/internal/tick"
	"github.com/pokevote/gameserver/internal/vote"
)

// defaultGameID is the single game-id this server instance drives. The
// state endpoint reads game:state:default rather than taking a path
// parameter.
const defaultGameID = "default"

// VoteHandler serves POST /api/v1/vote.
type VoteHandler struct {
	aggregator *vote.Aggregator
	processor  *tick.Processor
	authnMW    *authn.Middleware
}

// NewVoteHandler creates a VoteHandler.
func NewVoteHandler(aggregator *vote.Aggregator, processor *tick.Processor, authnMW *authn.Middleware) *VoteHandler {
	return &VoteHandler{aggregator: aggregator, processor: processor, authnMW: authnMW}
}

type voteRequest struct {
	Action string `json:"action"`
	Tick   *int64 `json:"tick,omitempty"`
}

type voteResponse struct {
	Accepted bool   `json:"accepted"`
	Tick     int64  `json:"tick"`
	Action   string `json:"action"`
}

// ServeHTTP handles POST /api/v1/vote: record a vote at the processor's
// current tick.
func (h *VoteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !apierr.RequireMethod(w, r, http.MethodPost) {
		return
	}

	ac := reqctx.GetAgentContext(r.Context())

	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.recordInvalid(r, ac)
		apierr.Write(w, http.StatusBadRequest, apierr.CodeValidation, "malformed request body")
		return
	}
	if req.Action == "" {
		h.recordInvalid(r, ac)
		apierr.Write(w, http.StatusBadRequest, apierr.CodeValidation, "action is required")
		return
	}

	tickID := h.processor.CurrentTick()

	res, err := h.aggregator.RecordVote(r.Context(), defaultGameID, tickID, ac.AgentID, req.Action)
	if err != nil {
		h.recordInvalid(r, ac)
		apierr.Write(w, http.StatusBadRequest, apierr.CodeValidation, "invalid action")
		return
	}

	apierr.WriteJSON(w, http.StatusOK, voteResponse{
		Accepted: res.Status != vote.StatusDuplicate,
		Tick:     tickID,
		Action:   req.Action,
	})
}

func (h *VoteHandler) recordInvalid(r *http.Request, ac reqctx.AgentContext) {
	h.authnMW.RecordInvalidRequest(r, ac.AgentID, ac.IP)
}

// StateHandler serves GET /api/v1/state.
type StateHandler struct {
	broadcaster *broadcast.Broadcaster
}

// NewStateHandler creates a StateHandler.
func NewStateHandler(broadcaster *broadcast.Broadcaster) *StateHandler {
	return &StateHandler{broadcaster: broadcaster}
}

// ServeHTTP handles GET /api/v1/state: return the stored state JSON
// verbatim, or 503 if unavailable.
func (h *StateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !apierr.RequireMethod(w, r, http.MethodGet) {
		return
	}

	raw, ok, err := h.broadcaster.CurrentStateRaw(r.Context(), defaultGameID)
	if err != nil || !ok {
		apierr.Write(w, http.StatusServiceUnavailable, apierr.CodeStateUnavail, "state unavailable")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(raw))
}
