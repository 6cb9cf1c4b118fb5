// Package reqctx carries the per-request authenticated identity through a
// request's lifetime without threading it through every handler and tool
// signature.
package reqctx

import (
	"context"
	"fmt"

	"github.com/pokevote/gameserver/internal/credentials"
)

// requestContextKey is unexported so no other package can construct or
// collide with it.
type requestContextKey struct{}

// AgentContext is the identity attached to a request by the authn
// middleware.
type AgentContext struct {
	AgentID  string
	Plan     credentials.Plan
	RPSLimit int
	IP       string
}

// WithAgentContext returns a context carrying ac, for use by the authn
// middleware.
func WithAgentContext(ctx context.Context, ac AgentContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, ac)
}

// GetAgentContext recovers the AgentContext attached by the authn
// middleware. It panics if called outside an active authenticated
// request.
func GetAgentContext(ctx context.Context) AgentContext {
	ac, ok := ctx.Value(requestContextKey{}).(AgentContext)
	if !ok {
		panic(fmt.Errorf("reqctx: GetAgentContext called outside an active request"))
	}
	return ac
}

// TryGetAgentContext recovers the AgentContext if one is present, without
// panicking. Used by code paths that may legitimately run outside a
// request (background tick callbacks, tests).
func TryGetAgentContext(ctx context.Context) (AgentContext, bool) {
	ac, ok := ctx.Value(requestContextKey{}).(AgentContext)
	return ac, ok
}
