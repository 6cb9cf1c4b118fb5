// Package mcpapi exposes a static MCP tool surface (cast_vote, get_state)
// over the same vote aggregator and broadcaster the HTTP API uses. The
// tool set is fixed at startup: the action alphabet is wire-stable, so
// there is nothing to discover at runtime.
package mcpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/pokevote/gameserver/internal/broadcast"
	"github.com/pokevote/gameserver/internal/logging"
	"github.com/pokevote/gameserver/internal/reqctx"
	"github.com/pokevote/gameserver/internal/tick"
	"github.com/pokevote/gameserver/internal/vote"
)

const defaultGameID = "default"

// NewServer builds an MCP server with the cast_vote and get_state tools
// registered, backed by aggregator/processor/broadcaster.
func NewServer(aggregator *vote.Aggregator, processor *tick.Processor, broadcaster *broadcast.Broadcaster, logger *logging.Logger) *mcpserver.MCPServer {
	srv := mcpserver.NewMCPServer(
		"pokevote-gameserver",
		"1.0.0",
		mcpserver.WithToolCapabilities(false),
	)

	srv.AddTool(castVoteTool(), castVoteHandler(aggregator, processor, logger))
	srv.AddTool(getStateTool(), getStateHandler(broadcaster, logger))

	return srv
}

// NewHTTPHandler wraps srv in a stateless streamable-HTTP transport for
// mounting on the main router. Authentication happens upstream; by the
// time a tool handler runs, reqctx already carries the agent identity.
func NewHTTPHandler(srv *mcpserver.MCPServer) http.Handler {
	return mcpserver.NewStreamableHTTPServer(srv,
		mcpserver.WithStateLess(true),
	)
}

func castVoteTool() mcp.Tool {
	return mcp.NewTool("cast_vote",
		mcp.WithDescription("Cast this agent's vote for the next button press (up|down|left|right|a|b|start|select)"),
		mcp.WithString("action",
			mcp.Description("one of: up, down, left, right, a, b, start, select"),
			mcp.Required(),
		),
	)
}

func castVoteHandler(aggregator *vote.Aggregator, processor *tick.Processor, logger *logging.Logger) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, r mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		agentID, err := agentIDFromContext(ctx)
		if err != nil {
			return errorResult(err.Error()), nil
		}

		action := r.GetString("action", "")
		if action == "" {
			return errorResult("action is required"), nil
		}

		tickID := processor.CurrentTick()
		res, err := aggregator.RecordVote(ctx, defaultGameID, tickID, agentID, action)
		if err != nil {
			return errorResult(err.Error()), nil
		}

		payload, _ := json.Marshal(map[string]any{
			"accepted": res.Status != vote.StatusDuplicate,
			"status":   res.Status,
			"tick":     tickID,
			"action":   action,
		})
		return &mcp.CallToolResult{Content: []mcp.Content{mcp.NewTextContent(string(payload))}}, nil
	}
}

func getStateTool() mcp.Tool {
	return mcp.NewTool("get_state",
		mcp.WithDescription("Fetch the current unified game state"),
	)
}

func getStateHandler(broadcaster *broadcast.Broadcaster, logger *logging.Logger) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, r mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		state, ok, err := broadcaster.CurrentState(ctx, defaultGameID)
		if err != nil {
			return errorResult(err.Error()), nil
		}
		if !ok {
			return errorResult("state unavailable"), nil
		}

		payload, err := json.Marshal(state)
		if err != nil {
			return errorResult(err.Error()), nil
		}
		return &mcp.CallToolResult{Content: []mcp.Content{mcp.NewTextContent(string(payload))}}, nil
	}
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(message)},
		IsError: true,
	}
}

// agentIDFromContext recovers the calling agent's id. The MCP transport
// attaches authenticated identity the same way the HTTP transport does,
// via reqctx, wired in by the server's MCP HTTP handler before the
// request reaches mcp-go.
func agentIDFromContext(ctx context.Context) (string, error) {
	ac, ok := reqctx.TryGetAgentContext(ctx)
	if !ok {
		return "", fmt.Errorf("mcpapi: no authenticated agent in context")
	}
	return ac.AgentID, nil
}
