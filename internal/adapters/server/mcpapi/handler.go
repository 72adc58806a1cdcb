// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/g3/tornado/internal/adapters/server/common"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter exposing the tracker tools.
// Requests must already carry an actor; wrap it with httpapi.Authenticate.
func NewHandler(cfg Config, tracker common.TrackerService) (*Handler, error) {
	if tracker == nil {
		return nil, fmt.Errorf("tracker service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerReadTools(mcpSrv, tracker)
	registerWriteTools(mcpSrv, tracker)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "tornado"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	if !strings.HasPrefix(cfg.EndpointPath, "/") {
		cfg.EndpointPath = "/" + cfg.EndpointPath
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// registerReadTools registers the list and lookup tools.
func registerReadTools(srv *mcpserver.MCPServer, tracker common.TrackerService) {
	srv.AddTool(
		mcp.NewTool(
			"tornado.list_projects",
			mcp.WithDescription("List the projects visible to the caller."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			rows, err := tracker.ListProjects(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_projects", map[string]any{"projects": rows})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tornado.list_tasks",
			mcp.WithDescription("List visible tasks, stalest first, with gate and staleness fields."),
			mcp.WithString("project_id", mcp.Description("Restrict to one project")),
			mcp.WithBoolean("include_closed", mcp.Description("Include closed tasks")),
			mcp.WithBoolean("stale_only", mcp.Description("Only tasks past their cadence")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			rows, err := tracker.ListTasks(ctx, common.ListTasksRequest{
				ProjectID:     req.GetString("project_id", ""),
				IncludeClosed: req.GetBool("include_closed", false),
				StaleOnly:     req.GetBool("stale_only", false),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_tasks", map[string]any{"tasks": rows})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tornado.get_task",
			mcp.WithDescription("Return one task with its gates, owners, and recent notes."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			task, err := tracker.GetTask(ctx, taskID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			notes, err := tracker.ListNotes(ctx, taskID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("get_task", map[string]any{"task": task, "notes": notes})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tornado.list_issues",
			mcp.WithDescription("List dashboard issues ordered critical, warning, info."),
			mcp.WithString("scope", mcp.Description("visible (default) or all (admins)"), mcp.Enum("visible", "all")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			rows, err := tracker.ListIssues(ctx, req.GetString("scope", "visible") == "all")
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_issues", map[string]any{"issues": rows})
		},
	)
}

// registerWriteTools registers the follow-up tools an assistant may call.
func registerWriteTools(srv *mcpserver.MCPServer, tracker common.TrackerService) {
	srv.AddTool(
		mcp.NewTool(
			"tornado.add_note",
			mcp.WithDescription("Append a markdown note to a task. Notes count as movement."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier")),
			mcp.WithString("body", mcp.Required(), mcp.Description("Markdown note body")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			body, err := req.RequireString("body")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			note, err := tracker.AddNote(ctx, taskID, common.NoteRequest{Body: body})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("add_note", note)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tornado.complete_gate",
			mcp.WithDescription("Mark one gate of a task complete."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier")),
			mcp.WithString("gate_id", mcp.Required(), mcp.Description("Gate identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			gateID, err := req.RequireString("gate_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			task, err := tracker.CompleteGate(ctx, taskID, gateID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("complete_gate", task)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tornado.request_close",
			mcp.WithDescription("Ask to close a task. Admin callers close it directly."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			task, err := tracker.CloseTask(ctx, taskID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("request_close", task)
		},
	)
}

// jsonResult encodes one structured tool result.
func jsonResult(tool string, payload any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", tool, err)
	}
	return result, nil
}

// toolResultFromError maps adapter errors into "code: message" tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	if err == nil {
		return mcp.NewToolResultError("unknown error")
	}
	return mcp.NewToolResultError(common.ErrorCode(err) + ": " + err.Error())
}
