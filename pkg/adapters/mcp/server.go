package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Young-Hyun-Ham/hamsfam-sub000"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/internal/logging"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const scenarioURIPrefix = "hamsfam://scenarios/"

// RunResponse is the structured result of every run tool.
type RunResponse struct {
	RunID         string         `json:"run_id" jsonschema_description:"Id of the run"`
	ScenarioKey   string         `json:"scenario_key" jsonschema_description:"Scenario the run executes"`
	CurrentNodeID string         `json:"current_node_id" jsonschema_description:"Node waiting for input"`
	NodeType      string         `json:"node_type,omitempty" jsonschema_description:"Type of the current node"`
	Finished      bool           `json:"finished" jsonschema_description:"True once the run reached the end of the graph"`
	Pending       bool           `json:"pending,omitempty" jsonschema_description:"True while an api, llm or delay node is in flight"`
	Transcript    []domain.Step  `json:"transcript" jsonschema_description:"Conversation so far, templates resolved"`
	Slots         map[string]any `json:"slots" jsonschema_description:"Slot values of the run"`
}

// Engine is the part of hamsfam.Engine the MCP server drives.
type Engine interface {
	Scenarios(ctx context.Context) ([]string, error)
	Scenario(ctx context.Context, key string) (*domain.Scenario, error)
	Start(ctx context.Context, scenarioKey, runID string, opts ...hamsfam.RunOption) (*hamsfam.Run, error)
	Run(ctx context.Context, runID string) (*hamsfam.Run, error)
	Runs(ctx context.Context) ([]string, error)
}

var _ Engine = (*hamsfam.Engine)(nil)

// Server exposes the engine as an MCP server.
type Server struct {
	engine    Engine
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		mcpServer: server.NewMCPServer("hamsfam-mcp", strings.TrimSpace(hamsfam.Version)),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on port until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// StartArgs are the arguments of start_run.
type StartArgs struct {
	ScenarioKey string `json:"scenario_key"`
	RunID       string `json:"run_id,omitempty"`
	Slots       string `json:"slots,omitempty"`
}

// RunArgs identify a run.
type RunArgs struct {
	RunID string `json:"run_id"`
}

// DispatchArgs are the arguments of dispatch.
type DispatchArgs struct {
	RunID   string `json:"run_id"`
	Type    string `json:"type"`
	Value   string `json:"value,omitempty"`
	Display string `json:"display,omitempty"`
	Field   string `json:"field,omitempty"`
	Values  string `json:"values,omitempty"`
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_scenarios",
		mcp.WithDescription("List the keys of the available scenarios."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		keys, err := s.engine.Scenarios(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
		}
		return mcp.NewToolResultText(strings.Join(keys, "\n")), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("List the open and persisted runs."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ids, err := s.engine.Runs(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
		}
		return mcp.NewToolResultText(strings.Join(ids, "\n")), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("start_run",
		mcp.WithDescription("Start (or reopen) a run of a scenario and drive it until it needs input."),
		mcp.WithString("scenario_key", mcp.Required(), mcp.Description("Key of the scenario to run")),
		mcp.WithString("run_id", mcp.Description("Id of the run (generated when omitted)")),
		mcp.WithString("slots", mcp.Description("JSON object of initial slot values")),
		mcp.WithOutputSchema[RunResponse](),
	), mcp.NewStructuredToolHandler(s.handleStart))

	s.mcpServer.AddTool(mcp.NewTool("get_run",
		mcp.WithDescription("Show the transcript and current node of a run."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("Id of the run")),
		mcp.WithOutputSchema[RunResponse](),
	), mcp.NewStructuredToolHandler(s.handleGet))

	s.mcpServer.AddTool(mcp.NewTool("dispatch",
		mcp.WithDescription("Apply a user action to the current node of a run."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("Id of the run")),
		mcp.WithString("type", mcp.Required(),
			mcp.Enum(string(domain.ActionContinue), string(domain.ActionReply), string(domain.ActionSubmit), string(domain.ActionSetFormValue)),
			mcp.Description("Action type"),
		),
		mcp.WithString("value", mcp.Description("Reply value, or the field value for setFormValue")),
		mcp.WithString("display", mcp.Description("Reply text shown in the transcript")),
		mcp.WithString("field", mcp.Description("Form field for setFormValue")),
		mcp.WithString("values", mcp.Description("JSON object of form values for submit")),
		mcp.WithOutputSchema[RunResponse](),
	), mcp.NewStructuredToolHandler(s.handleDispatch))

	s.mcpServer.AddTool(mcp.NewTool("reset_run",
		mcp.WithDescription("Return a run to the start of its scenario."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("Id of the run")),
		mcp.WithOutputSchema[RunResponse](),
	), mcp.NewStructuredToolHandler(s.handleReset))
}

func (s *Server) handleStart(ctx context.Context, _ mcp.CallToolRequest, args StartArgs) (RunResponse, error) {
	if args.ScenarioKey == "" {
		return RunResponse{}, fmt.Errorf("scenario_key is required")
	}
	var opts []hamsfam.RunOption
	if args.Slots != "" {
		var slots map[string]any
		if err := json.Unmarshal([]byte(args.Slots), &slots); err != nil {
			return RunResponse{}, fmt.Errorf("slots must be a JSON object: %w", err)
		}
		opts = append(opts, hamsfam.WithSlots(slots))
	}

	run, err := s.engine.Start(ctx, args.ScenarioKey, args.RunID, opts...)
	if err != nil {
		return RunResponse{}, fmt.Errorf("start failed: %w", err)
	}
	return newRunResponse(run), nil
}

func (s *Server) handleGet(ctx context.Context, _ mcp.CallToolRequest, args RunArgs) (RunResponse, error) {
	run, err := s.engine.Run(ctx, args.RunID)
	if err != nil {
		return RunResponse{}, err
	}
	return newRunResponse(run), nil
}

func (s *Server) handleDispatch(ctx context.Context, _ mcp.CallToolRequest, args DispatchArgs) (RunResponse, error) {
	action, err := args.action()
	if err != nil {
		return RunResponse{}, err
	}
	run, err := s.engine.Run(ctx, args.RunID)
	if err != nil {
		return RunResponse{}, err
	}
	if err := run.Dispatch(ctx, action); err != nil {
		s.logger.Warn("MCP dispatch rejected", "run_id", args.RunID, "err", err)
		return RunResponse{}, fmt.Errorf("dispatch failed: %w", err)
	}
	return newRunResponse(run), nil
}

func (s *Server) handleReset(ctx context.Context, _ mcp.CallToolRequest, args RunArgs) (RunResponse, error) {
	run, err := s.engine.Run(ctx, args.RunID)
	if err != nil {
		return RunResponse{}, err
	}
	if err := run.Reset(ctx); err != nil {
		return RunResponse{}, fmt.Errorf("reset failed: %w", err)
	}
	return newRunResponse(run), nil
}

// action converts the flat tool arguments into a domain action.
func (a DispatchArgs) action() (domain.Action, error) {
	switch domain.ActionType(a.Type) {
	case domain.ActionContinue:
		return domain.Continue(), nil
	case domain.ActionReply:
		return domain.Choose(a.Display, a.Value), nil
	case domain.ActionSubmit:
		values := map[string]any{}
		if a.Values != "" {
			if err := json.Unmarshal([]byte(a.Values), &values); err != nil {
				return domain.Action{}, fmt.Errorf("values must be a JSON object: %w", err)
			}
		}
		return domain.Submit(values), nil
	case domain.ActionSetFormValue:
		if a.Field == "" {
			return domain.Action{}, fmt.Errorf("field is required for %s", a.Type)
		}
		return domain.Action{Type: domain.ActionSetFormValue, Field: a.Field, Value: a.Value}, nil
	}
	return domain.Action{}, fmt.Errorf("%w: unknown action type %q", domain.ErrUnexpectedAction, a.Type)
}

func newRunResponse(run *hamsfam.Run) RunResponse {
	st := run.State()
	resp := RunResponse{
		RunID:         run.RunID(),
		ScenarioKey:   run.Scenario().Key,
		CurrentNodeID: st.CurrentNodeID,
		Finished:      st.Finished,
		Pending:       run.Pending(),
		Transcript:    run.Transcript(),
		Slots:         st.SlotValues,
	}
	if node, ok := run.Scenario().Node(st.CurrentNodeID); ok {
		resp.NodeType = string(node.Type)
	}
	return resp
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("hamsfam://scenarios", "Available scenarios",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		keys, err := s.engine.Scenarios(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list scenarios: %w", err)
		}
		b, _ := json.Marshal(keys)
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: "hamsfam://scenarios", MIMEType: "application/json", Text: string(b)},
		}, nil
	})

	s.mcpServer.AddResourceTemplate(mcp.NewResourceTemplate(scenarioURIPrefix+"{key}", "Scenario graph",
		mcp.WithTemplateMIMEType("application/json"),
	), s.readScenario)
}

func (s *Server) readScenario(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := request.Params.URI
	key := strings.TrimPrefix(uri, scenarioURIPrefix)
	sc, err := s.engine.Scenario(ctx, key)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(sc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode scenario %s: %w", key, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{URI: uri, MIMEType: "application/json", Text: string(b)},
	}, nil
}
