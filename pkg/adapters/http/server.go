package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Young-Hyun-Ham/hamsfam-sub000"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/internal/logging"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/domain"
	"github.com/go-chi/chi/v5"
)

// Engine is the part of hamsfam.Engine the HTTP adapter drives.
type Engine interface {
	Scenarios(ctx context.Context) ([]string, error)
	Scenario(ctx context.Context, key string) (*domain.Scenario, error)
	Start(ctx context.Context, scenarioKey, runID string, opts ...hamsfam.RunOption) (*hamsfam.Run, error)
	Run(ctx context.Context, runID string) (*hamsfam.Run, error)
	Runs(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, runID string) error
	Watch(ctx context.Context) (<-chan string, error)
}

var _ Engine = (*hamsfam.Engine)(nil)

// Server implements the run API.
type Server struct {
	Engine  Engine
	Streams *StreamManager
	logger  *slog.Logger
	metrics http.Handler
}

// Option configures the handler.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// NewHandler creates the HTTP handler for the run API. Progress reaches the
// /runs/{runID}/events stream only when the engine was built with
// streams.Callbacks().
func NewHandler(engine Engine, streams *StreamManager, opts ...Option) http.Handler {
	if streams == nil {
		streams = NewStreamManager()
	}
	s := &Server{
		Engine:  engine,
		Streams: streams,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/events", s.WatchScenarios)
	r.Get("/scenarios", s.ListScenarios)
	r.Get("/scenarios/{key}", s.GetScenario)
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", s.ListRuns)
		r.Post("/", s.StartRun)
		r.Route("/{runID}", func(r chi.Router) {
			r.Get("/", s.GetRun)
			r.Delete("/", s.DeleteRun)
			r.Post("/actions", s.Dispatch)
			r.Post("/reset", s.Reset)
			r.Get("/events", s.SubscribeEvents)
		})
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RunView is the wire form of a run: its snapshot with the transcript
// templates resolved.
type RunView struct {
	RunID         string         `json:"runId"`
	ScenarioKey   string         `json:"scenarioKey"`
	ScenarioTitle string         `json:"scenarioTitle,omitempty"`
	CurrentNodeID string         `json:"currentNodeId"`
	Finished      bool           `json:"finished"`
	LLMDone       bool           `json:"llmDone,omitempty"`
	Pending       bool           `json:"pending,omitempty"`
	Steps         []domain.Step  `json:"steps"`
	SlotValues    map[string]any `json:"slotValues"`
	FormValues    map[string]any `json:"formValues"`
}

func newRunView(run *hamsfam.Run) RunView {
	st := run.State()
	return RunView{
		RunID:         run.RunID(),
		ScenarioKey:   run.Scenario().Key,
		ScenarioTitle: run.Scenario().Title,
		CurrentNodeID: st.CurrentNodeID,
		Finished:      st.Finished,
		LLMDone:       st.LLMDone,
		Pending:       run.Pending(),
		Steps:         run.Transcript(),
		SlotValues:    st.SlotValues,
		FormValues:    st.FormValues,
	}
}

// StartRunRequest is the body of POST /runs.
type StartRunRequest struct {
	ScenarioKey string         `json:"scenarioKey"`
	RunID       string         `json:"runId,omitempty"`
	Slots       map[string]any `json:"slots,omitempty"`
}

// StartRun handles POST /runs.
func (s *Server) StartRun(w http.ResponseWriter, r *http.Request) {
	var req StartRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body: "+err.Error()))
		return
	}
	if req.ScenarioKey == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("scenarioKey is required"))
		return
	}

	var opts []hamsfam.RunOption
	if len(req.Slots) > 0 {
		opts = append(opts, hamsfam.WithSlots(req.Slots))
	}
	run, err := s.Engine.Start(r.Context(), req.ScenarioKey, req.RunID, opts...)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newRunView(run))
}

// GetRun handles GET /runs/{runID}.
func (s *Server) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.Engine.Run(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRunView(run))
}

// DeleteRun handles DELETE /runs/{runID}.
func (s *Server) DeleteRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if err := s.Engine.Delete(r.Context(), runID); err != nil {
		s.writeError(w, err)
		return
	}
	s.Streams.Forget(runID)
	w.WriteHeader(http.StatusNoContent)
}

// ListRuns handles GET /runs.
func (s *Server) ListRuns(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Engine.Runs(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": ids})
}

// Dispatch handles POST /runs/{runID}/actions with a domain.Action body.
func (s *Server) Dispatch(w http.ResponseWriter, r *http.Request) {
	var action domain.Action
	if err := json.NewDecoder(r.Body).Decode(&action); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid action: "+err.Error()))
		return
	}

	run, err := s.Engine.Run(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := run.Dispatch(r.Context(), action); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRunView(run))
}

// Reset handles POST /runs/{runID}/reset.
func (s *Server) Reset(w http.ResponseWriter, r *http.Request) {
	run, err := s.Engine.Run(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := run.Reset(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRunView(run))
}

// ListScenarios handles GET /scenarios.
func (s *Server) ListScenarios(w http.ResponseWriter, r *http.Request) {
	keys, err := s.Engine.Scenarios(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenarios": keys})
}

// GetScenario handles GET /scenarios/{key}.
func (s *Server) GetScenario(w http.ResponseWriter, r *http.Request) {
	sc, err := s.Engine.Scenario(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "hamsfam-http",
		"version": strings.TrimSpace(hamsfam.Version),
	})
}

// WatchScenarios handles GET /events: one event per changed scenario key.
func (s *Server) WatchScenarios(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	events, err := s.Engine.Watch(r.Context())
	if err != nil {
		if errors.Is(err, hamsfam.ErrNotWatchable) {
			writeJSON(w, http.StatusNotImplemented, errorBody(err.Error()))
			return
		}
		s.writeError(w, err)
		return
	}

	setStreamHeaders(w)
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case key, ok := <-events:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: reload\ndata: %s\n\n", key)
			flusher.Flush()
		}
	}
}

// SubscribeEvents handles GET /runs/{runID}/events: a stream of
// domain.RunDiff documents, one per published snapshot. The optional watch
// query (comma separated: steps, slots, forms, status) filters them.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: streaming not supported")
		return
	}

	runID := chi.URLParam(r, "runID")
	if _, err := s.Engine.Run(r.Context(), runID); err != nil {
		s.writeError(w, err)
		return
	}

	var watchList []string
	if watch := r.URL.Query().Get("watch"); watch != "" {
		for _, field := range strings.Split(watch, ",") {
			watchList = append(watchList, strings.TrimSpace(field))
		}
	}

	ch, cancel := s.Streams.Subscribe(runID)
	defer cancel()
	s.logger.Info("SSE: subscribing to run updates", "run_id", runID)

	setStreamHeaders(w)
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE: client disconnected", "run_id", runID)
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.Name == "" && !wanted(ev.Data, watchList) {
				continue
			}
			if ev.Name != "" {
				fmt.Fprintf(w, "event: %s\n", ev.Name)
			}
			fmt.Fprintf(w, "data: %s\n\n", ev.Data)
			flusher.Flush()
		}
	}
}

// wanted reports whether a diff touches one of the watched fields.
func wanted(data string, watchList []string) bool {
	if len(watchList) == 0 {
		return true
	}
	var diff domain.RunDiff
	if err := json.Unmarshal([]byte(data), &diff); err != nil {
		return true
	}
	for _, field := range watchList {
		switch field {
		case "steps":
			if diff.Steps != nil {
				return true
			}
		case "slots":
			if len(diff.Slots) > 0 {
				return true
			}
		case "forms":
			if len(diff.Forms) > 0 {
				return true
			}
		case "status":
			if diff.CurrentNodeID != nil || diff.Finished != nil || diff.LLMDone != nil {
				return true
			}
		}
	}
	return false
}

func setStreamHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

// statusOf maps engine errors to HTTP status codes.
func statusOf(err error) int {
	var verr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrRunNotFound), errors.Is(err, domain.ErrScenarioNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRunBusy),
		errors.Is(err, domain.ErrRunFinished),
		errors.Is(err, domain.ErrRunClosed),
		errors.Is(err, hamsfam.ErrRunConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnexpectedAction), errors.Is(err, domain.ErrNotHydrated):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrEmptyScenario), errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := statusOf(err)
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	writeJSON(w, code, errorBody(err.Error()))
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
