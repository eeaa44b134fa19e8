// Package server exposes the HorizonSum review API over HTTP.
//
// The API accepts pipeline runs, reports their progress, serves finished
// results, and supports the review loop: regenerating summary drafts,
// searching transcripts, and managing prompt templates. Stage changes can be
// watched live over a WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hzn-labs/horizonsum/internal/health"
	"github.com/hzn-labs/horizonsum/internal/observe"
	"github.com/hzn-labs/horizonsum/internal/pipeline"
	"github.com/hzn-labs/horizonsum/internal/session"
	"github.com/hzn-labs/horizonsum/internal/summarize"
	"github.com/hzn-labs/horizonsum/internal/term"
)

// Runner processes one pipeline run to completion. Implemented by
// [pipeline.Pipeline].
type Runner interface {
	Process(ctx context.Context, req pipeline.Request) error
}

// TranscriptSearcher is the optional full-text search capability of a run
// store, returning the transcript lines that match the query. The PostgreSQL
// store implements it; for other stores the server falls back to a substring
// match.
type TranscriptSearcher interface {
	SearchTranscript(ctx context.Context, id, query string) ([]string, error)
}

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	store      session.Store
	runner     Runner
	summarizer *summarize.Summarizer
	templates  *summarize.TemplateStore
	broadcast  *session.Broadcaster
	dict       *term.Dictionary

	log            *slog.Logger
	health         *health.Handler
	metrics        *observe.Metrics
	generationsMax int
}

// Option is a functional option for [New].
type Option func(*Server)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithHealth sets the health handler registered at /healthz and /readyz.
// Default: a handler with no readiness checks.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithMetrics sets the metrics instance used by the HTTP middleware.
// Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithGenerationsMax caps the number of summary variants a run may request.
// Default: 5.
func WithGenerationsMax(n int) Option {
	return func(s *Server) { s.generationsMax = n }
}

// New creates a Server. The dictionary may be nil when no terminology file is
// configured.
func New(
	store session.Store,
	runner Runner,
	summarizer *summarize.Summarizer,
	templates *summarize.TemplateStore,
	broadcast *session.Broadcaster,
	dict *term.Dictionary,
	opts ...Option,
) *Server {
	s := &Server{
		store:          store,
		runner:         runner,
		summarizer:     summarizer,
		templates:      templates,
		broadcast:      broadcast,
		dict:           dict,
		log:            slog.Default(),
		health:         health.New(),
		generationsMax: 5,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the full route tree wrapped in the observability and CORS
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/runs", s.handleCreateRun)
	mux.HandleFunc("GET /api/runs", s.handleListRuns)
	mux.HandleFunc("GET /api/runs/{id}/status", s.handleStatus)
	mux.HandleFunc("GET /api/runs/{id}/results", s.handleResults)
	mux.HandleFunc("POST /api/runs/{id}/summary", s.handleSaveFinalSummary)
	mux.HandleFunc("POST /api/runs/{id}/summaries", s.handleRegenerateSummary)
	mux.HandleFunc("POST /api/runs/{id}/search", s.handleSearch)
	mux.HandleFunc("GET /api/runs/{id}/watch", s.handleWatch)
	mux.HandleFunc("GET /api/prompts", s.handleListPrompts)
	mux.HandleFunc("POST /api/prompts", s.handleAddPrompt)

	s.health.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	metrics := s.metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return observe.Middleware(metrics)(cors(mux))
}

// ─── Run lifecycle ───────────────────────────────────────────────────────────

type createRunRequest struct {
	URL         string `json:"url"`
	Template    string `json:"template"`
	Generations int    `json:"generations"`
}

type runStatusResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Stage     string `json:"stage"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	u, err := url.Parse(strings.TrimSpace(req.URL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		writeError(w, http.StatusBadRequest, "url must be a valid http(s) URL")
		return
	}
	if req.Template == "" {
		req.Template = summarize.DefaultTemplateName
	}
	if req.Generations < 1 {
		req.Generations = 1
	}
	if req.Generations > s.generationsMax {
		req.Generations = s.generationsMax
	}

	run := &session.Run{
		ID:          uuid.NewString(),
		URL:         u.String(),
		Template:    req.Template,
		Generations: req.Generations,
		Stage:       session.StageQueued,
	}
	if err := s.store.Create(r.Context(), run); err != nil {
		s.log.Error("create run", "error", err)
		writeError(w, http.StatusInternalServerError, "could not create run")
		return
	}

	// The run outlives the request; detach it from the request context.
	go func() {
		err := s.runner.Process(context.WithoutCancel(r.Context()), pipeline.Request{
			RunID:       run.ID,
			URL:         run.URL,
			Template:    run.Template,
			Generations: run.Generations,
		})
		if err != nil {
			s.log.Error("run failed", "run_id", run.ID, "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, statusOf(run))
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.List(r.Context())
	if err != nil {
		s.log.Error("list runs", "error", err)
		writeError(w, http.StatusInternalServerError, "could not list runs")
		return
	}
	statuses := make([]runStatusResponse, 0, len(runs))
	for _, run := range runs {
		statuses = append(statuses, statusOf(run))
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	run, ok := s.getRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, statusOf(run))
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	run, ok := s.getRun(w, r)
	if !ok {
		return
	}
	if run.Stage != session.StageCompleted {
		writeError(w, http.StatusConflict, "run is not completed; current stage: "+string(run.Stage))
		return
	}
	writeJSON(w, http.StatusOK, run.Results)
}

// ─── Review operations ───────────────────────────────────────────────────────

type finalSummaryRequest struct {
	FinalSummary string `json:"final_summary"`
}

func (s *Server) handleSaveFinalSummary(w http.ResponseWriter, r *http.Request) {
	var req finalSummaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.FinalSummary) == "" {
		writeError(w, http.StatusBadRequest, "final_summary must not be empty")
		return
	}

	run, ok := s.getRun(w, r)
	if !ok {
		return
	}
	if run.Stage != session.StageCompleted {
		writeError(w, http.StatusConflict, "run is not completed; current stage: "+string(run.Stage))
		return
	}

	if err := s.store.SetFinalSummary(r.Context(), run.ID, req.FinalSummary); err != nil {
		s.log.Error("save final summary", "run_id", run.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not persist final summary")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

type regenerateRequest struct {
	Template string `json:"template"`
}

func (s *Server) handleRegenerateSummary(w http.ResponseWriter, r *http.Request) {
	run, ok := s.getRun(w, r)
	if !ok {
		return
	}
	if run.Results == nil || run.Results.Transcript == "" {
		writeError(w, http.StatusConflict, "run has no transcript to summarize yet")
		return
	}

	var req regenerateRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	tmpl := req.Template
	if tmpl == "" {
		tmpl = run.Template
	}

	drafts, err := s.summarizer.Generate(r.Context(), tmpl, run.Results.Transcript, run.Results.Topics, s.dict, 1)
	if err != nil {
		s.log.Error("regenerate summary", "run_id", run.ID, "error", err)
		writeError(w, http.StatusBadGateway, "summary generation failed")
		return
	}

	if err := s.store.AppendSummary(r.Context(), run.ID, drafts[0]); err != nil {
		s.log.Error("append summary", "run_id", run.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not persist summary")
		return
	}
	if s.metrics != nil {
		s.metrics.SummariesGenerated.Add(r.Context(), 1)
	}

	writeJSON(w, http.StatusCreated, map[string]string{"summary": drafts[0]})
}

type searchRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query must not be empty")
		return
	}
	id := r.PathValue("id")

	// Prefer the store's native full-text search when available.
	if searcher, ok := s.store.(TranscriptSearcher); ok {
		lines, err := searcher.SearchTranscript(r.Context(), id, req.Query)
		if err != nil {
			s.writeStoreError(w, err, "search transcript")
			return
		}
		writeJSON(w, http.StatusOK, map[string][]string{"matching_lines": lines})
		return
	}

	run, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err, "get run")
		return
	}
	lines := []string{}
	if run.Results != nil {
		needle := strings.ToLower(req.Query)
		for _, line := range strings.Split(run.Results.Transcript, "\n") {
			if strings.Contains(strings.ToLower(line), needle) {
				lines = append(lines, line)
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"matching_lines": lines})
}

// ─── Prompt templates ────────────────────────────────────────────────────────

type addPromptRequest struct {
	Name string `json:"name"`
	Body string `json:"body"`
}

func (s *Server) handleListPrompts(w http.ResponseWriter, _ *http.Request) {
	names, err := s.templates.List()
	if err != nil {
		s.log.Error("list prompts", "error", err)
		writeError(w, http.StatusInternalServerError, "could not list prompts")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"prompts": names})
}

func (s *Server) handleAddPrompt(w http.ResponseWriter, r *http.Request) {
	var req addPromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.templates.Add(req.Name, req.Body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"name": req.Name})
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// getRun loads the run addressed by the {id} path segment, writing the error
// response itself when the lookup fails.
func (s *Server) getRun(w http.ResponseWriter, r *http.Request) (*session.Run, bool) {
	run, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, err, "get run")
		return nil, false
	}
	return run, true
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error, op string) {
	if errors.Is(err, session.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"status": "not_found"})
		return
	}
	s.log.Error(op, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func statusOf(run *session.Run) runStatusResponse {
	return runStatusResponse{
		ID:        run.ID,
		Status:    coarseStatus(run.Stage),
		Stage:     string(run.Stage),
		Error:     run.Error,
		CreatedAt: run.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt: run.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// coarseStatus collapses the pipeline stage into the reviewer-facing status
// enum: anything not terminal is still processing.
func coarseStatus(stage session.Stage) string {
	switch stage {
	case session.StageCompleted:
		return "completed"
	case session.StageError:
		return "error"
	default:
		return "processing"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failure"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// cors allows the review UI to call the API from another origin.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
