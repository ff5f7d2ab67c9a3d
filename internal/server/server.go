// Package server exposes the agent over HTTP for the browser side panel and
// the playground frontend.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/nbenliogludev/go-web-agent/internal/agent"
	"github.com/nbenliogludev/go-web-agent/internal/browser"
	"github.com/nbenliogludev/go-web-agent/internal/config"
	"github.com/nbenliogludev/go-web-agent/internal/llm"
	"github.com/nbenliogludev/go-web-agent/internal/tools"
)

const (
	eventToolResult = agent.EventToolResult
	eventComplete   = agent.EventComplete
	eventError      = "error"
)

// Request is the body of POST /automate and POST /automate/stream. Empty
// fields fall back to the server's agent configuration.
type Request struct {
	StartingURL     string   `json:"starting_url"`
	Goal            string   `json:"goal"`
	Plan            string   `json:"plan"`
	Model           string   `json:"model"`
	Features        string   `json:"features"`
	ElementsFilter  string   `json:"elements_filter"`
	BranchingFactor int      `json:"branching_factor"`
	AgentType       string   `json:"agent_type"`
	ToolNames       []string `json:"tool_names"`
	LogFolder       string   `json:"log_folder"`
}

type Options struct {
	Agent       config.AgentConfig
	Model       string
	VisionModel string
	LLM         llm.Completer
	Pages       browser.PageProvider
	Registry    *tools.Registry
	Log         *slog.Logger
	// Out receives prompt agent progress. Nil discards it.
	Out io.Writer
}

// Server runs one agent at a time on the shared page.
type Server struct {
	opts Options
	log  *slog.Logger
	run  sync.Mutex
}

func New(opts Options) *Server {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.Registry == nil {
		opts.Registry = tools.NewRegistry()
	}
	return &Server{opts: opts, log: opts.Log}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /automate", s.handleAutomate)
	mux.HandleFunc("POST /automate/stream", s.handleStream)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return withCORS(mux)
}

// withCORS lets the browser extension call the API from its own origin.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		s.log.Info("server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAutomate(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if !s.run.TryLock() {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "an automation is already running"})
		return
	}
	defer s.run.Unlock()

	res, err := s.execute(r.Context(), req, nil)
	if err != nil {
		var unsupported *agent.UnsupportedAgentTypeError
		if errors.As(err, &unsupported) {
			writeJSON(w, http.StatusBadRequest, unsupported.Payload())
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": res.Message()})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if !s.run.TryLock() {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "an automation is already running"})
		return
	}
	defer s.run.Unlock()

	st := newStream(w)
	w.WriteHeader(http.StatusOK)

	var completed bool
	observer := func(e agent.Event) {
		var err error
		switch e.Type {
		case agent.EventToolResult:
			err = st.toolResult(e.Content)
		case agent.EventComplete:
			completed = true
			var contents []string
			if e.Response != nil {
				for _, ch := range e.Response.Choices {
					contents = append(contents, ch.Message.Content)
				}
			}
			err = st.complete(contents...)
		}
		if err != nil {
			s.log.Warn("stream write failed", "event", e.Type, "err", err)
		}
	}

	res, err := s.execute(r.Context(), req, observer)
	if err != nil {
		if serr := st.fail(err); serr != nil {
			s.log.Warn("stream write failed", "event", eventError, "err", serr)
		}
		return
	}
	// the prompt agent reports without a completion response
	if !completed {
		if serr := st.complete(res.Message()); serr != nil {
			s.log.Warn("stream write failed", "event", eventComplete, "err", serr)
		}
	}
}

// execute sets up the agent for req and runs it. A prompt agent that hits
// its step limit still counts as a result.
func (s *Server) execute(ctx context.Context, req Request, observer agent.Observer) (*agent.Result, error) {
	start := time.Now()
	opts := s.options(req)
	log := s.log.With("agent", opts.AgentType)
	log.Info("automation started", "goal", opts.Goal, "starting_url", opts.StartingURL)

	a, err := agent.Setup(ctx, opts, agent.Deps{
		LLM:      s.opts.LLM,
		Pages:    s.opts.Pages,
		Registry: s.opts.Registry,
		Log:      log,
		Observer: observer,
		Out:      s.opts.Out,
		Confirm:  agent.DenyAll,
	})
	if err != nil {
		return nil, err
	}

	res, err := a.SendPrompt(ctx, req.Plan)
	if errors.Is(err, agent.ErrMaxSteps) && res != nil {
		log.Warn("automation hit step limit", "steps", res.Steps)
		err = nil
	}
	if err != nil {
		log.Error("automation failed", "err", err, "duration", time.Since(start))
		return nil, err
	}
	log.Info("automation finished", "duration", time.Since(start))
	return res, nil
}

func (s *Server) options(req Request) agent.Options {
	cfg := s.opts.Agent
	opts := agent.Options{
		StartingURL:     req.StartingURL,
		Goal:            req.Goal,
		Model:           firstNonEmpty(req.Model, s.opts.Model),
		VisionModel:     s.opts.VisionModel,
		AgentType:       firstNonEmpty(req.AgentType, cfg.Type),
		ToolNames:       cfg.Tools,
		Features:        cfg.Features,
		ElementsFilter:  firstNonEmpty(req.ElementsFilter, cfg.ElementsFilter),
		BranchingFactor: cfg.BranchingFactor,
		LogFolder:       firstNonEmpty(req.LogFolder, cfg.LogFolder),
		MemoryPath:      cfg.MemoryPath,
		MaxSteps:        cfg.MaxSteps,
	}
	if req.ToolNames != nil {
		opts.ToolNames = req.ToolNames
	}
	if f := config.SplitList(req.Features); len(f) > 0 {
		opts.Features = f
	}
	if req.BranchingFactor > 0 {
		opts.BranchingFactor = req.BranchingFactor
	}
	return opts
}

func decodeRequest(r *http.Request) (Request, error) {
	var req Request
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(&req); err != nil {
		return req, fmt.Errorf("invalid request body: %w", err)
	}
	if strings.TrimSpace(req.Goal) == "" {
		return req, errors.New("goal is required")
	}
	return req, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
