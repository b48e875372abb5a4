// Package web serves a read-only HTTP view of a trace filtered by its
// persisted visibility set.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"io/fs"
	"net/http"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"calltrace/internal/model"
	"calltrace/internal/trace"
	"calltrace/internal/visibility"

	"github.com/cockroachdb/errors"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed static/*
var staticFS embed.FS

//go:embed help.md
var helpMD string

// DefaultRadius is the number of source lines shown around a location.
const DefaultRadius = 3

// TraceReader re-reads the trace text in full.
type TraceReader interface {
	Read() (string, error)
}

// VisibilityLoader loads the persisted visibility set.
type VisibilityLoader interface {
	Load() (*visibility.Info, error)
}

// Server answers API requests. Every request re-reads the trace and the
// visibility file; nothing is ever written.
type Server struct {
	source  TraceReader
	store   VisibilityLoader
	root    string // Directory that relative source locations resolve against
	logger  logr.Logger
	metrics *metrics
	mux     *http.ServeMux
}

// NewServer builds the handler tree and registers metrics with reg. A nil
// reg gets a private registry with the default Go collector.
func NewServer(source TraceReader, store VisibilityLoader, root string, logger logr.Logger, reg *prometheus.Registry) *Server {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
	}
	s := &Server{
		source:  source,
		store:   store,
		root:    root,
		logger:  logger,
		metrics: registerMetrics(reg),
		mux:     http.NewServeMux(),
	}

	// Serve static files
	subFS, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/", http.FileServer(http.FS(subFS)))

	// API Endpoints
	s.handle("/api/trace", s.handleTrace)
	s.handle("/api/visibility", s.handleVisibility)
	s.handle("/api/summary", s.handleSummary)
	s.handle("/api/line-context", s.handleLineContext)
	s.handle("/api/help", s.handleHelp)

	s.mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return s
}

func (s *Server) handle(pattern string, h http.HandlerFunc) {
	counter := s.metrics.requestCount.With(prometheus.Labels{endpointLabel: pattern})
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		counter.Inc()
		h(w, r)
	})
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting web server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrapf(err, "could not start HTTP server on %s", addr)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "web server shutdown")
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// snapshot is one consistent read of the trace and its visibility.
type snapshot struct {
	info    *visibility.Info
	lines   []trace.RenderLine
	summary trace.Summary
}

func (s *Server) load() (snapshot, error) {
	text, err := s.source.Read()
	if err != nil {
		return snapshot{}, err
	}
	info, err := s.store.Load()
	if err != nil {
		return snapshot{}, err
	}
	info = visibility.Reconcile(info, text)
	snap := snapshot{
		info:    info,
		lines:   trace.Filter(text, info.Map()),
		summary: trace.Summarize(text),
	}
	s.metrics.observeSnapshot(snap)
	return snap, nil
}

// loadOrFail loads a snapshot, writing the error response on failure.
func (s *Server) loadOrFail(w http.ResponseWriter) (snapshot, bool) {
	snap, err := s.load()
	if err != nil {
		s.metrics.loadErrorCount.Inc()
		s.logger.Error(err, "failed to load trace")
		http.Error(w, err.Error(), statusFor(err))
		return snapshot{}, false
	}
	return snap, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrFormat):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrPermission):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error(err, "failed to write response")
	}
}

func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.loadOrFail(w)
	if !ok {
		return
	}
	lines := snap.lines
	if lines == nil {
		lines = []trace.RenderLine{}
	}
	s.writeJSON(w, struct {
		Lines      []trace.RenderLine `json:"lines"`
		TotalLines int                `json:"total_lines"`
		Version    string             `json:"version"`
	}{
		Lines:      lines,
		TotalLines: snap.summary.Lines,
		Version:    model.Version,
	})
}

func (s *Server) handleVisibility(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.loadOrFail(w)
	if !ok {
		return
	}
	entries := snap.info.Entries
	if q := r.URL.Query().Get("q"); q != "" {
		m, err := compilePattern(q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		entries = snap.info.Filtered(m)
	}
	if entries == nil {
		entries = []visibility.Entry{}
	}
	s.writeJSON(w, entries)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.loadOrFail(w)
	if !ok {
		return
	}
	s.writeJSON(w, struct {
		trace.Summary
		Balanced     bool `json:"balanced"`
		VisibleLines int  `json:"visible_lines"`
		Hidden       int  `json:"hidden_functions"`
	}{
		Summary:      snap.summary,
		Balanced:     snap.summary.Balanced(),
		VisibleLines: len(snap.lines),
		Hidden:       countHidden(snap.info),
	})
}

func compilePattern(p string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(p)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "invalid search pattern %q", p), model.ErrPattern)
	}
	return re, nil
}

func countHidden(info *visibility.Info) int {
	n := 0
	for _, e := range info.Entries {
		if !e.Visibility {
			n++
		}
	}
	return n
}

func (s *Server) handleLineContext(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	path := q.Get("path")
	lineNumStr := q.Get("line")
	if path == "" || lineNumStr == "" {
		http.Error(w, "path and line are required", http.StatusBadRequest)
		return
	}

	lineNum, err := strconv.Atoi(lineNumStr)
	if err != nil {
		http.Error(w, "invalid line number", http.StatusBadRequest)
		return
	}
	radius := DefaultRadius
	if rs := q.Get("radius"); rs != "" {
		if radius, err = strconv.Atoi(rs); err != nil || radius < 0 {
			http.Error(w, "invalid radius", http.StatusBadRequest)
			return
		}
	}

	if !filepath.IsAbs(path) && !strings.HasPrefix(path, "~") {
		path = filepath.Join(s.root, path)
	}
	s.writeJSON(w, model.GetLineContext(path, lineNum, radius))
}

func (s *Server) handleHelp(w http.ResponseWriter, r *http.Request) {
	text := strings.ReplaceAll(helpMD, "{{VERSION}}", model.Version)

	w.Header().Set("Content-Type", "text/markdown")
	_, _ = w.Write([]byte(text))
}
