// Package dashboard serves trace history over HTTP: a small web UI, a
// JSON API, a live websocket feed, and Prometheus metrics.
package dashboard

import (
	"context"
	"embed"
	"encoding/json"
	"io/fs"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hbagdi/tracepulse/pkg/analyzer"
	"github.com/hbagdi/tracepulse/pkg/db"
	"github.com/hbagdi/tracepulse/pkg/tracer"
)

//go:embed static
var staticFS embed.FS

type Server struct {
	store   *db.Store
	tracer  *tracer.Tracer
	logger  *zap.Logger
	metrics *metrics

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}

	upgrader websocket.Upgrader
	handler  http.Handler
}

type Opts struct {
	Store *db.Store
	// Tracer runs the traces requested through the UI; a default Tracer
	// is used when nil.
	Tracer *tracer.Tracer
	Logger *zap.Logger
	// Registry overrides the metrics registry; the default registry is
	// used when nil.
	Registry *prometheus.Registry
}

func NewServer(opts Opts) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	var reg prometheus.Registerer = prometheus.DefaultRegisterer
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if opts.Registry != nil {
		reg = opts.Registry
		gatherer = opts.Registry
	}
	tr := opts.Tracer
	if tr == nil {
		tr = tracer.New()
	}
	s := &Server{
		store:   opts.Store,
		tracer:  tr,
		logger:  logger,
		metrics: newMetrics(reg),
		clients: map[*websocket.Conn]struct{}{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(static)))
	mux.HandleFunc("/api/trace", s.handleTrace)
	mux.HandleFunc("/api/traces", s.handleTraces)
	mux.HandleFunc("/api/urls", s.handleURLs)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/trend", s.handleTrend)
	mux.HandleFunc("/api/regressions", s.handleRegressions)
	mux.HandleFunc("/api/live", s.handleLive)
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer,
		promhttp.HandlerOpts{}))
	s.handler = mux
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Run serves until ctx is canceled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("dashboard listening", zap.String("addr", addr))
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(),
			5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", zap.Error(err))
	}
}

type traceRequest struct {
	URL             string            `json:"url"`
	Method          string            `json:"method"`
	Headers         map[string]string `json:"headers"`
	Body            string            `json:"body"`
	FollowRedirects bool              `json:"follow_redirects"`
	Label           string            `json:"label"`
}

// handleTrace runs a trace on behalf of the UI, stores the result, and
// feeds it to the live clients and metrics.
func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	var in traceRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if in.URL == "" {
		http.Error(w, "url required", http.StatusBadRequest)
		return
	}
	label := in.Label
	if label == "" {
		label = "dashboard"
	}

	b := s.tracer.Trace(r.Context(), tracer.Request{
		URL:             in.URL,
		Method:          in.Method,
		Headers:         in.Headers,
		Body:            in.Body,
		FollowRedirects: in.FollowRedirects,
	})
	if _, err := s.store.SaveTrace(r.Context(), b, label); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.Broadcast(b)
	s.writeJSON(w, b)
}

func (s *Server) handleTraces(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	traces, err := s.store.ListTraces(r.Context(), db.ListOpts{
		URL:   r.URL.Query().Get("url"),
		Label: r.URL.Query().Get("label"),
		Limit: limit,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if traces == nil {
		traces = []db.Trace{}
	}
	s.writeJSON(w, traces)
}

func (s *Server) handleURLs(w http.ResponseWriter, r *http.Request) {
	urls, err := s.store.ListURLs(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if urls == nil {
		urls = []string{}
	}
	s.writeJSON(w, urls)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		http.Error(w, "url parameter required", http.StatusBadRequest)
		return
	}
	stats, err := s.store.Stats(r.Context(), url)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	percentiles, err := s.store.Percentiles(r.Context(), url)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, map[string]interface{}{
		"url":         url,
		"stats":       stats,
		"percentiles": percentiles,
	})
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		http.Error(w, "url parameter required", http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	traces, err := s.store.ListTraces(r.Context(), db.ListOpts{
		URL:   url,
		Limit: limit,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, analyzer.Trend(traces))
}

func (s *Server) handleRegressions(w http.ResponseWriter, r *http.Request) {
	urls, err := s.store.ListURLs(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	res := []regressionJSON{}
	for _, url := range urls {
		traces, err := s.store.ListTraces(r.Context(), db.ListOpts{
			URL:   url,
			Limit: 100,
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		for _, reg := range analyzer.DetectRegressions(traces, 0, 0) {
			res = append(res, regressionJSON{
				URL:        reg.URL,
				Phase:      reg.Phase,
				BaselineMs: reg.BaselineMs,
				CurrentMs:  reg.CurrentMs,
				ChangePct:  reg.ChangePct,
				Severity:   reg.Severity,
				Message:    reg.Message,
			})
		}
	}
	s.writeJSON(w, res)
}

type regressionJSON struct {
	URL        string  `json:"url"`
	Phase      string  `json:"phase"`
	BaselineMs float64 `json:"baseline_ms"`
	CurrentMs  float64 `json:"current_ms"`
	ChangePct  float64 `json:"change_pct"`
	Severity   string  `json:"severity"`
	Message    string  `json:"message"`
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade", zap.Error(err))
		return
	}
	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	// Drain control frames; the feed is write-only.
	go func() {
		defer s.dropClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) dropClient(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	conn.Close()
}

// Broadcast records the breakdown in metrics and pushes it to every
// connected websocket client.
func (s *Server) Broadcast(b *tracer.TimingBreakdown) {
	s.metrics.observe(b)

	js, err := json.Marshal(b)
	if err != nil {
		s.logger.Error("marshal live trace", zap.Error(err))
		return
	}
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		if err := c.WriteMessage(websocket.TextMessage, js); err != nil {
			s.dropClient(c)
		}
	}
}

// ClientCount reports the number of live websocket subscribers.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}
