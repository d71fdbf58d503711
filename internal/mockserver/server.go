// Package mockserver serves a contract's mock responses over HTTP.
package mockserver

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/PentesterFlow/OpenContract/internal/contract"
	"github.com/PentesterFlow/OpenContract/internal/logger"
	"github.com/PentesterFlow/OpenContract/internal/metrics"
)

// Config controls the mock server.
type Config struct {
	Addr      string        `json:"addr" yaml:"addr" koanf:"addr"`
	Latency   time.Duration `json:"latency" yaml:"latency" koanf:"latency"`
	RateLimit float64       `json:"rate_limit" yaml:"rate_limit" koanf:"rate_limit"`
	Burst     int           `json:"burst" yaml:"burst" koanf:"burst"`
	Seed      int64         `json:"-" yaml:"-" koanf:"-"`
}

// DefaultConfig returns the default server settings: no latency and no throttling.
func DefaultConfig() Config {
	return Config{Addr: "127.0.0.1:3000", Burst: 10}
}

// Server answers every contract endpoint with its mock envelope.
type Server struct {
	cfg     Config
	router  *chi.Mux
	limiter *rate.Limiter
	log     *logger.Logger
	metrics *metrics.Collector

	mu  sync.Mutex
	rnd *rand.Rand

	routes int
}

var placeholderRe = regexp.MustCompile(`\{[^{}/]+\}`)

// routePattern gives placeholders positional names so that paths differing
// only in parameter names share one chi route.
func routePattern(path string) string {
	n := 0
	return placeholderRe.ReplaceAllStringFunc(path, func(string) string {
		n++
		return "{p" + strconv.Itoa(n) + "}"
	})
}

// New builds a server for snap.
func New(snap *contract.Snapshot, cfg Config, log *logger.Logger, m *metrics.Collector) *Server {
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.New()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	s := &Server{
		cfg:     cfg,
		router:  chi.NewRouter(),
		log:     log.WithComponent("mockserver"),
		metrics: m,
		rnd:     rand.New(rand.NewSource(seed)),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	s.router.Use(middleware.Recoverer)
	s.router.Use(s.record)
	if s.limiter != nil {
		s.router.Use(s.throttle)
	}
	if cfg.Latency > 0 {
		s.router.Use(s.delay)
	}

	registered := make(map[string]bool)
	for i := range snap.Endpoints {
		ep := snap.Endpoints[i]
		pattern := routePattern(ep.Path)
		id := ep.Method + " " + pattern
		if registered[id] {
			s.log.WithField("endpoint", ep.Name).Debugf("route %s already served", id)
			continue
		}
		registered[id] = true
		s.router.MethodFunc(ep.Method, pattern, s.handler(ep))
		s.routes++
	}

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusNotFound, envelope(404, nil, "no mock for "+r.Method+" "+r.URL.Path))
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusMethodNotAllowed, envelope(405, nil, "method not allowed"))
	})
	return s
}

// Routes returns the number of registered routes.
func (s *Server) Routes() int {
	return s.routes
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.cfg.Addr).WithField("routes", s.routes).Info("mock server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		s.metrics.RecordMockRequest(rec.status)
		s.log.WithFields(map[string]interface{}{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		}).Debug("mock request")
	})
}

func (s *Server) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			s.metrics.RecordThrottled()
			writeEnvelope(w, http.StatusTooManyRequests, envelope(429, nil, "too many requests"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) delay(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(s.cfg.Latency):
		case <-r.Context().Done():
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) coin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64() > 0.5
}

func (s *Server) handler(ep contract.Endpoint) http.HandlerFunc {
	bearer := false
	for _, h := range ep.Headers {
		if h.Name == "Authorization" {
			bearer = true
		}
	}
	okStatus, okBody := successOf(&ep)
	errStatus, errBody := failureOf(&ep)
	paged := ep.Paginated()

	return func(w http.ResponseWriter, r *http.Request) {
		if bearer && !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			writeEnvelope(w, http.StatusUnauthorized, envelope(401, nil, "token is invalid or expired"))
			return
		}

		fail := false
		switch ep.MockStrategy {
		case contract.StrategyError:
			fail = true
		case contract.StrategyRandom:
			fail = !s.coin()
		}
		if fail {
			writeEnvelope(w, errStatus, errBody)
			return
		}

		body := okBody
		if paged {
			body = withPage(okBody, queryInt(r, "page", 1), queryInt(r, "pageSize", 10))
		}
		writeEnvelope(w, okStatus, body)
	}
}

func envelope(code int, data interface{}, message string) map[string]interface{} {
	return map[string]interface{}{"code": code, "data": data, "message": message}
}

func successOf(ep *contract.Endpoint) (int, interface{}) {
	for _, r := range ep.Responses {
		if r.Status >= 200 && r.Status < 300 {
			if r.Example != nil {
				return r.Status, r.Example
			}
			return r.Status, envelope(r.Status, map[string]interface{}{}, "success")
		}
	}
	return http.StatusOK, envelope(200, map[string]interface{}{}, "success")
}

func failureOf(ep *contract.Endpoint) (int, interface{}) {
	for _, e := range ep.Errors {
		if e.Example != nil {
			return e.Status, e.Example
		}
		return e.Status, envelope(e.Status, nil, e.Message)
	}
	return http.StatusBadRequest, envelope(400, nil, "invalid request parameters")
}

func queryInt(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// withPage copies a paginated envelope with the requested page and pageSize.
func withPage(body interface{}, page, pageSize int) interface{} {
	env, ok := body.(map[string]interface{})
	if !ok {
		return body
	}
	data, ok := env["data"].(map[string]interface{})
	if !ok {
		return body
	}

	out := make(map[string]interface{}, len(env))
	for k, v := range env {
		out[k] = v
	}
	pageData := make(map[string]interface{}, len(data))
	for k, v := range data {
		pageData[k] = v
	}
	pageData["page"] = page
	pageData["pageSize"] = pageSize
	out["data"] = pageData
	return out
}

func writeEnvelope(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(body)
}
