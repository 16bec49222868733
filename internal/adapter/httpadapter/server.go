package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/baidu-place-harvester/internal/adapter/baidu"
	"github.com/couchcryptid/baidu-place-harvester/internal/domain"
)

// lookupTimeout bounds a single geocode or reverse lookup, retries included.
const lookupTimeout = 15 * time.Second

// Server exposes health, readiness, metrics, and geocoding lookup endpoints.
type Server struct {
	httpServer *http.Server
	geocoder   domain.Geocoder
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, and /metrics
// routes. When geocoder is non-nil it also serves GET /geocode and
// GET /reverse.
func NewServer(addr string, ready sharedobs.ReadinessChecker, geocoder domain.Geocoder, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: lookupTimeout + 5*time.Second,
			IdleTimeout:  60 * time.Second,
		},
		geocoder: geocoder,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	if geocoder != nil {
		mux.HandleFunc("GET /geocode", s.handleGeocode)
		mux.HandleFunc("GET /reverse", s.handleReverse)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if address == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), lookupTimeout)
	defer cancel()

	loc, err := s.geocoder.Geocode(ctx, address, r.URL.Query().Get("city"))
	if err != nil {
		s.writeLookupError(w, "geocode", err)
		return
	}
	if loc == nil {
		writeError(w, http.StatusNotFound, "no result")
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

func (s *Server) handleReverse(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p, err := domain.ParsePoint(q.Get("location"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts := domain.ReverseOptions{CoordType: domain.CoordType(q.Get("coordtype"))}
	if v := q.Get("pois"); v != "" {
		if opts.IncludePOIs, err = strconv.ParseBool(v); err != nil {
			writeError(w, http.StatusBadRequest, "pois must be a boolean")
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), lookupTimeout)
	defer cancel()

	res, err := s.geocoder.Reverse(ctx, p, opts)
	if err != nil {
		s.writeLookupError(w, "reverse", err)
		return
	}
	if res == nil {
		writeError(w, http.StatusNotFound, "no result")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) writeLookupError(w http.ResponseWriter, method string, err error) {
	status := lookupStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("lookup failed", "method", method, "error", err)
	}
	writeError(w, status, err.Error())
}

// lookupStatus maps adapter errors to HTTP status codes.
func lookupStatus(err error) int {
	switch {
	case errors.Is(err, baidu.ErrQuery):
		return http.StatusBadRequest
	case errors.Is(err, baidu.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, baidu.ErrTimedOut):
		return http.StatusGatewayTimeout
	case errors.Is(err, baidu.ErrServiceUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
