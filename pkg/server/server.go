// Package server exposes the sampler and the photo feed over HTTP
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/kass/go-geofence/pkg/logging"
	"github.com/kass/go-geofence/pkg/metrics"
	"github.com/kass/go-geofence/pkg/models"
	"github.com/kass/go-geofence/pkg/photos"
	"github.com/kass/go-geofence/pkg/sampler"
)

// Options wires the server's collaborators
type Options struct {
	Box       models.BoundingBox
	Container sampler.Container
	Sampler   *sampler.Sampler
	Feed      *photos.Feed
	// Features is reported by /healthz
	Features int
	// MaxBatch caps /api/sample?n=
	MaxBatch   int
	RateLimit  int
	RateWindow time.Duration
}

// Server handles HTTP requests
type Server struct {
	opts   Options
	router chi.Router
	log    zerolog.Logger
}

// New builds the router
func New(opts Options) *Server {
	if opts.MaxBatch <= 0 {
		opts.MaxBatch = 1000
	}

	s := &Server{
		opts: opts,
		log:  logging.With().Str("component", "server").Logger(),
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.accessLog)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		if opts.RateLimit > 0 && opts.RateWindow > 0 {
			r.Use(httprate.LimitByIP(opts.RateLimit, opts.RateWindow))
		}
		r.Get("/photos", s.handlePhotos)
		r.Get("/sample", s.handleSample)
		r.Get("/contains", s.handleContains)
	})

	s.router = r
	return s
}

// Handler returns the root http.Handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type healthResponse struct {
	Status   string `json:"status"`
	Features int    `json:"features"`
}

type containsResponse struct {
	Contained bool `json:"contained"`
	models.Location
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Features: s.opts.Features})
}

func (s *Server) handlePhotos(w http.ResponseWriter, r *http.Request) {
	if s.opts.Feed == nil {
		writeError(w, http.StatusNotFound, "photo feed not configured")
		return
	}

	feed, err := s.opts.Feed.Build(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, feed)
}

func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	n := 1
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > s.opts.MaxBatch {
			writeError(w, http.StatusBadRequest, "n must be an integer between 1 and "+strconv.Itoa(s.opts.MaxBatch))
			return
		}
		n = v
	}

	points := make([]models.Location, 0, n)
	for i := 0; i < n; i++ {
		p, err := s.opts.Sampler.Sample(s.opts.Box, s.opts.Container)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		points = append(points, p)
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleContains(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
	if errLat != nil || errLon != nil {
		writeError(w, http.StatusBadRequest, "lat and lon must be numbers")
		return
	}

	p := models.Location{Lat: lat, Lon: lon}
	writeJSON(w, http.StatusOK, containsResponse{
		Contained: s.opts.Container.Contains(p),
		Location:  p,
	})
}

// fail maps sampler errors to status codes
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, sampler.ErrSamplingExhausted) {
		status = http.StatusServiceUnavailable
	}
	s.log.Error().Err(err).
		Str("path", r.URL.Path).
		Str("request_id", chimiddleware.GetReqID(r.Context())).
		Msg("request failed")
	writeError(w, status, err.Error())
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.ObserveRequest(route, status)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Msg("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
