// Package server exposes the escrow coordinator and the read models
// over HTTP/JSON. Write endpoints forward to the coordinator; read
// endpoints are served from the Postgres projections, except for the
// live-state endpoint which reads the coordinator directly.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/GiG2Hire/gig-contract/internal/escrow"
	"github.com/GiG2Hire/gig-contract/internal/observability"
	"github.com/GiG2Hire/gig-contract/internal/query"
)

type Server struct {
	coordinator *escrow.Coordinator
	queries     *query.Service
	health      *observability.HealthChecker
	metrics     *observability.Metrics
	log         zerolog.Logger
}

func New(
	coordinator *escrow.Coordinator,
	queries *query.Service,
	health *observability.HealthChecker,
	metrics *observability.Metrics,
) *Server {
	return &Server{
		coordinator: coordinator,
		queries:     queries,
		health:      health,
		metrics:     metrics,
		log:         observability.NewLogger("server"),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(s.instrument)

	r.Get("/healthz", s.health.LivenessHandler)
	r.Get("/readyz", s.health.ReadinessHandler)

	r.Route("/v1", func(api chi.Router) {
		api.Post("/proposals", s.handleOpenProposal)
		api.Post("/proposals/{id}/close", s.handleCloseProposal)
		api.Post("/native/receive", s.handleReceiveNative)

		api.Post("/admin/float/withdraw", s.handleWithdrawFloat)
		api.Post("/admin/native/withdraw", s.handleWithdrawNative)
		api.Post("/admin/wallet", s.handleChangeAdmin)

		api.Get("/state", s.handleState)
		api.Get("/proposals/{id}", s.handleGetProposal)
		api.Get("/proposals", s.handleListProposals)
		api.Get("/events", s.handleGetEvents)
		api.Get("/transfers", s.handleGetTransfers)
		api.Get("/float", s.handleFloatSummary)
		api.Get("/integrity", s.handleIntegrity)
	})

	return r
}

// instrument records per-route request counts and latency.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(ww.Status())).Inc()
		s.metrics.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn().Err(err).Msg("response encode failed")
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps domain errors to HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, escrow.ErrAmountIsZero),
		errors.Is(err, escrow.ErrIncorrectAmount),
		errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, escrow.ErrIncorrectWallet):
		status = http.StatusForbidden
	case errors.Is(err, escrow.ErrUnknownProposal),
		errors.Is(err, query.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, escrow.ErrDuplicateIdentifier):
		status = http.StatusConflict
	case errors.Is(err, escrow.ErrTransferFailed):
		status = http.StatusUnprocessableEntity
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}
