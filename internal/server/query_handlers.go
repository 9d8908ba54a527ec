package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/GiG2Hire/gig-contract/internal/query"
)

const defaultPageLimit = 50
const maxPageLimit = 500

func pageLimit(r *http.Request) int {
	limit := defaultPageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return limit
}

func cursorParam(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an integer", errBadRequest, name)
	}
	return &n, nil
}

// readModels returns the query service, or answers 503 when the server
// runs without one (in-memory mode, no Postgres behind it).
func (s *Server) readModels(w http.ResponseWriter) *query.Service {
	if s.queries == nil {
		s.writeJSON(w, http.StatusServiceUnavailable,
			errorResponse{Error: "read models unavailable"})
		return nil
	}
	return s.queries
}

func (s *Server) handleGetProposal(w http.ResponseWriter, r *http.Request) {
	id := common.HexToHash(chi.URLParam(r, "id"))

	// Serve open proposals from the coordinator for read-your-write
	// consistency; fall back to the projection for closed ones.
	if p, ok := s.coordinator.Proposal(id); ok {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"identifier": p.ID.Hex(),
			"amount":     p.Amount.String(),
			"initiator":  p.Initiator.Hex(),
			"status":     "open",
			"opened_at":  p.OpenedAt,
		})
		return
	}

	queries := s.readModels(w)
	if queries == nil {
		return
	}
	resp, err := queries.GetProposal(r.Context(), id.Hex())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListProposals(w http.ResponseWriter, r *http.Request) {
	queries := s.readModels(w)
	if queries == nil {
		return
	}

	status := r.URL.Query().Get("status")
	if status == "" {
		status = "open"
	}
	if status != "open" && status != "closed" {
		s.writeError(w, fmt.Errorf("%w: status must be open or closed", errBadRequest))
		return
	}

	var initiator *string
	if raw := r.URL.Query().Get("initiator"); raw != "" {
		addr, err := parseAddress("initiator", raw)
		if err != nil {
			s.writeError(w, err)
			return
		}
		hex := addr.Hex()
		initiator = &hex
	}

	before, err := cursorParam(r, "before")
	if err != nil {
		s.writeError(w, err)
		return
	}

	proposals, err := queries.ListProposals(r.Context(), status, initiator, pageLimit(r), before)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"proposals": proposals})
}

func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	queries := s.readModels(w)
	if queries == nil {
		return
	}

	var eventType *string
	if raw := r.URL.Query().Get("type"); raw != "" {
		eventType = &raw
	}

	after, err := cursorParam(r, "after")
	if err != nil {
		s.writeError(w, err)
		return
	}

	events, err := queries.GetEvents(r.Context(), eventType, pageLimit(r), after)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

func (s *Server) handleGetTransfers(w http.ResponseWriter, r *http.Request) {
	queries := s.readModels(w)
	if queries == nil {
		return
	}

	opRef := r.URL.Query().Get("op_ref")
	if opRef == "" {
		s.writeError(w, fmt.Errorf("%w: op_ref is required", errBadRequest))
		return
	}

	transfers, err := queries.GetTransfers(r.Context(), opRef)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"transfers": transfers})
}

func (s *Server) handleFloatSummary(w http.ResponseWriter, r *http.Request) {
	queries := s.readModels(w)
	if queries == nil {
		return
	}

	summary, err := queries.GetFloatSummary(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleIntegrity(w http.ResponseWriter, r *http.Request) {
	queries := s.readModels(w)
	if queries == nil {
		return
	}

	report, err := queries.VerifyIntegrity(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}
