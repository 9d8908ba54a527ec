package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
)

var errBadRequest = errors.New("bad request")

func parseAddress(field, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%w: %s is not a valid address", errBadRequest, field)
	}
	return common.HexToAddress(value), nil
}

func parseAmount(value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("%w: amount must be a non-negative decimal string", errBadRequest)
	}
	return amount, nil
}

func (s *Server) decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

type openProposalRequest struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

type openProposalResponse struct {
	Identifier string `json:"identifier"`
	Sequence   int64  `json:"sequence"`
}

func (s *Server) handleOpenProposal(w http.ResponseWriter, r *http.Request) {
	var req openProposalRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		s.writeError(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}

	id, err := s.coordinator.OpenProposal(r.Context(), caller, amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, openProposalResponse{
		Identifier: id.Hex(),
		Sequence:   s.coordinator.Sequence(),
	})
}

type closeProposalRequest struct {
	Caller    string `json:"caller"`
	Recipient string `json:"recipient,omitempty"`
}

func (s *Server) handleCloseProposal(w http.ResponseWriter, r *http.Request) {
	var req closeProposalRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		s.writeError(w, err)
		return
	}
	// Zero recipient means pay out to the caller.
	var recipient common.Address
	if req.Recipient != "" {
		if recipient, err = parseAddress("recipient", req.Recipient); err != nil {
			s.writeError(w, err)
			return
		}
	}
	id := common.HexToHash(chi.URLParam(r, "id"))

	if err := s.coordinator.CloseProposal(r.Context(), caller, id, recipient); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"identifier": id.Hex(),
		"sequence":   s.coordinator.Sequence(),
	})
}

type withdrawFloatRequest struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

func (s *Server) handleWithdrawFloat(w http.ResponseWriter, r *http.Request) {
	var req withdrawFloatRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		s.writeError(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.coordinator.WithdrawFloat(r.Context(), caller, amount); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"sequence": s.coordinator.Sequence(),
	})
}

type withdrawNativeRequest struct {
	Caller string `json:"caller"`
}

func (s *Server) handleWithdrawNative(w http.ResponseWriter, r *http.Request) {
	var req withdrawNativeRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.coordinator.WithdrawNative(r.Context(), caller); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"sequence": s.coordinator.Sequence(),
	})
}

type changeAdminRequest struct {
	Caller   string `json:"caller"`
	NewAdmin string `json:"new_admin"`
}

func (s *Server) handleChangeAdmin(w http.ResponseWriter, r *http.Request) {
	var req changeAdminRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		s.writeError(w, err)
		return
	}
	newAdmin, err := parseAddress("new_admin", req.NewAdmin)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.coordinator.ChangeAdministrator(r.Context(), caller, newAdmin); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"admin":    newAdmin.Hex(),
		"sequence": s.coordinator.Sequence(),
	})
}

type receiveNativeRequest struct {
	From   string `json:"from"`
	Amount string `json:"amount"`
}

func (s *Server) handleReceiveNative(w http.ResponseWriter, r *http.Request) {
	var req receiveNativeRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	from, err := parseAddress("from", req.From)
	if err != nil {
		s.writeError(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.coordinator.ReceiveNative(from, amount)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"native_balance": s.coordinator.NativeBalance().String(),
		"sequence":       s.coordinator.Sequence(),
	})
}

type stateResponse struct {
	Admin         string `json:"admin"`
	OpenProposals int    `json:"open_proposals"`
	LockedTotal   string `json:"locked_total"`
	NativeBalance string `json:"native_balance"`
	Sequence      int64  `json:"sequence"`
	StateHash     string `json:"state_hash"`
}

// handleState serves live coordinator state, bypassing the projections.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	hash := s.coordinator.StateHash()
	s.writeJSON(w, http.StatusOK, stateResponse{
		Admin:         s.coordinator.Admin().Hex(),
		OpenProposals: len(s.coordinator.OpenProposals()),
		LockedTotal:   s.coordinator.TotalLocked().String(),
		NativeBalance: s.coordinator.NativeBalance().String(),
		Sequence:      s.coordinator.Sequence(),
		StateHash:     common.Bytes2Hex(hash[:]),
	})
}
