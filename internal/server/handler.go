package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/chain"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/config"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/explorer"
)

const (
	msgInternal        = "Internal server error"
	msgBodyRequired    = "Request body is required"
	msgInvalidBody     = "Invalid request body"
	msgAddressRequired = "Address is required"
	msgInvalidAddress  = "Invalid address"
	msgMethod          = "Method not allowed"
)

type balanceRequest struct {
	Address string `json:"address"`
	Network string `json:"network"`
}

// errorResponse is the failure shape shared by every non-200 answer.
type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func errorBody(msg string) errorResponse {
	return errorResponse{Status: "0", Message: msg}
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	var req balanceRequest
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodGet:
		q := r.URL.Query()
		req = balanceRequest{Address: q.Get("address"), Network: q.Get("network")}
	case http.MethodPost:
		var msg string
		req, msg = decodeBody(w, r)
		if msg != "" {
			s.fail(w, "", http.StatusBadRequest, msg)
			return
		}
	default:
		w.Header().Set("Allow", "GET, POST, OPTIONS")
		s.fail(w, "", http.StatusMethodNotAllowed, msgMethod)
		return
	}

	if strings.TrimSpace(req.Address) == "" {
		s.fail(w, "", http.StatusBadRequest, msgAddressRequired)
		return
	}
	n, err := s.registry.Get(req.Network)
	if err != nil {
		s.fail(w, "", http.StatusBadRequest, "Invalid network. "+s.registry.SupportedMessage())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.UpstreamTimeout.Duration)
	defer cancel()

	resp, err := s.fetcher.Fetch(ctx, n.Key, req.Address)
	if err != nil {
		status, msg := classify(err)
		s.log.Error().Err(err).Str("network", n.Key).Int("status", status).Msg("balance lookup failed")
		s.fail(w, n.Key, status, msg)
		return
	}

	s.log.Debug().Str("network", n.Key).Int("records", len(resp.Result)).Msg("balance lookup")
	s.metrics.countRequest(n.Key, http.StatusOK)
	writeJSON(w, http.StatusOK, resp)
}

// decodeBody returns a non-empty message when the body is unusable.
func decodeBody(w http.ResponseWriter, r *http.Request) (balanceRequest, string) {
	var req balanceRequest
	if r.Body == nil {
		return req, msgBodyRequired
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, config.MaxRequestBody))
	if err != nil {
		return req, msgInvalidBody
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return req, msgBodyRequired
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, msgInvalidBody
	}
	return req, ""
}

// classify maps a lookup error to an HTTP status and a client-safe message.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, explorer.ErrInvalidAddress):
		return http.StatusBadRequest, msgInvalidAddress
	case errors.Is(err, chain.ErrUnsupportedNetwork):
		return http.StatusBadRequest, "Invalid network"
	case errors.Is(err, explorer.ErrMissingCredential):
		return http.StatusInternalServerError, err.Error()
	case errors.Is(err, explorer.ErrAPI):
		return http.StatusInternalServerError, strip(err, explorer.ErrAPI)
	case errors.Is(err, explorer.ErrRequestFailed):
		return http.StatusInternalServerError, strip(err, explorer.ErrRequestFailed)
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

// strip drops the sentinel's own text from the front of err's message.
func strip(err, sentinel error) string {
	return strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
}

func (s *Server) fail(w http.ResponseWriter, network string, status int, msg string) {
	s.metrics.countRequest(network, status)
	writeJSON(w, status, errorBody(msg))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
