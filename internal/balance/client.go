package balance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/explorer"
)

// ErrRejected is returned when the balance endpoint refuses the request
// (HTTP 4xx).
var ErrRejected = errors.New("balance request rejected")

// EndpointError carries the status and message of a failed endpoint call.
type EndpointError struct {
	StatusCode int
	Message    string
}

func (e *EndpointError) Error() string {
	return e.Message
}

func (e *EndpointError) Unwrap() error {
	if e.StatusCode >= 400 && e.StatusCode < 500 {
		return ErrRejected
	}
	return explorer.ErrRequestFailed
}

// HTTPSource calls a balance proxy endpoint (see internal/server).
type HTTPSource struct {
	endpoint string
	http     *http.Client
}

// NewHTTPSource creates a source posting to endpoint, e.g.
// "https://example.org/api/token-balances".
func NewHTTPSource(endpoint string, h *http.Client) *HTTPSource {
	if h == nil {
		h = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPSource{endpoint: endpoint, http: h}
}

type balanceRequest struct {
	Address string `json:"address"`
	Network string `json:"network"`
}

// TokenTransfers implements Source.
func (s *HTTPSource) TokenTransfers(ctx context.Context, network, address string) ([]explorer.TokenTransfer, error) {
	body, err := json.Marshal(balanceRequest{Address: address, Network: network})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", explorer.ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", explorer.ErrRequestFailed, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", explorer.ErrRequestFailed, err)
	}

	var payload explorer.Response
	if err := json.Unmarshal(data, &payload); err != nil {
		if res.StatusCode != http.StatusOK {
			return nil, &EndpointError{StatusCode: res.StatusCode, Message: fmt.Sprintf("HTTP error! status: %d", res.StatusCode)}
		}
		return nil, fmt.Errorf("%w: invalid response from balance endpoint", explorer.ErrRequestFailed)
	}
	if res.StatusCode != http.StatusOK || payload.Status == "0" {
		msg := payload.Message
		if msg == "" {
			msg = "Failed to fetch token balances"
		}
		code := res.StatusCode
		if code == http.StatusOK {
			code = http.StatusBadGateway
		}
		return nil, &EndpointError{StatusCode: code, Message: msg}
	}
	if payload.Result == nil {
		return []explorer.TokenTransfer{}, nil
	}
	return payload.Result, nil
}
