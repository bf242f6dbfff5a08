package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/chain"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/config"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/explorer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const holder = "0x1111111111111111111111111111111111111111"

type fakeFetcher struct {
	mu      sync.Mutex
	resp    *explorer.Response
	err     error
	panics  bool
	network string
	address string
}

func (f *fakeFetcher) Fetch(_ context.Context, network, address string) (*explorer.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panics {
		panic("boom")
	}
	f.network, f.address = network, address
	return f.resp, f.err
}

func okResponse() *explorer.Response {
	return &explorer.Response{Status: "1", Message: "OK", Result: []explorer.TokenTransfer{{
		ContractAddress: "0x2222222222222222222222222222222222222222",
		TokenSymbol:     "TKN",
		TokenDecimal:    "18",
		Value:           "1000",
	}}}
}

func testConfig() *config.ServerConfig {
	cfg := config.DefaultServerConfig()
	cfg.RequestsPerMinute = 0
	return cfg
}

func newTestServer(f Fetcher) *Server {
	return New(testConfig(), chain.NewRegistry(), f)
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var out errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func assertEndpointHeaders(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	h := rec.Header()
	assert.Equal(t, "*", h.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Content-Type", h.Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "GET, POST, OPTIONS", h.Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "application/json", h.Get("Content-Type"))
}

func body(network string) string {
	return fmt.Sprintf(`{"address":%q,"network":%q}`, holder, network)
}

func TestPostBalances(t *testing.T) {
	f := &fakeFetcher{resp: okResponse()}
	rec := do(t, newTestServer(f).Handler(), http.MethodPost, BalancesPath, body("polygon"))

	require.Equal(t, http.StatusOK, rec.Code)
	assertEndpointHeaders(t, rec)

	var out explorer.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "1", out.Status)
	require.Len(t, out.Result, 1)
	assert.Equal(t, "TKN", out.Result[0].TokenSymbol)
	assert.Equal(t, "polygon", f.network)
	assert.Equal(t, holder, f.address)
}

func TestLegacyPathAndGet(t *testing.T) {
	f := &fakeFetcher{resp: okResponse()}
	h := newTestServer(f).Handler()

	rec := do(t, h, http.MethodPost, LegacyBalancePath, body("bsc"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bsc", f.network)

	rec = do(t, h, http.MethodGet, BalancesPath+"?address="+holder+"&network=arbitrum", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "arbitrum", f.network)
}

func TestOptionsPreflight(t *testing.T) {
	h := newTestServer(&fakeFetcher{}).Handler()

	rec := do(t, h, http.MethodOptions, BalancesPath, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	assertEndpointHeaders(t, rec)

	req := httptest.NewRequest(http.MethodOptions, BalancesPath, nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMethodNotAllowed(t *testing.T) {
	rec := do(t, newTestServer(&fakeFetcher{}).Handler(), http.MethodPut, BalancesPath, body("polygon"))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assertEndpointHeaders(t, rec)
	assert.Equal(t, errorResponse{Status: "0", Message: "Method not allowed"}, decodeError(t, rec))
}

func TestBadRequests(t *testing.T) {
	cases := []struct {
		name string
		body string
		msg  string
	}{
		{"empty body", "", "Request body is required"},
		{"blank body", "   ", "Request body is required"},
		{"malformed", "{not json", "Invalid request body"},
		{"missing address", `{"network":"polygon"}`, "Address is required"},
		{"missing network", `{"address":"` + holder + `"}`, "Invalid network. Supported networks are: ethereum, polygon, bsc, arbitrum"},
		{"unknown network", body("solana"), "Invalid network. Supported networks are: ethereum, polygon, bsc, arbitrum"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := &fakeFetcher{resp: okResponse()}
			rec := do(t, newTestServer(f).Handler(), http.MethodPost, BalancesPath, tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assertEndpointHeaders(t, rec)
			assert.Equal(t, errorResponse{Status: "0", Message: tc.msg}, decodeError(t, rec))
			assert.Empty(t, f.network, "no upstream call")
		})
	}
}

func TestUpstreamErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"invalid address", fmt.Errorf("%w: %q", explorer.ErrInvalidAddress, "0xzz"), http.StatusBadRequest, "Invalid address"},
		{"missing key", fmt.Errorf("%w for polygon", explorer.ErrMissingCredential), http.StatusInternalServerError, "API configuration missing for polygon"},
		{"api error", fmt.Errorf("%w: Invalid API Key", explorer.ErrAPI), http.StatusInternalServerError, "Invalid API Key"},
		{"http error", fmt.Errorf("%w: HTTP error! status: 502", explorer.ErrRequestFailed), http.StatusInternalServerError, "HTTP error! status: 502"},
		{"decode error", &explorer.DecodeError{Index: 0, Field: "value", Reason: "is not a non-negative integer"}, http.StatusInternalServerError, "invalid response from API: record 0: value is not a non-negative integer"},
		{"unknown", fmt.Errorf("something odd"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, newTestServer(&fakeFetcher{err: tc.err}).Handler(), http.MethodPost, BalancesPath, body("polygon"))
			assert.Equal(t, tc.status, rec.Code)
			assertEndpointHeaders(t, rec)
			assert.Equal(t, errorResponse{Status: "0", Message: tc.msg}, decodeError(t, rec))
		})
	}
}

func TestPanicBecomesJSON500(t *testing.T) {
	rec := do(t, newTestServer(&fakeFetcher{panics: true}).Handler(), http.MethodPost, BalancesPath, body("ethereum"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assertEndpointHeaders(t, rec)
	assert.Equal(t, errorResponse{Status: "0", Message: "Internal server error"}, decodeError(t, rec))
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestServer(&fakeFetcher{resp: okResponse()}).Handler()

	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")

	do(t, h, http.MethodPost, BalancesPath, body("polygon"))
	rec = do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `dappastra_balance_requests_total{network="polygon",status="200"} 1`)
}

func TestMetricsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.MetricsEnabled = false
	s := New(cfg, chain.NewRegistry(), &fakeFetcher{})
	assert.Nil(t, s.Metrics())
	rec := do(t, s.Handler(), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RequestsPerMinute = 1
	h := New(cfg, chain.NewRegistry(), &fakeFetcher{resp: okResponse()}).Handler()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, BalancesPath, body("polygon")).Code)
	rec := do(t, h, http.MethodPost, BalancesPath, body("polygon"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many requests", decodeError(t, rec).Message)
}

func TestEndToEndWithExplorerClient(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tokentx", r.URL.Query().Get("action"))
		assert.Equal(t, "secret", r.URL.Query().Get("apikey"))
		_, _ = io.WriteString(w, `{"status":"0","message":"No transactions found","result":[]}`)
	}))
	defer upstream.Close()

	reg := chain.NewRegistry()
	metrics := NewMetrics()
	client := explorer.NewClient(reg, explorer.MemoryCredentials{"polygon": "secret"},
		explorer.WithBaseURL("polygon", upstream.URL),
		explorer.WithObserver(metrics.ObserveUpstream))
	h := New(testConfig(), reg, client, WithMetrics(metrics)).Handler()

	rec := do(t, h, http.MethodPost, BalancesPath, body("polygon"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"1","message":"No transactions found","result":[]}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, BalancesPath, body("bsc"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "API configuration missing for bsc", decodeError(t, rec).Message)

	rec = do(t, h, http.MethodGet, "/metrics", "")
	assert.Contains(t, rec.Body.String(), `dappastra_explorer_request_duration_seconds_count{network="polygon",outcome="ok"} 1`)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	s := New(cfg, chain.NewRegistry(), &fakeFetcher{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
