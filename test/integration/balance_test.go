package integration_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/balance"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/chain"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/config"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/explorer"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/notify"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/rescue"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/server"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/wallet"
	"github.com/DappAstra/DappAstra-ERC20-Generator/test/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	owner = "0x1111111111111111111111111111111111111111"
	safe  = "0x2222222222222222222222222222222222222222"
	usdc  = "0x3c499c542cef5e3811e1192ce70d8cc03d5c3359"
	usdt  = "0xc2132d05d31c914a87c6611c10748aeb04b58e8f"
)

// mockExplorer serves a recorded tokentx response and checks the query.
func mockExplorer(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "tokentx", q.Get("action"))
		assert.Equal(t, "desc", q.Get("sort"))
		assert.Equal(t, "test-key", q.Get("apikey"))
		w.Header().Set("Content-Type", "application/json")
		w.Write(body) //nolint:errcheck
	}))
}

// mockWallet mimics a JSON-RPC wallet on Polygon that signs everything.
type mockWallet struct {
	mu   sync.Mutex
	sent []map[string]string
}

func (m *mockWallet) server(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
			ID     json.RawMessage   `json:"id"`
		}
		json.NewDecoder(r.Body).Decode(&req) //nolint:errcheck

		var result any
		switch req.Method {
		case "eth_requestAccounts", "eth_accounts":
			result = []string{owner}
		case "eth_chainId":
			result = "0x89"
		case "eth_sendTransaction":
			var tx map[string]string
			assert.NoError(t, json.Unmarshal(req.Params[0], &tx))
			m.mu.Lock()
			m.sent = append(m.sent, tx)
			n := len(m.sent)
			m.mu.Unlock()
			result = "0x" + strings.Repeat("ab", 31) + "0" + string(rune('0'+n))
		case "eth_getTransactionReceipt":
			var hash string
			assert.NoError(t, json.Unmarshal(req.Params[0], &hash))
			result = map[string]any{
				"transactionHash": hash,
				"status":          "0x1",
				"blockNumber":     "0x31b0f3c",
				"gasUsed":         "0xb411",
			}
		default:
			http.Error(w, "method not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		})
	}))
}

func (m *mockWallet) transactions() []map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]map[string]string(nil), m.sent...)
}

// proxy starts the balance proxy in front of the explorer mock.
func proxy(t *testing.T, reg *chain.Registry, explorerURL string) *httptest.Server {
	t.Helper()
	client := explorer.NewClient(reg, explorer.MemoryCredentials{"polygon": "test-key"},
		explorer.WithBaseURL("polygon", explorerURL))
	srv := server.New(config.DefaultServerConfig(), reg, client)
	return httptest.NewServer(srv.Handler())
}

func TestBalancesThroughProxy(t *testing.T) {
	reg := chain.NewRegistry()
	upstream := mockExplorer(t, fixtures.LoadExplorerResponse(t, "tokentx_polygon.json"))
	defer upstream.Close()
	px := proxy(t, reg, upstream.URL)
	defer px.Close()

	src := balance.NewHTTPSource(px.URL+server.BalancesPath, px.Client())
	tokens, err := balance.NewAggregator(src, reg).Balances(context.Background(), owner, "polygon")
	require.NoError(t, err)

	require.Len(t, tokens, 2, "duplicate USDC transfer collapses")
	assert.Equal(t, "USDC", tokens[0].TokenSymbol)
	assert.Equal(t, "12.5", tokens[0].Balance, "latest transfer wins")
	assert.Equal(t, "USDT", tokens[1].TokenSymbol)
	assert.Equal(t, "3.0", tokens[1].Balance)
}

func TestBalancesProxyRejectsBadNetwork(t *testing.T) {
	reg := chain.NewRegistry()
	upstream := mockExplorer(t, fixtures.LoadExplorerResponse(t, "tokentx_polygon.json"))
	defer upstream.Close()
	px := proxy(t, reg, upstream.URL)
	defer px.Close()

	src := balance.NewHTTPSource(px.URL+server.LegacyBalancePath, px.Client())
	_, err := src.TokenTransfers(context.Background(), "solana", owner)

	var ee *balance.EndpointError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, http.StatusBadRequest, ee.StatusCode)
	assert.Contains(t, ee.Message, "Supported networks are: ethereum, polygon, bsc, arbitrum")
}

func TestRescueEndToEnd(t *testing.T) {
	reg := chain.NewRegistry()
	upstream := mockExplorer(t, fixtures.LoadExplorerResponse(t, "tokentx_polygon.json"))
	defer upstream.Close()
	px := proxy(t, reg, upstream.URL)
	defer px.Close()

	mw := &mockWallet{}
	ws := mw.server(t)
	defer ws.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p, err := wallet.Dial(ctx, ws.URL)
	require.NoError(t, err)
	defer p.Close()

	bus := notify.NewBus(16)
	gw := wallet.NewGateway(p, reg,
		wallet.WithSession(wallet.NewSession(reg, bus)),
		wallet.WithPollInterval(10*time.Millisecond))

	from, err := gw.Connect(ctx)
	require.NoError(t, err)
	assert.Equal(t, owner, from)
	assert.Equal(t, "polygon", gw.Session().Snapshot().NetworkKey)

	src := balance.NewHTTPSource(px.URL+server.BalancesPath, px.Client())
	tokens, err := balance.NewAggregator(src, reg).Balances(ctx, from, "polygon")
	require.NoError(t, err)

	res, err := rescue.New(gw, rescue.WithNotifier(bus)).Run(ctx, rescue.Request{
		From:        from,
		Destination: safe,
		Selected:    []string{usdt, usdc},
		Tokens:      tokens,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Succeeded())
	assert.Equal(t, 0, res.Failed())

	sent := mw.transactions()
	require.Len(t, sent, 2)
	assert.True(t, strings.EqualFold(sent[0]["to"], usdt), "selection order is kept")
	assert.True(t, strings.EqualFold(sent[1]["to"], usdc))
	for _, tx := range sent {
		assert.True(t, strings.EqualFold(tx["from"], owner))
		// transfer(address,uint256)
		assert.True(t, strings.HasPrefix(tx["data"], "0xa9059cbb"), tx["data"])
		assert.Contains(t, strings.ToLower(tx["data"]), strings.TrimPrefix(safe, "0x"))
	}

	var msgs []string
	for _, n := range bus.Drain() {
		msgs = append(msgs, n.Message)
	}
	assert.Contains(t, msgs, "Successfully transferred USDT")
	assert.Contains(t, msgs, "Successfully transferred USDC")
}
