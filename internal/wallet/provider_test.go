package wallet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rpcMock answers JSON-RPC calls from a method → result map. Values of type
// *ProviderError are returned as JSON-RPC errors.
func rpcMock(t *testing.T, responses map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string          `json:"method"`
			ID     json.RawMessage `json:"id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		switch v := responses[req.Method].(type) {
		case nil:
			resp["error"] = map[string]any{"code": -32601, "message": "method not found"}
		case *ProviderError:
			resp["error"] = map[string]any{"code": v.Code, "message": v.Message}
		default:
			resp["result"] = v
		}
		json.NewEncoder(w).Encode(resp) //nolint:errcheck
	}))
}

func TestRPCProviderResult(t *testing.T) {
	srv := rpcMock(t, map[string]any{"eth_chainId": "0x38"})
	defer srv.Close()

	p, err := Dial(context.Background(), srv.URL)
	require.NoError(t, err)
	defer p.Close()

	raw, err := p.Request(context.Background(), "eth_chainId")
	require.NoError(t, err)
	assert.JSONEq(t, `"0x38"`, string(raw))
}

func TestRPCProviderMapsErrorCodes(t *testing.T) {
	srv := rpcMock(t, map[string]any{
		"eth_requestAccounts": &ProviderError{Code: CodeUserRejected, Message: "User rejected the request."},
	})
	defer srv.Close()

	p, err := Dial(context.Background(), srv.URL)
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Request(context.Background(), "eth_requestAccounts")
	require.Error(t, err)
	assert.Equal(t, CodeUserRejected, ErrorCode(err))
	assert.Equal(t, "User rejected the request.", errorMessage(err))
}

func TestGatewayOverRPCProvider(t *testing.T) {
	srv := rpcMock(t, map[string]any{
		"eth_requestAccounts": []string{owner},
		"eth_chainId":         "0xa4b1",
	})
	defer srv.Close()

	p, err := Dial(context.Background(), srv.URL)
	require.NoError(t, err)
	defer p.Close()

	g := newTestGateway(t, p)
	acct, err := g.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, owner, acct)
	assert.Equal(t, "arbitrum", g.Session().Snapshot().NetworkKey)
}

func TestDialBadEndpoint(t *testing.T) {
	_, err := Dial(context.Background(), "unsupported://nowhere")
	assert.ErrorIs(t, err, ErrWalletUnavailable)
}
