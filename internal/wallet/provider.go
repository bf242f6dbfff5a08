package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

// Provider error codes wallets report (EIP-1193 / MetaMask).
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnrecognizedChain = 4902
)

// Provider is the wallet's request surface. Every method a wallet exposes
// (eth_requestAccounts, eth_chainId, wallet_switchEthereumChain, ...) goes
// through Request; signing happens on the wallet side.
type Provider interface {
	Request(ctx context.Context, method string, params ...any) (json.RawMessage, error)
}

// ProviderError is an error the wallet returned with a numeric code.
type ProviderError struct {
	Code    int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

// ErrorCode extracts a provider error code from err, or 0.
func ErrorCode(err error) int {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return 0
}

// errorMessage prefers the wallet's own message over the wrapped chain.
func errorMessage(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Message
	}
	return err.Error()
}

// RPCProvider talks to a wallet endpoint over JSON-RPC. Anything
// rpc.DialContext accepts works: http(s)://, ws(s):// or an IPC path.
type RPCProvider struct {
	client *rpc.Client
}

// Dial connects to a wallet endpoint.
func Dial(ctx context.Context, endpoint string) (*RPCProvider, error) {
	c, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWalletUnavailable, err)
	}
	return &RPCProvider{client: c}, nil
}

// NewRPCProvider wraps an existing client.
func NewRPCProvider(c *rpc.Client) *RPCProvider {
	return &RPCProvider{client: c}
}

// Request implements Provider.
func (p *RPCProvider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	var out json.RawMessage
	if err := p.client.CallContext(ctx, &out, method, params...); err != nil {
		var rerr rpc.Error
		if errors.As(err, &rerr) {
			return nil, &ProviderError{Code: rerr.ErrorCode(), Message: rerr.Error()}
		}
		return nil, err
	}
	return out, nil
}

// Close releases the underlying connection.
func (p *RPCProvider) Close() {
	p.client.Close()
}
