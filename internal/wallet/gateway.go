package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/chain"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/contract"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog"
)

// Errors.
var (
	ErrWalletUnavailable   = errors.New("no wallet provider available")
	ErrUserRejected        = errors.New("request rejected in wallet")
	ErrNotConnected        = errors.New("wallet not connected")
	ErrNetworkSwitchFailed = errors.New("failed to switch network")
	ErrGasEstimationFailed = errors.New("failed to estimate gas")
	ErrDeploymentFailed    = errors.New("failed to deploy token")
	ErrTransferFailed      = errors.New("failed to transfer token")
	ErrReverted            = errors.New("transaction reverted")
	ErrNoArtifact          = errors.New("no contract artifact configured")
)

// DefaultPollInterval is how often receipts are polled while waiting.
const DefaultPollInterval = 2 * time.Second

// Receipt is the subset of a transaction receipt the gateway reads.
type Receipt struct {
	TxHash          string         `json:"transactionHash"`
	Status          hexutil.Uint64 `json:"status"`
	BlockNumber     hexutil.Uint64 `json:"blockNumber"`
	GasUsed         hexutil.Uint64 `json:"gasUsed"`
	ContractAddress string         `json:"contractAddress"`
}

// Deployment is the outcome of a confirmed token deployment.
type Deployment struct {
	Address string
	TxHash  string
	Block   uint64
	GasUsed uint64
}

// txArgs is the transaction object passed to eth_estimateGas,
// eth_sendTransaction and eth_call.
type txArgs struct {
	From string        `json:"from,omitempty"`
	To   string        `json:"to,omitempty"`
	Data hexutil.Bytes `json:"data"`
}

type nativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

type addChainParams struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	NativeCurrency    nativeCurrency `json:"nativeCurrency"`
	RPCURLs           []string       `json:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls"`
}

// Gateway wraps a wallet provider with the token workflows.
type Gateway struct {
	provider Provider
	registry *chain.Registry
	artifact *contract.Artifact
	session  *Session
	poll     time.Duration
	log      zerolog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithArtifact sets the compiled token contract used by EstimateGas/Deploy.
func WithArtifact(a *contract.Artifact) Option {
	return func(g *Gateway) { g.artifact = a }
}

// WithSession shares an existing session.
func WithSession(s *Session) Option {
	return func(g *Gateway) { g.session = s }
}

// WithPollInterval sets the receipt polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.poll = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(g *Gateway) { g.log = l }
}

// NewGateway creates a gateway. A nil provider means no wallet is present;
// every wallet call then fails with ErrWalletUnavailable.
func NewGateway(p Provider, reg *chain.Registry, opts ...Option) *Gateway {
	g := &Gateway{
		provider: p,
		registry: reg,
		poll:     DefaultPollInterval,
		log:      zerolog.Nop(),
	}
	for _, o := range opts {
		o(g)
	}
	if g.session == nil {
		g.session = NewSession(reg, nil)
	}
	return g
}

// Session returns the wallet session the gateway maintains.
func (g *Gateway) Session() *Session {
	return g.session
}

// Available reports whether a provider is present.
func (g *Gateway) Available() bool {
	return g.provider != nil
}

// Connect asks the wallet for account access and returns the primary
// account.
func (g *Gateway) Connect(ctx context.Context) (string, error) {
	if g.provider == nil {
		return "", ErrWalletUnavailable
	}
	g.session.BeginConnect()

	var accounts []string
	if err := g.call(ctx, &accounts, "eth_requestAccounts"); err != nil {
		g.session.ConnectFailed()
		if ErrorCode(err) == CodeUserRejected {
			return "", fmt.Errorf("%w: %s", ErrUserRejected, errorMessage(err))
		}
		return "", fmt.Errorf("connecting wallet: %w", err)
	}
	if len(accounts) == 0 {
		g.session.ConnectFailed()
		return "", fmt.Errorf("%w: no accounts authorised", ErrUserRejected)
	}

	id, err := g.CurrentChain(ctx)
	if err != nil {
		g.session.ConnectFailed()
		return "", err
	}
	g.session.Connected(accounts[0], id)
	g.log.Debug().Str("account", accounts[0]).Int64("chain_id", id).Msg("wallet connected")
	return accounts[0], nil
}

// CurrentChain reads the chain the wallet is on.
func (g *Gateway) CurrentChain(ctx context.Context) (int64, error) {
	if g.provider == nil {
		return 0, ErrWalletUnavailable
	}
	raw, err := g.provider.Request(ctx, "eth_chainId")
	if err != nil {
		return 0, fmt.Errorf("reading chain id: %w", err)
	}
	return parseChainID(raw)
}

// CurrentNetwork maps the wallet's chain to a registry key, or
// chain.OtherNetwork.
func (g *Gateway) CurrentNetwork(ctx context.Context) (string, error) {
	id, err := g.CurrentChain(ctx)
	if err != nil {
		return "", err
	}
	return g.registry.KeyForChainID(id), nil
}

// SwitchNetwork moves the wallet to the network with the given key, adding
// the chain to the wallet first if the wallet does not know it.
func (g *Gateway) SwitchNetwork(ctx context.Context, key string) error {
	if key == chain.OtherNetwork {
		return nil
	}
	n, err := g.registry.Get(key)
	if err != nil {
		return err
	}
	if g.provider == nil {
		return ErrWalletUnavailable
	}

	_, err = g.provider.Request(ctx, "wallet_switchEthereumChain", map[string]string{"chainId": n.HexChainID()})
	if err != nil && ErrorCode(err) == CodeUnrecognizedChain {
		g.log.Debug().Str("network", n.Key).Msg("chain unknown to wallet, adding it")
		_, err = g.provider.Request(ctx, "wallet_addEthereumChain", addChainParams{
			ChainID:   n.HexChainID(),
			ChainName: n.DisplayName,
			NativeCurrency: nativeCurrency{
				Name:     n.CurrencyName,
				Symbol:   n.CurrencySymbol,
				Decimals: 18,
			},
			RPCURLs:           []string{n.RPCURL},
			BlockExplorerURLs: []string{n.Explorer},
		})
	}
	if err != nil {
		return wrapProviderErr(ErrNetworkSwitchFailed, err)
	}
	g.session.SetNetwork(n.Key)
	return nil
}

// EstimateGas asks the wallet to estimate the token deployment.
func (g *Gateway) EstimateGas(ctx context.Context, req contract.DeployRequest, owner string) (uint64, error) {
	data, err := g.prepareDeploy(req, owner)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrGasEstimationFailed, err)
	}
	var gas hexutil.Uint64
	if err := g.call(ctx, &gas, "eth_estimateGas", txArgs{From: owner, Data: data}); err != nil {
		return 0, wrapProviderErr(ErrGasEstimationFailed, err)
	}
	return uint64(gas), nil
}

// Deploy submits the token deployment and waits for it to be mined. Once
// the wallet has accepted the transaction, cancelling ctx only abandons the
// wait.
func (g *Gateway) Deploy(ctx context.Context, req contract.DeployRequest, owner string) (*Deployment, error) {
	data, err := g.prepareDeploy(req, owner)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeploymentFailed, err)
	}
	hash, err := g.send(ctx, txArgs{From: owner, Data: data})
	if err != nil {
		return nil, wrapProviderErr(ErrDeploymentFailed, err)
	}
	g.log.Info().Str("tx", hash).Str("symbol", req.Symbol).Msg("deployment submitted")

	rcpt, err := g.WaitForReceipt(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeploymentFailed, err)
	}
	if !common.IsHexAddress(rcpt.ContractAddress) {
		return nil, fmt.Errorf("%w: receipt for %s has no contract address", ErrDeploymentFailed, hash)
	}
	return &Deployment{
		Address: common.HexToAddress(rcpt.ContractAddress).Hex(),
		TxHash:  hash,
		Block:   uint64(rcpt.BlockNumber),
		GasUsed: uint64(rcpt.GasUsed),
	}, nil
}

// Transfer sends amount base units of token from the connected account to
// to, and waits for confirmation. It returns the transaction hash.
func (g *Gateway) Transfer(ctx context.Context, token, from, to string, amount *big.Int) (string, error) {
	if from == "" {
		return "", fmt.Errorf("%w: %w", ErrTransferFailed, ErrNotConnected)
	}
	if g.provider == nil {
		return "", fmt.Errorf("%w: %w", ErrTransferFailed, ErrWalletUnavailable)
	}
	if !common.IsHexAddress(token) || !common.IsHexAddress(to) {
		return "", fmt.Errorf("%w: invalid token or destination address", ErrTransferFailed)
	}
	data, err := contract.EncodeTransfer(common.HexToAddress(to), amount)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	hash, err := g.send(ctx, txArgs{From: from, To: token, Data: data})
	if err != nil {
		return "", wrapProviderErr(ErrTransferFailed, err)
	}
	if _, err := g.WaitForReceipt(ctx, hash); err != nil {
		return hash, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	return hash, nil
}

// BalanceOf reads an ERC-20 balance through the wallet's node.
func (g *Gateway) BalanceOf(ctx context.Context, token, owner string) (*big.Int, error) {
	if g.provider == nil {
		return nil, ErrWalletUnavailable
	}
	data, err := contract.EncodeBalanceOf(common.HexToAddress(owner))
	if err != nil {
		return nil, err
	}
	var ret hexutil.Bytes
	if err := g.call(ctx, &ret, "eth_call", txArgs{To: token, Data: data}, "latest"); err != nil {
		return nil, fmt.Errorf("reading balance of %s: %w", token, err)
	}
	return contract.DecodeBalanceOf(ret)
}

// WaitForReceipt polls until hash is mined or ctx is done. A mined but
// reverted transaction returns the receipt together with ErrReverted.
func (g *Gateway) WaitForReceipt(ctx context.Context, hash string) (*Receipt, error) {
	if g.provider == nil {
		return nil, ErrWalletUnavailable
	}
	ticker := time.NewTicker(g.poll)
	defer ticker.Stop()

	for {
		raw, err := g.provider.Request(ctx, "eth_getTransactionReceipt", hash)
		if err != nil {
			return nil, fmt.Errorf("fetching receipt for %s: %w", hash, err)
		}
		if len(raw) > 0 && string(raw) != "null" {
			var r Receipt
			if err := json.Unmarshal(raw, &r); err != nil {
				return nil, fmt.Errorf("decoding receipt for %s: %w", hash, err)
			}
			if r.Status == 0 {
				return &r, fmt.Errorf("%w (hash: %s)", ErrReverted, hash)
			}
			return &r, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("gave up waiting for %s: %w", hash, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (g *Gateway) prepareDeploy(req contract.DeployRequest, owner string) ([]byte, error) {
	if g.provider == nil {
		return nil, ErrWalletUnavailable
	}
	if owner == "" {
		return nil, ErrNotConnected
	}
	if g.artifact == nil {
		return nil, ErrNoArtifact
	}
	return g.artifact.DeployData(req)
}

func (g *Gateway) send(ctx context.Context, tx txArgs) (string, error) {
	var hash string
	if err := g.call(ctx, &hash, "eth_sendTransaction", tx); err != nil {
		return "", err
	}
	return hash, nil
}

func (g *Gateway) call(ctx context.Context, out any, method string, params ...any) error {
	raw, err := g.provider.Request(ctx, method, params...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding %s result: %w", method, err)
	}
	return nil
}

// wrapProviderErr tags err with kind, and with ErrUserRejected when the
// wallet reported a rejection.
func wrapProviderErr(kind, err error) error {
	if ErrorCode(err) == CodeUserRejected {
		return fmt.Errorf("%w: %w: %s", kind, ErrUserRejected, errorMessage(err))
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return fmt.Errorf("%w: %s", kind, pe.Message)
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// parseChainID accepts a hex quantity ("0x89") or a JSON number.
func parseChainID(raw json.RawMessage) (int64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var n int64
		if err := json.Unmarshal(raw, &n); err != nil {
			return 0, fmt.Errorf("unexpected chain id %s", string(raw))
		}
		return n, nil
	}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return strconv.ParseInt(s[2:], 16, 64)
	}
	return strconv.ParseInt(s, 10, 64)
}
