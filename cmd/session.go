package cmd

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/balance"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/chain"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/config"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/explorer"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/logging"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/notify"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/ui"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/wallet"
)

// walletConn is a dialed wallet endpoint and the gateway built on it.
type walletConn struct {
	provider *wallet.RPCProvider
	gateway  *wallet.Gateway
}

// Close releases the endpoint connection.
func (c *walletConn) Close() {
	if c.provider != nil {
		c.provider.Close()
	}
}

// openWallet dials cfg.WalletRPC. With no endpoint configured the gateway
// has no provider and every wallet call fails with ErrWalletUnavailable.
func openWallet(ctx context.Context, bus *notify.Bus, opts ...wallet.Option) (*walletConn, error) {
	base := []wallet.Option{
		wallet.WithSession(wallet.NewSession(registry, bus)),
		wallet.WithPollInterval(cfg.ReceiptPoll()),
		wallet.WithLogger(logging.Component(logger, "wallet")),
	}
	opts = append(base, opts...)

	if strings.TrimSpace(cfg.WalletRPC) == "" {
		return &walletConn{gateway: wallet.NewGateway(nil, registry, opts...)}, nil
	}
	p, err := wallet.Dial(ctx, cfg.WalletRPC)
	if err != nil {
		return nil, err
	}
	return &walletConn{provider: p, gateway: wallet.NewGateway(p, registry, opts...)}, nil
}

// connectOn connects the wallet and moves it to network when it is on a
// different one. An empty network keeps whatever the wallet is on.
func connectOn(ctx context.Context, gw *wallet.Gateway, network string) (account string, err error) {
	cctx, cancel := context.WithTimeout(ctx, config.WalletRequestTimeout)
	defer cancel()

	account, err = gw.Connect(cctx)
	if err != nil {
		return "", err
	}
	if network == "" {
		return account, nil
	}
	current := gw.Session().Snapshot().NetworkKey
	if current == network {
		return account, nil
	}
	fmt.Println(ui.Info(fmt.Sprintf("Switching wallet to %s…", registry.DisplayName(network))))
	if err := gw.SwitchNetwork(cctx, network); err != nil {
		return "", err
	}
	return account, nil
}

// resolveNetwork returns flag if set, else the configured default, and
// checks it against the registry.
func resolveNetwork(flag string) (*chain.Network, error) {
	key := strings.TrimSpace(flag)
	if key == "" {
		key = cfg.DefaultNetwork
	}
	n, err := registry.Get(key)
	if err != nil {
		return nil, fmt.Errorf("%w. %s", err, registry.SupportedMessage())
	}
	return n, nil
}

// credentials chains environment keys with the OS keychain. The keychain
// is skipped when it cannot be opened.
func credentials(useKeychain bool) explorer.CredentialSource {
	creds := explorer.Chain{explorer.NewEnvCredentials(registry)}
	if !useKeychain {
		return creds
	}
	kc, err := explorer.OpenKeychain()
	if err != nil {
		logger.Debug().Err(err).Msg("keychain unavailable, using environment only")
		return creds
	}
	return append(creds, kc)
}

// balanceSource picks the proxy endpoint when one is configured, otherwise
// queries the explorers directly.
func balanceSource(endpoint string, direct bool) balance.Source {
	if endpoint == "" {
		endpoint = cfg.BalanceEndpoint
	}
	if direct || endpoint == "" {
		return explorer.NewClient(registry, credentials(true),
			explorer.WithHTTPClient(&http.Client{Timeout: config.UpstreamTimeout}),
			explorer.WithLogger(logging.Component(logger, "explorer")),
		)
	}
	return balance.NewHTTPSource(endpoint, &http.Client{Timeout: config.UpstreamTimeout})
}
