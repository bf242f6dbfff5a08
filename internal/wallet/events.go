package wallet

import (
	"context"
	"encoding/json"
	"slices"
	"time"

	"github.com/rs/zerolog"
)

// EventKind identifies a wallet event.
type EventKind int

const (
	AccountsChanged EventKind = iota + 1
	ChainChanged
)

func (k EventKind) String() string {
	switch k {
	case AccountsChanged:
		return "accountsChanged"
	case ChainChanged:
		return "chainChanged"
	default:
		return "unknown"
	}
}

// Event is a wallet-originated change. Accounts is set for
// AccountsChanged (empty means disconnected), ChainID for ChainChanged.
type Event struct {
	Kind     EventKind
	Accounts []string
	ChainID  int64
}

// Poller turns a request-only provider into an event source by polling
// eth_accounts and eth_chainId.
type Poller struct {
	provider Provider
	interval time.Duration
	log      zerolog.Logger
}

// NewPoller creates a poller. A non-positive interval defaults to
// DefaultPollInterval.
func NewPoller(p Provider, interval time.Duration, log zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{provider: p, interval: interval, log: log}
}

// Run emits the current accounts and chain once, then one event per change
// until ctx is done. The channel is closed on return.
func (p *Poller) Run(ctx context.Context) <-chan Event {
	out := make(chan Event, 4)
	go func() {
		defer close(out)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		var (
			accounts    []string
			chainID     int64
			haveAccts   bool
			haveChainID bool
		)
		for {
			if accs, ok := p.accounts(ctx); ok && (!haveAccts || !slices.Equal(accs, accounts)) {
				accounts, haveAccts = accs, true
				if !emit(ctx, out, Event{Kind: AccountsChanged, Accounts: accs}) {
					return
				}
			}
			if id, ok := p.chainID(ctx); ok && (!haveChainID || id != chainID) {
				chainID, haveChainID = id, true
				if !emit(ctx, out, Event{Kind: ChainChanged, ChainID: id}) {
					return
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return out
}

func (p *Poller) accounts(ctx context.Context) ([]string, bool) {
	raw, err := p.provider.Request(ctx, "eth_accounts")
	if err != nil {
		p.log.Debug().Err(err).Msg("polling eth_accounts")
		return nil, false
	}
	var accs []string
	if err := json.Unmarshal(raw, &accs); err != nil {
		p.log.Debug().Err(err).Msg("decoding eth_accounts")
		return nil, false
	}
	return accs, true
}

func (p *Poller) chainID(ctx context.Context) (int64, bool) {
	raw, err := p.provider.Request(ctx, "eth_chainId")
	if err != nil {
		p.log.Debug().Err(err).Msg("polling eth_chainId")
		return 0, false
	}
	id, err := parseChainID(raw)
	if err != nil {
		p.log.Debug().Err(err).Msg("decoding eth_chainId")
		return 0, false
	}
	return id, true
}

func emit(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
