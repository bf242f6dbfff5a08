package wallet

import (
	"context"
	"sync"

	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/chain"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/notify"
)

// State is the connection state of a wallet session.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Snapshot is a point-in-time copy of a session.
type Snapshot struct {
	State      State
	Account    string
	ChainID    int64
	NetworkKey string
}

// Session tracks the connected account and network. It changes only
// through explicit connect/switch calls and wallet events fed to Apply.
type Session struct {
	mu         sync.Mutex
	registry   *chain.Registry
	bus        *notify.Bus
	state      State
	account    string
	chainID    int64
	networkKey string
}

// NewSession creates a disconnected session. bus may be nil.
func NewSession(reg *chain.Registry, bus *notify.Bus) *Session {
	return &Session{registry: reg, bus: bus}
}

// Snapshot returns the current session values.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{State: s.state, Account: s.account, ChainID: s.chainID, NetworkKey: s.networkKey}
}

// Account returns the connected account, or "".
func (s *Session) Account() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account
}

// BeginConnect marks a connection attempt in progress.
func (s *Session) BeginConnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Disconnected {
		s.state = Connecting
	}
}

// ConnectFailed abandons a connection attempt.
func (s *Session) ConnectFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Connecting {
		s.state = Disconnected
	}
}

// Connected records a successful connection.
func (s *Session) Connected(account string, chainID int64) {
	s.mu.Lock()
	s.state = Connected
	s.account = account
	s.setChainLocked(chainID)
	s.mu.Unlock()
	s.bus.Success("Wallet connected")
}

// SetNetwork records an explicit network switch.
func (s *Session) SetNetwork(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.networkKey = key
	if n, err := s.registry.Get(key); err == nil {
		s.chainID = n.ChainID
	}
}

// Apply updates the session from a wallet event.
func (s *Session) Apply(ev Event) {
	switch ev.Kind {
	case AccountsChanged:
		s.mu.Lock()
		if len(ev.Accounts) == 0 {
			s.state = Disconnected
			s.account = ""
			s.chainID = 0
			s.networkKey = ""
			s.mu.Unlock()
			s.bus.Info("Wallet disconnected")
			return
		}
		s.state = Connected
		s.account = ev.Accounts[0]
		s.mu.Unlock()
		s.bus.Success("Account connected")

	case ChainChanged:
		s.mu.Lock()
		s.setChainLocked(ev.ChainID)
		key := s.networkKey
		s.mu.Unlock()
		if key == chain.OtherNetwork {
			s.bus.Warn("Network changed to an unsupported network")
			return
		}
		s.bus.Info("Network changed to " + s.registry.DisplayName(key))
	}
}

// Watch applies events until the channel closes or ctx is done.
func (s *Session) Watch(ctx context.Context, events <-chan Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			s.Apply(ev)
		}
	}
}

func (s *Session) setChainLocked(id int64) {
	s.chainID = id
	s.networkKey = s.registry.KeyForChainID(id)
}
