package rescue

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Status is the transfer state of one token.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError
}

// ErrInvalidTransition is returned for any move other than
// absent → pending → success|error.
var ErrInvalidTransition = errors.New("invalid transfer state transition")

// Progress tracks per-token transfer state, keyed by lower-cased contract
// address. It is safe for concurrent use.
type Progress struct {
	mu     sync.Mutex
	states map[string]Status
	order  []string
}

// NewProgress returns an empty tracker.
func NewProgress() *Progress {
	return &Progress{states: make(map[string]Status)}
}

func key(token string) string {
	return strings.ToLower(strings.TrimSpace(token))
}

// Begin marks an untracked token pending.
func (p *Progress) Begin(token string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	k := key(token)
	if cur, ok := p.states[k]; ok {
		return fmt.Errorf("%w: %s is already %s", ErrInvalidTransition, token, cur)
	}
	p.states[k] = StatusPending
	p.order = append(p.order, k)
	return nil
}

// Succeed moves a pending token to success.
func (p *Progress) Succeed(token string) error {
	return p.settle(token, StatusSuccess)
}

// Fail moves a pending token to error.
func (p *Progress) Fail(token string) error {
	return p.settle(token, StatusError)
}

func (p *Progress) settle(token string, to Status) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	k := key(token)
	cur, ok := p.states[k]
	if !ok {
		return fmt.Errorf("%w: %s was never started", ErrInvalidTransition, token)
	}
	if cur != StatusPending {
		return fmt.Errorf("%w: %s is already %s", ErrInvalidTransition, token, cur)
	}
	p.states[k] = to
	return nil
}

// Status returns a token's state and whether it is tracked at all.
func (p *Progress) Status(token string) (Status, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.states[key(token)]
	return s, ok
}

// Snapshot copies the state map.
func (p *Progress) Snapshot() map[string]Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]Status, len(p.states))
	for k, v := range p.states {
		out[k] = v
	}
	return out
}

// Tokens lists tracked tokens in the order they were started.
func (p *Progress) Tokens() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.order...)
}

// Counts tallies tokens by state.
func (p *Progress) Counts() (pending, succeeded, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.states {
		switch s {
		case StatusPending:
			pending++
		case StatusSuccess:
			succeeded++
		case StatusError:
			failed++
		}
	}
	return pending, succeeded, failed
}
