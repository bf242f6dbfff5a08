// Package rescue moves the full balance of selected ERC-20 tokens from the
// connected wallet to a destination address, one transfer at a time.
package rescue

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/balance"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/explorer"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/notify"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Errors returned before any transaction is attempted.
var (
	ErrNoDestination = fmt.Errorf("%w: destination wallet", explorer.ErrInvalidAddress)
	ErrNoSelection   = errors.New("no tokens selected")
	ErrNothingToMove = errors.New("nothing to transfer")
)

// Transferer submits a token transfer and waits for it to be mined.
// *wallet.Gateway satisfies it.
type Transferer interface {
	Transfer(ctx context.Context, token, from, to string, amount *big.Int) (string, error)
}

// BalanceReader reads a live on-chain balance.
type BalanceReader interface {
	BalanceOf(ctx context.Context, token, owner string) (*big.Int, error)
}

// Request describes one rescue run.
type Request struct {
	From        string
	Destination string
	// Selected holds contract addresses, in the order they are processed.
	Selected []string
	// Tokens is the balance list the selection was made from.
	Tokens []balance.TokenBalance
}

// Update reports one state change of a token.
type Update struct {
	Token  balance.TokenBalance
	Status Status
	TxHash string
	Err    error
}

// Outcome is the final state of one processed token.
type Outcome struct {
	Token  balance.TokenBalance
	Status Status
	Amount *big.Int
	TxHash string
	Err    error
}

// Result summarises a run.
type Result struct {
	BatchID  string
	Progress *Progress
	Outcomes []Outcome
	// Skipped holds selected addresses that were not in the token list or
	// were selected twice.
	Skipped []string
}

// Succeeded counts successful transfers.
func (r *Result) Succeeded() int {
	_, ok, _ := r.Progress.Counts()
	return ok
}

// Failed counts failed transfers.
func (r *Result) Failed() int {
	_, _, failed := r.Progress.Counts()
	return failed
}

// Orchestrator runs rescue batches.
type Orchestrator struct {
	transferer Transferer
	live       BalanceReader
	bus        *notify.Bus
	updates    chan<- Update
	log        zerolog.Logger
	newID      func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithNotifier publishes a notice per settled token.
func WithNotifier(b *notify.Bus) Option {
	return func(o *Orchestrator) { o.bus = b }
}

// WithUpdates streams every state change to ch. Run never closes ch.
func WithUpdates(ch chan<- Update) Option {
	return func(o *Orchestrator) { o.updates = ch }
}

// WithLiveBalances re-reads each balance on chain right before its
// transfer instead of trusting the aggregated figure.
func WithLiveBalances(r BalanceReader) Option {
	return func(o *Orchestrator) { o.live = r }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// New creates an orchestrator.
func New(t Transferer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		transferer: t,
		log:        zerolog.Nop(),
		newID:      func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Validate checks a request without touching the chain.
func Validate(req Request) error {
	to := strings.TrimSpace(req.Destination)
	if to == "" {
		return fmt.Errorf("%w: address is required", ErrNoDestination)
	}
	if !common.IsHexAddress(to) {
		return fmt.Errorf("%w: %q", ErrNoDestination, to)
	}
	if len(req.Selected) == 0 {
		return ErrNoSelection
	}
	return nil
}

// Run transfers each selected token in turn. A failed token is recorded and
// the run moves on. When ctx is cancelled no further transfers are
// submitted and the partial result is returned with ctx.Err().
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	if err := Validate(req); err != nil {
		switch {
		case errors.Is(err, ErrNoSelection):
			o.bus.Error("Please select at least one token to transfer")
		default:
			o.bus.Error("Please enter a destination wallet address")
		}
		return nil, err
	}

	res := &Result{BatchID: o.newID(), Progress: NewProgress()}
	log := o.log.With().Str("batch", res.BatchID).Logger()
	to := strings.TrimSpace(req.Destination)
	log.Info().Str("to", to).Int("selected", len(req.Selected)).Msg("rescue started")

	for _, addr := range req.Selected {
		if err := ctx.Err(); err != nil {
			log.Warn().Err(err).Msg("rescue cancelled")
			return res, err
		}

		tok, ok := balance.Find(req.Tokens, addr)
		if !ok {
			log.Warn().Str("token", addr).Msg("selected token not in balance list, skipping")
			res.Skipped = append(res.Skipped, addr)
			continue
		}
		if err := res.Progress.Begin(tok.ContractAddress); err != nil {
			log.Warn().Err(err).Msg("skipping duplicate selection")
			res.Skipped = append(res.Skipped, addr)
			continue
		}
		o.emit(ctx, Update{Token: tok, Status: StatusPending})

		out := o.transfer(ctx, req.From, to, tok)
		if out.Err != nil {
			_ = res.Progress.Fail(tok.ContractAddress)
			log.Error().Err(out.Err).Str("token", tok.ContractAddress).Str("symbol", tok.TokenSymbol).Msg("transfer failed")
			o.bus.Error(fmt.Sprintf("Failed to transfer %s: %s", tok.TokenSymbol, out.Err))
		} else {
			_ = res.Progress.Succeed(tok.ContractAddress)
			log.Info().Str("token", tok.ContractAddress).Str("symbol", tok.TokenSymbol).Str("tx", out.TxHash).Msg("transfer confirmed")
			o.bus.Success("Successfully transferred " + tok.TokenSymbol)
		}
		res.Outcomes = append(res.Outcomes, out)
		o.emit(ctx, Update{Token: tok, Status: out.Status, TxHash: out.TxHash, Err: out.Err})
	}

	log.Info().Int("succeeded", res.Succeeded()).Int("failed", res.Failed()).Msg("rescue finished")
	return res, nil
}

func (o *Orchestrator) transfer(ctx context.Context, from, to string, tok balance.TokenBalance) Outcome {
	out := Outcome{Token: tok, Status: StatusError}

	amount, err := o.amount(ctx, from, tok)
	if err != nil {
		out.Err = err
		return out
	}
	out.Amount = amount

	hash, err := o.transferer.Transfer(ctx, tok.ContractAddress, from, to, amount)
	out.TxHash = hash
	if err != nil {
		out.Err = err
		return out
	}
	out.Status = StatusSuccess
	return out
}

// amount is the full balance to move: the live on-chain figure when
// configured, otherwise the aggregated one.
func (o *Orchestrator) amount(ctx context.Context, from string, tok balance.TokenBalance) (*big.Int, error) {
	if o.live != nil {
		bal, err := o.live.BalanceOf(ctx, tok.ContractAddress, from)
		if err != nil {
			return nil, err
		}
		if bal.Sign() == 0 {
			return nil, ErrNothingToMove
		}
		return bal, nil
	}
	if tok.Raw != nil {
		return new(big.Int).Set(tok.Raw), nil
	}
	return ParseUnits(tok.Balance, tok.Decimals)
}

// ParseUnits converts a human amount into base units; it fails when the
// amount has more fractional digits than decimals allows.
func ParseUnits(amount string, decimals int) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("amount %q has more than %d decimals", amount, decimals)
	}
	if scaled.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", amount)
	}
	return scaled.BigInt(), nil
}

func (o *Orchestrator) emit(ctx context.Context, u Update) {
	if o.updates == nil {
		return
	}
	select {
	case o.updates <- u:
	case <-ctx.Done():
	}
}
