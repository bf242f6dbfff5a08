package rescue

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/balance"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/explorer"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lower-case so they double as Progress keys
const (
	owner  = "0x1111111111111111111111111111111111111111"
	dest   = "0x3333333333333333333333333333333333333333"
	tokenA = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	tokenB = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	tokenC = "0xcccccccccccccccccccccccccccccccccccccccc"
)

type call struct {
	token, from, to string
	amount          *big.Int
}

type fakeTransferer struct {
	mu     sync.Mutex
	calls  []call
	fail   map[string]error
	before func(token string)
}

func (f *fakeTransferer) Transfer(ctx context.Context, token, from, to string, amount *big.Int) (string, error) {
	if f.before != nil {
		f.before(token)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{token, from, to, amount})
	if err := f.fail[strings.ToLower(token)]; err != nil {
		return "", err
	}
	return "0xhash-" + token[2:6], nil
}

func (f *fakeTransferer) tokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		out = append(out, c.token)
	}
	return out
}

type fakeBalances map[string]*big.Int

func (f fakeBalances) BalanceOf(_ context.Context, token, _ string) (*big.Int, error) {
	b, ok := f[token]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return b, nil
}

func tok(addr, symbol string, raw int64) balance.TokenBalance {
	r := big.NewInt(raw)
	return balance.TokenBalance{
		ContractAddress: addr,
		TokenSymbol:     symbol,
		Decimals:        6,
		Balance:         balance.FormatUnits(r, 6),
		Raw:             r,
	}
}

func tokens() []balance.TokenBalance {
	return []balance.TokenBalance{tok(tokenA, "AAA", 1_500_000), tok(tokenB, "BBB", 42), tok(tokenC, "CCC", 7)}
}

func newOrchestrator(tr Transferer, opts ...Option) *Orchestrator {
	o := New(tr, opts...)
	o.newID = func() string { return "batch-1" }
	return o
}

func TestRunTransfersSelectedInOrder(t *testing.T) {
	tr := &fakeTransferer{}
	bus := notify.NewBus(16)
	res, err := newOrchestrator(tr, WithNotifier(bus)).Run(context.Background(), Request{
		From: owner, Destination: dest, Selected: []string{tokenB, tokenA}, Tokens: tokens(),
	})
	require.NoError(t, err)

	assert.Equal(t, "batch-1", res.BatchID)
	assert.Equal(t, []string{tokenB, tokenA}, tr.tokens())
	assert.Equal(t, big.NewInt(42), tr.calls[0].amount)
	assert.Equal(t, big.NewInt(1_500_000), tr.calls[1].amount)
	assert.Equal(t, owner, tr.calls[0].from)
	assert.Equal(t, dest, tr.calls[0].to)

	assert.Equal(t, map[string]Status{tokenA: StatusSuccess, tokenB: StatusSuccess}, res.Progress.Snapshot())
	assert.Equal(t, 2, res.Succeeded())
	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, "0xhash-bbbb", res.Outcomes[0].TxHash)

	var msgs []string
	for _, n := range bus.Drain() {
		msgs = append(msgs, n.Message)
	}
	assert.Equal(t, []string{"Successfully transferred BBB", "Successfully transferred AAA"}, msgs)
}

func TestRunContinuesAfterFailure(t *testing.T) {
	tr := &fakeTransferer{fail: map[string]error{tokenA: errors.New("user rejected transaction")}}
	bus := notify.NewBus(16)
	res, err := newOrchestrator(tr, WithNotifier(bus)).Run(context.Background(), Request{
		From: owner, Destination: dest, Selected: []string{tokenA, tokenB}, Tokens: tokens(),
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]Status{tokenA: StatusError, tokenB: StatusSuccess}, res.Progress.Snapshot())
	assert.Equal(t, 1, res.Failed())
	assert.Equal(t, 1, res.Succeeded())
	assert.EqualError(t, res.Outcomes[0].Err, "user rejected transaction")

	notices := bus.Drain()
	require.Len(t, notices, 2)
	assert.Equal(t, notify.LevelError, notices[0].Level)
	assert.Equal(t, "Failed to transfer AAA: user rejected transaction", notices[0].Message)
	assert.Equal(t, notify.LevelSuccess, notices[1].Level)
}

func TestRunValidation(t *testing.T) {
	cases := []struct {
		name   string
		req    Request
		target error
		notice string
	}{
		{"no destination", Request{From: owner, Selected: []string{tokenA}}, ErrNoDestination, "Please enter a destination wallet address"},
		{"bad destination", Request{From: owner, Destination: "0x123", Selected: []string{tokenA}}, ErrNoDestination, "Please enter a destination wallet address"},
		{"no selection", Request{From: owner, Destination: dest}, ErrNoSelection, "Please select at least one token to transfer"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := &fakeTransferer{}
			bus := notify.NewBus(4)
			res, err := newOrchestrator(tr, WithNotifier(bus)).Run(context.Background(), tc.req)
			assert.ErrorIs(t, err, tc.target)
			assert.Nil(t, res)
			assert.Empty(t, tr.tokens(), "no transaction attempted")
			notices := bus.Drain()
			require.Len(t, notices, 1)
			assert.Equal(t, tc.notice, notices[0].Message)
		})
	}
}

func TestNoDestinationIsInvalidAddress(t *testing.T) {
	err := Validate(Request{Selected: []string{tokenA}})
	assert.ErrorIs(t, err, explorer.ErrInvalidAddress)
}

func TestRunSkipsUnknownAndDuplicate(t *testing.T) {
	tr := &fakeTransferer{}
	unknown := "0x9999999999999999999999999999999999999999"
	res, err := newOrchestrator(tr).Run(context.Background(), Request{
		From: owner, Destination: dest,
		Selected: []string{unknown, tokenC, strings.ToUpper("0x") + strings.ToUpper(tokenC[2:])},
		Tokens:   tokens(),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{tokenC}, tr.tokens())
	assert.Len(t, res.Skipped, 2)
	assert.Equal(t, unknown, res.Skipped[0])
}

func TestRunStreamsUpdates(t *testing.T) {
	tr := &fakeTransferer{fail: map[string]error{tokenB: errors.New("reverted")}}
	updates := make(chan Update, 16)
	_, err := newOrchestrator(tr, WithUpdates(updates)).Run(context.Background(), Request{
		From: owner, Destination: dest, Selected: []string{tokenA, tokenB}, Tokens: tokens(),
	})
	require.NoError(t, err)
	close(updates)

	var got []string
	for u := range updates {
		got = append(got, fmt.Sprintf("%s:%s", u.Token.TokenSymbol, u.Status))
	}
	assert.Equal(t, []string{"AAA:pending", "AAA:success", "BBB:pending", "BBB:error"}, got)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tr := &fakeTransferer{before: func(token string) {
		if token == tokenA {
			cancel()
		}
	}}
	res, err := newOrchestrator(tr).Run(ctx, Request{
		From: owner, Destination: dest, Selected: []string{tokenA, tokenB, tokenC}, Tokens: tokens(),
	})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, []string{tokenA}, tr.tokens(), "nothing submitted after cancel")
	assert.Equal(t, map[string]Status{tokenA: StatusSuccess}, res.Progress.Snapshot())
}

func TestRunLiveBalances(t *testing.T) {
	tr := &fakeTransferer{}
	live := fakeBalances{tokenA: big.NewInt(99), tokenB: big.NewInt(0)}
	res, err := newOrchestrator(tr, WithLiveBalances(live)).Run(context.Background(), Request{
		From: owner, Destination: dest, Selected: []string{tokenA, tokenB, tokenC}, Tokens: tokens(),
	})
	require.NoError(t, err)

	require.Len(t, tr.calls, 1)
	assert.Equal(t, big.NewInt(99), tr.calls[0].amount)
	snap := res.Progress.Snapshot()
	assert.Equal(t, StatusSuccess, snap[tokenA])
	assert.Equal(t, StatusError, snap[tokenB])
	assert.Equal(t, StatusError, snap[tokenC])
	assert.ErrorIs(t, res.Outcomes[1].Err, ErrNothingToMove)
}

func TestRunFallsBackToDisplayBalance(t *testing.T) {
	tr := &fakeTransferer{}
	tb := balance.TokenBalance{ContractAddress: tokenA, TokenSymbol: "AAA", Decimals: 6, Balance: "1.5"}
	_, err := newOrchestrator(tr).Run(context.Background(), Request{
		From: owner, Destination: dest, Selected: []string{tokenA}, Tokens: []balance.TokenBalance{tb},
	})
	require.NoError(t, err)
	require.Len(t, tr.calls, 1)
	assert.Equal(t, big.NewInt(1_500_000), tr.calls[0].amount)
}

func TestParseUnits(t *testing.T) {
	v, err := ParseUnits("1.000001", 6)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1_000_001), v)

	v, err = ParseUnits("12", 0)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(12), v)

	_, err = ParseUnits("0.0000001", 6)
	assert.Error(t, err)
	_, err = ParseUnits("-1", 6)
	assert.Error(t, err)
	_, err = ParseUnits("abc", 6)
	assert.Error(t, err)
}
