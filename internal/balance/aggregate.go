// Package balance turns an address's token-transfer history into a list of
// per-token balances.
package balance

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/chain"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/explorer"
	"github.com/shopspring/decimal"
)

// TokenBalance is one token held by an address. Balance is the
// human-readable amount; Raw is the same amount in base units.
type TokenBalance struct {
	ContractAddress string   `json:"contractAddress"`
	TokenName       string   `json:"tokenName"`
	TokenSymbol     string   `json:"tokenSymbol"`
	Decimals        int      `json:"decimals"`
	Balance         string   `json:"balance"`
	Raw             *big.Int `json:"-"`
}

// Source supplies transfer history, most recent first.
type Source interface {
	TokenTransfers(ctx context.Context, network, address string) ([]explorer.TokenTransfer, error)
}

// Aggregate keeps the first (most recent) record per contract, in the order
// contracts are first seen, and reports its value as the balance.
// Contract addresses compare case-insensitively.
func Aggregate(transfers []explorer.TokenTransfer) ([]TokenBalance, error) {
	seen := make(map[string]struct{}, len(transfers))
	out := make([]TokenBalance, 0, len(transfers))
	for i, t := range transfers {
		key := strings.ToLower(t.ContractAddress)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		tb, err := fromTransfer(t)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, tb)
	}
	return out, nil
}

func fromTransfer(t explorer.TokenTransfer) (TokenBalance, error) {
	decimals, err := strconv.Atoi(t.TokenDecimal)
	if err != nil || decimals < 0 {
		return TokenBalance{}, fmt.Errorf("%w: tokenDecimal %q", explorer.ErrRequestFailed, t.TokenDecimal)
	}
	raw, ok := new(big.Int).SetString(t.Value, 10)
	if !ok || raw.Sign() < 0 {
		return TokenBalance{}, fmt.Errorf("%w: value %q", explorer.ErrRequestFailed, t.Value)
	}
	return TokenBalance{
		ContractAddress: t.ContractAddress,
		TokenName:       t.TokenName,
		TokenSymbol:     t.TokenSymbol,
		Decimals:        decimals,
		Balance:         FormatUnits(raw, decimals),
		Raw:             raw,
	}, nil
}

// FormatUnits renders raw base units with the given decimals, keeping at
// least one fractional digit ("1.0", "0.000001", "1234.5").
func FormatUnits(raw *big.Int, decimals int) string {
	d := decimal.NewFromBigInt(raw, -int32(decimals))
	s := d.String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Aggregator fetches history from a Source and aggregates it.
type Aggregator struct {
	source   Source
	registry *chain.Registry
}

// NewAggregator creates an aggregator.
func NewAggregator(src Source, reg *chain.Registry) *Aggregator {
	return &Aggregator{source: src, registry: reg}
}

// Balances returns the aggregated balances of address on network.
func (a *Aggregator) Balances(ctx context.Context, address, network string) ([]TokenBalance, error) {
	if strings.TrimSpace(address) == "" {
		return nil, fmt.Errorf("%w: address is required", explorer.ErrInvalidAddress)
	}
	if _, err := a.registry.Get(network); err != nil {
		return nil, err
	}
	transfers, err := a.source.TokenTransfers(ctx, network, address)
	if err != nil {
		return nil, err
	}
	return Aggregate(transfers)
}

// Find returns the balance for contract, matching case-insensitively.
func Find(balances []TokenBalance, contract string) (TokenBalance, bool) {
	for _, b := range balances {
		if strings.EqualFold(b.ContractAddress, contract) {
			return b, true
		}
	}
	return TokenBalance{}, false
}
