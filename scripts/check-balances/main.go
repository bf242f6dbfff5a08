// check-balances: lists ERC-20 holdings for a set of wallets across every
// supported network in parallel and prints a summary table. Explorer API
// keys come from the environment (or a .env file in the working directory).
//
// Run from the module root:
//
//	go run ./scripts/check-balances [address ...]
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/balance"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/chain"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/explorer"
	"github.com/joho/godotenv"
)

// ── config ────────────────────────────────────────────────────────────────────

var defaultWallets = []string{
	"0xd8dA6BF26964aF9D7eEd9e03E53415D37aA96045",
	"0x28C6c06298d514Db089934071355E5743bf21d60",
}

const requestTimeout = 15 * time.Second

// ── types ─────────────────────────────────────────────────────────────────────

type result struct {
	network string
	wallet  string // short form
	tokens  int
	top     string // first few symbols with balances
	err     string
}

// ── main ──────────────────────────────────────────────────────────────────────

func main() {
	_ = godotenv.Load()

	wallets := defaultWallets
	if len(os.Args) > 1 {
		wallets = os.Args[1:]
	}

	reg := chain.NewRegistry()
	client := explorer.NewClient(reg, explorer.NewEnvCredentials(reg),
		explorer.WithHTTPClient(&http.Client{Timeout: requestTimeout}))
	agg := balance.NewAggregator(client, reg)

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results []result
	)

	for _, n := range reg.All() {
		for _, wallet := range wallets {
			wg.Add(1)
			go func(network, wallet string) {
				defer wg.Done()

				ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
				defer cancel()

				r := result{network: network, wallet: shortAddr(wallet)}
				tokens, err := agg.Balances(ctx, wallet, network)
				if err != nil {
					r.err = shortErr(err)
				} else {
					r.tokens = len(tokens)
					r.top = summarize(tokens, 3)
				}

				mu.Lock()
				results = append(results, r)
				mu.Unlock()
			}(n.Key, wallet)
		}
	}

	wg.Wait()

	printTable(results)
}

// ── output ────────────────────────────────────────────────────────────────────

func printTable(results []result) {
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.network != b.network {
			return a.network < b.network
		}
		return a.wallet < b.wallet
	})

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "NETWORK\tWALLET\tTOKENS\tLATEST\tNOTE")
	fmt.Fprintln(w, strings.Repeat("-", 10)+"\t"+
		strings.Repeat("-", 14)+"\t"+
		strings.Repeat("-", 6)+"\t"+
		strings.Repeat("-", 40)+"\t"+
		strings.Repeat("-", 12))

	lastNetwork := ""
	for _, r := range results {
		if r.network != lastNetwork {
			if lastNetwork != "" {
				fmt.Fprintln(w, "\t\t\t\t") // blank separator between networks
			}
			lastNetwork = r.network
		}
		tokens := "—"
		if r.err == "" {
			tokens = fmt.Sprintf("%d", r.tokens)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.network, r.wallet, tokens, r.top, r.err)
	}
	w.Flush()
}

// ── helpers ───────────────────────────────────────────────────────────────────

func summarize(tokens []balance.TokenBalance, max int) string {
	parts := make([]string, 0, max)
	for i, tb := range tokens {
		if i == max {
			parts = append(parts, fmt.Sprintf("+%d more", len(tokens)-max))
			break
		}
		parts = append(parts, tb.Balance+" "+tb.TokenSymbol)
	}
	return strings.Join(parts, ", ")
}

func shortAddr(addr string) string {
	if len(addr) < 10 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}

func shortErr(err error) string {
	s := err.Error()
	if len(s) > 40 {
		return s[:40] + "…"
	}
	return s
}
