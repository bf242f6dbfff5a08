package cmd

import (
	"context"
	"fmt"

	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/balance"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/chain"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/config"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/ui"
	"github.com/spf13/cobra"
)

var (
	balancesNetwork  string
	balancesEndpoint string
	balancesDirect   bool
)

var balancesCmd = &cobra.Command{
	Use:   "balances [address]",
	Short: "List the ERC-20 tokens an address has received",
	Long: `List ERC-20 tokens for an address from block-explorer transfer history.

Each token's balance is the value of its most recent transfer. Requests go
through the balance proxy (balance_endpoint in config, or --endpoint); with
--direct the explorers are queried with locally held API keys.

Without an address the connected wallet account is used.

Examples:
  dappastra balances 0xd8dA6BF26964aF9D7eEd9e03E53415D37aA96045 --network ethereum
  dappastra balances --direct`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := resolveNetwork(balancesNetwork)
		if err != nil {
			return err
		}

		address := ""
		if len(args) == 1 {
			address = args[0]
		} else {
			conn, err := openWallet(cmd.Context(), nil)
			if err != nil {
				return err
			}
			address, err = connectOn(cmd.Context(), conn.gateway, "")
			conn.Close()
			if err != nil {
				return err
			}
		}

		agg := balance.NewAggregator(balanceSource(balancesEndpoint, balancesDirect), registry)
		tokens, err := fetchBalances(cmd.Context(), agg, address, n)
		if err != nil {
			return err
		}
		printBalances(address, n, tokens)
		return nil
	},
}

func fetchBalances(ctx context.Context, agg *balance.Aggregator, address string, n *chain.Network) ([]balance.TokenBalance, error) {
	ctx, cancel := context.WithTimeout(ctx, config.UpstreamTimeout)
	defer cancel()

	spin := ui.NewSpinner(fmt.Sprintf("Fetching token transfers on %s…", n.DisplayName))
	spin.Start()
	tokens, err := agg.Balances(ctx, address, n.Key)
	spin.Stop()
	return tokens, err
}

func printBalances(address string, n *chain.Network, tokens []balance.TokenBalance) {
	fmt.Println(ui.StyleTitle.Render(fmt.Sprintf("Tokens of %s on %s", ui.TruncateAddr(address), n.DisplayName)))
	if len(tokens) == 0 {
		fmt.Println(ui.Meta("No token transfers found."))
		return
	}
	t := ui.NewTable([]ui.Column{
		{Title: "Symbol", Width: 10},
		{Title: "Name", Width: 24},
		{Title: "Balance", Width: 26, Right: true},
		{Title: "Contract", Width: 42},
	})
	for _, tb := range tokens {
		t.AddRow(ui.Row{tb.TokenSymbol, tb.TokenName, tb.Balance, tb.ContractAddress})
	}
	fmt.Println(t.Render())
	fmt.Println(ui.Meta(fmt.Sprintf("%d tokens · balances are the latest transfer values · %s", len(tokens), n.AddressURL(address))))
}

func init() {
	balancesCmd.Flags().StringVarP(&balancesNetwork, "network", "n", "", "network (default: configured network)")
	balancesCmd.Flags().StringVar(&balancesEndpoint, "endpoint", "", "balance proxy URL (default: config balance_endpoint)")
	balancesCmd.Flags().BoolVar(&balancesDirect, "direct", false, "query the explorers directly instead of the proxy")
}
