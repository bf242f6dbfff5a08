package cmd

import (
	"context"
	"fmt"

	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/config"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/ui"
	"github.com/spf13/cobra"
)

var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "List networks and switch the wallet between them",
}

var networkListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the supported networks",
	RunE: func(cmd *cobra.Command, args []string) error {
		t := ui.NewTable([]ui.Column{
			{Title: " ", Width: 2},
			{Title: "Key", Width: 10},
			{Title: "Name", Width: 18},
			{Title: "Chain ID", Width: 9, Right: true},
			{Title: "Currency", Width: 9},
			{Title: "Explorer", Width: 28},
		})
		for _, n := range registry.All() {
			mark := ""
			if n.Key == cfg.DefaultNetwork {
				mark = "●"
			}
			t.AddRow(ui.Row{
				mark,
				ui.ChainName(n.Key),
				n.DisplayName,
				fmt.Sprintf("%d", n.ChainID),
				n.CurrencySymbol,
				n.Explorer,
			})
		}
		fmt.Println(t.Render())
		fmt.Println(ui.Meta(fmt.Sprintf("%d networks · ● default", len(registry.All()))))
		return nil
	},
}

var networkCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the default network and the wallet's network",
	RunE: func(cmd *cobra.Command, args []string) error {
		pairs := [][2]string{{"Default", registry.DisplayName(cfg.DefaultNetwork)}}

		conn, err := openWallet(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer conn.Close()

		if conn.gateway.Available() {
			ctx, cancel := context.WithTimeout(cmd.Context(), config.UpstreamTimeout)
			defer cancel()
			id, err := conn.gateway.CurrentChain(ctx)
			if err != nil {
				return err
			}
			key := registry.KeyForChainID(id)
			pairs = append(pairs, [2]string{"Wallet", fmt.Sprintf("%s (chain %d)", registry.DisplayName(key), id)})
		} else {
			pairs = append(pairs, [2]string{"Wallet", "not configured"})
		}

		fmt.Println(ui.KeyValueBlock("Network", pairs))
		return nil
	},
}

var networkSwitchCmd = &cobra.Command{
	Use:   "switch [network]",
	Short: "Switch the wallet to a network and make it the default",
	Long: `Ask the wallet to switch networks. If the wallet does not know the chain
it is offered to the wallet first. The network also becomes the default for
later commands. Without an argument a picker is shown.

Examples:
  dappastra network switch polygon
  dappastra network switch`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var key string
		if len(args) == 1 {
			key = args[0]
		} else {
			picked, err := ui.PickItem("Switch network", networkItems())
			if err != nil {
				return err
			}
			if picked == "" {
				return nil
			}
			key = picked
		}

		n, err := resolveNetwork(key)
		if err != nil {
			return err
		}

		conn, err := openWallet(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer conn.Close()

		if conn.gateway.Available() {
			if _, err := connectOn(cmd.Context(), conn.gateway, n.Key); err != nil {
				return err
			}
		} else {
			fmt.Println(ui.Warn("No wallet configured, only the default network is changed"))
		}

		cfg.DefaultNetwork = n.Key
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Println(ui.Success("Switched to " + ui.ChainName(n.DisplayName)))
		return nil
	},
}

var networkRPCCmd = &cobra.Command{
	Use:   "rpc <network> [url]",
	Short: "Set the RPC URL offered to the wallet when it adds a network",
	Long: `Override the public RPC URL sent with wallet_addEthereumChain.
Without a URL the override is removed.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := resolveNetwork(args[0])
		if err != nil {
			return err
		}
		url := ""
		if len(args) == 2 {
			url = args[1]
		}
		cfg.SetRPC(n.Key, url)
		if err := cfg.Save(); err != nil {
			return err
		}
		if url == "" {
			fmt.Println(ui.Success("RPC override removed for " + n.DisplayName))
		} else {
			fmt.Println(ui.Success(fmt.Sprintf("RPC for %s set to %s", n.DisplayName, url)))
		}
		return nil
	},
}

func networkItems() []ui.PickerItem {
	var items []ui.PickerItem
	for _, n := range registry.All() {
		items = append(items, ui.PickerItem{
			Label:    n.DisplayName,
			SubLabel: fmt.Sprintf("%s · chain %d", n.Key, n.ChainID),
			Value:    n.Key,
		})
	}
	return items
}

func init() {
	networkCmd.AddCommand(networkListCmd, networkCurrentCmd, networkSwitchCmd, networkRPCCmd)
}
