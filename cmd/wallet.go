package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/logging"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/notify"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/ui"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/wallet"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	walletConnectRPC string
	walletWatch      bool
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Connect to your wallet and inspect the session",
}

var walletConnectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Request account access from the wallet",
	Long: `Ask the wallet for account access. Signing always happens in the wallet.

The endpoint can be any JSON-RPC wallet bridge reachable over http, ws or
IPC. Pass --rpc to use and remember a new endpoint.

Examples:
  dappastra wallet connect --rpc ws://127.0.0.1:8550
  dappastra wallet connect`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if walletConnectRPC != "" {
			cfg.WalletRPC = walletConnectRPC
		}

		conn, err := openWallet(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer conn.Close()

		account, err := connectOn(cmd.Context(), conn.gateway, "")
		if err != nil {
			return err
		}
		snap := conn.gateway.Session().Snapshot()

		if walletConnectRPC != "" {
			if err := cfg.Save(); err != nil {
				return err
			}
		}

		fmt.Println(ui.Success("Wallet connected"))
		fmt.Println(ui.KeyValueBlock("Session", sessionPairs(account, snap)))
		if snap.NetworkKey != cfg.DefaultNetwork {
			fmt.Println(ui.Hint("Switch networks with: dappastra network switch " + cfg.DefaultNetwork))
		}
		return nil
	},
}

var walletStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the connected account and network",
	Long: `Show the wallet session. With --watch the view stays open and reports
account and network changes as the wallet makes them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if walletWatch {
			return watchWallet(cmd.Context())
		}

		conn, err := openWallet(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer conn.Close()

		account, err := connectOn(cmd.Context(), conn.gateway, "")
		if err != nil {
			return err
		}
		fmt.Println(ui.KeyValueBlock("Session", sessionPairs(account, conn.gateway.Session().Snapshot())))
		return nil
	},
}

func sessionPairs(account string, snap wallet.Snapshot) [][2]string {
	pairs := [][2]string{
		{"State", snap.State.String()},
		{"Account", account},
		{"Network", fmt.Sprintf("%s (chain %d)", registry.DisplayName(snap.NetworkKey), snap.ChainID)},
	}
	if n, err := registry.Get(snap.NetworkKey); err == nil {
		pairs = append(pairs, [2]string{"Explorer", n.AddressURL(account)})
	}
	return pairs
}

// watchWallet polls the wallet and renders session changes until q.
func watchWallet(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	bus := notify.NewBus(32)
	conn, err := openWallet(ctx, bus)
	if err != nil {
		return err
	}
	defer conn.Close()
	if conn.provider == nil {
		return wallet.ErrWalletUnavailable
	}

	session := conn.gateway.Session()
	p := tea.NewProgram(ui.WatchModel{DisplayName: registry.DisplayName}, tea.WithOutput(os.Stdout))

	poller := wallet.NewPoller(conn.provider, cfg.ReceiptPoll(), logging.Component(logger, "poller"))
	go func() {
		_ = session.Watch(ctx, poller.Run(ctx))
		bus.Close()
	}()
	go func() {
		for n := range bus.Notices() {
			p.Send(ui.SessionMsg(session.Snapshot()))
			p.Send(ui.NoticeMsg(n))
		}
	}()

	_, err = p.Run()
	return err
}

func init() {
	walletConnectCmd.Flags().StringVar(&walletConnectRPC, "rpc", "", "wallet endpoint to use and save (http, ws or IPC path)")
	walletStatusCmd.Flags().BoolVar(&walletWatch, "watch", false, "keep watching for account and network changes")
	walletCmd.AddCommand(walletConnectCmd, walletStatusCmd)
}
