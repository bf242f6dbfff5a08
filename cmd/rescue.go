package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/balance"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/chain"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/logging"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/notify"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/rescue"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	rescueTo       string
	rescueTokens   []string
	rescueAll      bool
	rescueLive     bool
	rescueNetwork  string
	rescueEndpoint string
	rescueDirect   bool
	rescueYes      bool
)

var rescueCmd = &cobra.Command{
	Use:   "rescue",
	Short: "Move tokens out of the connected wallet to a safe address",
	Long: `Emergency transfer: send the full balance of each selected token from the
connected account to a destination address, one token at a time. A failed
token does not stop the rest.

Balances come from explorer transfer history (the latest transfer value).
Use --live to read each balance on chain right before transferring.

Examples:
  dappastra rescue --to 0xSafe...            (pick tokens interactively)
  dappastra rescue --to 0xSafe... --all --live
  dappastra rescue --to 0xSafe... --token 0xA0b8... --token 0xdAC1...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		n, err := resolveNetwork(rescueNetwork)
		if err != nil {
			return err
		}
		to := strings.TrimSpace(rescueTo)
		if to == "" {
			to = ui.StdPrompter().Input("Destination wallet address", "")
		}

		bus := notify.NewBus(64)
		conn, err := openWallet(ctx, bus)
		if err != nil {
			return err
		}
		defer conn.Close()

		from, err := connectOn(ctx, conn.gateway, n.Key)
		if err != nil {
			return err
		}

		agg := balance.NewAggregator(balanceSource(rescueEndpoint, rescueDirect), registry)
		tokens, err := fetchBalances(ctx, agg, from, n)
		if err != nil {
			return err
		}
		if len(tokens) == 0 {
			fmt.Println(ui.Meta("No tokens found for " + from + " on " + n.DisplayName))
			return nil
		}

		selected := selectTokens(tokens, rescueTokens, rescueAll)
		if selected == nil {
			selected, err = ui.PickMany("Select tokens to transfer", tokenItems(tokens))
			if err != nil {
				return err
			}
		}

		req := rescue.Request{From: from, Destination: to, Selected: selected, Tokens: tokens}
		if err := rescue.Validate(req); err != nil {
			return err
		}

		fmt.Println(ui.DangerBox(rescueSummary(req, n)))
		if !rescueYes && !ui.StdPrompter().ConfirmDanger("Transfer these tokens? This cannot be undone.") {
			return errCancelled
		}

		opts := []rescue.Option{
			rescue.WithNotifier(bus),
			rescue.WithLogger(logging.Component(logger, "rescue")),
		}
		if rescueLive {
			opts = append(opts, rescue.WithLiveBalances(conn.gateway))
		}

		var res *rescue.Result
		if term.IsTerminal(int(os.Stdout.Fd())) {
			res, err = runRescueTUI(ctx, conn.gateway, opts, req, n)
		} else {
			res, err = runRescuePlain(ctx, conn.gateway, bus, opts, req)
		}
		if res != nil {
			printOutcomes(res, n)
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return fmt.Errorf("rescue stopped: %w", err)
			}
			return err
		}
		if f := res.Failed(); f > 0 {
			return fmt.Errorf("%d of %d transfers failed", f, len(res.Outcomes))
		}
		return nil
	},
}

// runRescueTUI drives the live progress view. Updates are forwarded in
// order and the done message is sent only after the last one.
func runRescueTUI(ctx context.Context, t rescue.Transferer, opts []rescue.Option, req rescue.Request, n *chain.Network) (*rescue.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates := make(chan rescue.Update)
	orch := rescue.New(t, append(opts, rescue.WithUpdates(updates))...)
	p := tea.NewProgram(ui.NewRescueModel(n.DisplayName, req.Destination, req.Tokens, req.Selected))

	var (
		res    *rescue.Result
		runErr error
	)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		res, runErr = orch.Run(ctx, req)
	}()
	go func() {
		for {
			select {
			case u := <-updates:
				p.Send(ui.RescueUpdateMsg(u))
			case <-finished:
				p.Send(ui.RescueDoneMsg{Err: runErr})
				return
			}
		}
	}()

	_, tuiErr := p.Run()
	// q stops further transfers; the one in flight settles first.
	cancel()
	<-finished
	if tuiErr != nil && runErr == nil {
		return res, tuiErr
	}
	return res, runErr
}

// runRescuePlain prints notices line by line for non-terminal output.
func runRescuePlain(ctx context.Context, t rescue.Transferer, bus *notify.Bus, opts []rescue.Option, req rescue.Request) (*rescue.Result, error) {
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for n := range bus.Notices() {
			fmt.Println(ui.Notice(n))
		}
	}()
	res, err := rescue.New(t, opts...).Run(ctx, req)
	bus.Close()
	<-printed
	return res, err
}

// selectTokens resolves --all and --token. A nil result means nothing was
// chosen on the command line and the picker should be shown.
func selectTokens(tokens []balance.TokenBalance, flagged []string, all bool) []string {
	if all {
		out := make([]string, 0, len(tokens))
		for _, tb := range tokens {
			out = append(out, tb.ContractAddress)
		}
		return out
	}
	if len(flagged) == 0 {
		return nil
	}
	out := make([]string, 0, len(flagged))
	for _, f := range flagged {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func tokenItems(tokens []balance.TokenBalance) []ui.PickerItem {
	items := make([]ui.PickerItem, 0, len(tokens))
	for _, tb := range tokens {
		items = append(items, ui.PickerItem{
			Label:    tb.TokenSymbol,
			SubLabel: tb.Balance + "  " + ui.TruncateAddr(tb.ContractAddress),
			Value:    tb.ContractAddress,
		})
	}
	return items
}

func rescueSummary(req rescue.Request, n *chain.Network) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "EMERGENCY TRANSFER on %s\n\n", n.DisplayName)
	fmt.Fprintf(&sb, "From  %s\nTo    %s\n\n", req.From, req.Destination)
	for _, addr := range req.Selected {
		tb, ok := balance.Find(req.Tokens, addr)
		if !ok {
			fmt.Fprintf(&sb, "  ?  %s (not in balance list, skipped)\n", addr)
			continue
		}
		fmt.Fprintf(&sb, "  •  %s %s\n", tb.Balance, tb.TokenSymbol)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func printOutcomes(res *rescue.Result, n *chain.Network) {
	if len(res.Outcomes) == 0 {
		return
	}
	t := ui.NewTable([]ui.Column{
		{Title: "Token", Width: 10},
		{Title: "Status", Width: 9},
		{Title: "Transaction / error", Width: 70},
	})
	for _, o := range res.Outcomes {
		detail := ""
		switch {
		case o.Err != nil:
			detail = o.Err.Error()
		case o.TxHash != "":
			detail = n.TxURL(o.TxHash)
		}
		t.AddRow(ui.Row{o.Token.TokenSymbol, string(o.Status), detail})
	}
	fmt.Println(t.Render())
	fmt.Println(ui.Meta(fmt.Sprintf("batch %s · %d transferred · %d failed", res.BatchID, res.Succeeded(), res.Failed())))
	for _, s := range res.Skipped {
		fmt.Println(ui.Warn("Skipped " + s))
	}
}

func init() {
	rescueCmd.Flags().StringVar(&rescueTo, "to", "", "destination wallet address")
	rescueCmd.Flags().StringSliceVar(&rescueTokens, "token", nil, "token contract to transfer (repeatable)")
	rescueCmd.Flags().BoolVar(&rescueAll, "all", false, "transfer every token found")
	rescueCmd.Flags().BoolVar(&rescueLive, "live", false, "read each balance on chain before transferring")
	rescueCmd.Flags().StringVarP(&rescueNetwork, "network", "n", "", "network (default: configured network)")
	rescueCmd.Flags().StringVar(&rescueEndpoint, "endpoint", "", "balance proxy URL (default: config balance_endpoint)")
	rescueCmd.Flags().BoolVar(&rescueDirect, "direct", false, "query the explorers directly instead of the proxy")
	rescueCmd.Flags().BoolVarP(&rescueYes, "yes", "y", false, "skip the confirmation prompt")
	rescueCmd.MarkFlagsMutuallyExclusive("all", "token")
}
