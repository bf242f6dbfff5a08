package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/chain"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/config"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/contract"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/ui"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/validation"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/wallet"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	errCancelled    = errors.New("cancelled")
	errInvalidToken = errors.New("token parameters are invalid")
)

// ── flag vars ─────────────────────────────────────────────────────────────────

var (
	tokenName     string
	tokenSymbol   string
	tokenSupply   string
	tokenDecimals string
	tokenNetwork  string
	tokenArtifact string
	tokenYes      bool
)

// ── root token command ────────────────────────────────────────────────────────

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Validate, estimate and deploy ERC-20 tokens",
	Long: `Deploy a fixed-supply ERC-20 token. The connected account becomes the
owner and receives the entire supply.

Sub-commands:
  dappastra token validate   check token parameters without a wallet
  dappastra token estimate   ask the wallet for a gas estimate
  dappastra token create     deploy the token
  dappastra token list       tokens deployed from this machine`,
}

// ── token validate ────────────────────────────────────────────────────────────

var tokenValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check token parameters",
	RunE: func(cmd *cobra.Command, args []string) error {
		form := formFromFlags()
		req, err := form.Request()
		if err != nil {
			return fieldError(err)
		}
		scaled, err := req.ScaledSupply()
		if err != nil {
			return err
		}
		fmt.Println(ui.Success("Token parameters are valid"))
		fmt.Println(ui.KeyValueBlock("Token", append(requestPairs(req), [2]string{"Base units", scaled.String()})))
		return nil
	},
}

// ── token estimate ────────────────────────────────────────────────────────────

var tokenEstimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate the gas needed to deploy a token",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := prepareDeploy(cmd)
		if err != nil {
			return err
		}
		defer d.conn.Close()

		fee, err := estimate(cmd.Context(), d)
		if err != nil {
			return err
		}
		fmt.Println(ui.KeyValueBlock("Estimate", append(append(requestPairs(d.req),
			[2]string{"Network", d.network.DisplayName}),
			feePairs(fee, d.network)...,
		)))
		return nil
	},
}

// ── token create ──────────────────────────────────────────────────────────────

var tokenCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Deploy a new ERC-20 token",
	Long: `Deploy a new ERC-20 token from the compiled contract artifact.

Missing parameters are collected in an interactive form. The wallet is asked
to switch to the target network if needed, then to sign the deployment.

Examples:
  dappastra token create --name "My Token" --symbol MTK --supply 1000000 --network polygon
  dappastra token create   (interactive form)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := prepareDeploy(cmd)
		if err != nil {
			return err
		}
		defer d.conn.Close()

		fee, err := estimate(cmd.Context(), d)
		if err != nil {
			return err
		}
		logger.Debug().Str("fee", fee.String()).Str("network", d.network.Key).Msg("deployment estimated")

		fmt.Println(ui.KeyValueBlock("Deploy", append(append(requestPairs(d.req),
			[2]string{"Network", d.network.DisplayName},
			[2]string{"Owner", d.owner}),
			feePairs(fee, d.network)...,
		)))
		if !tokenYes && !ui.StdPrompter().Confirm("Deploy this token?") {
			return errCancelled
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), config.TxDeployTimeout)
		defer cancel()

		spin := ui.NewSpinner("Waiting for the wallet and the deployment receipt…")
		spin.Start()
		dep, err := d.conn.gateway.Deploy(ctx, d.req, d.owner)
		if err != nil {
			spin.Stop()
			return err
		}
		spin.StopWithMsg(ui.Success(fmt.Sprintf("Token %s deployed", d.req.Symbol)))

		fmt.Println(ui.KeyValueBlock("Deployed", [][2]string{
			{"Address", dep.Address},
			{"Tx", dep.TxHash},
			{"Block", fmt.Sprintf("%d", dep.Block)},
			{"Gas used", fmt.Sprintf("%d", dep.GasUsed)},
			{"Token", d.network.TokenURL(dep.Address)},
			{"Transaction", d.network.TxURL(dep.TxHash)},
		}))

		err = cfg.RecordDeployment(config.Deployment{
			Name:       d.req.Name,
			Symbol:     d.req.Symbol,
			Decimals:   d.req.Decimals,
			Supply:     d.req.TotalSupply,
			Network:    d.network.Key,
			Address:    dep.Address,
			TxHash:     dep.TxHash,
			Owner:      d.owner,
			DeployedAt: time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			fmt.Println(ui.Warn("Could not record deployment: " + err.Error()))
		}
		return nil
	},
}

// ── token list ────────────────────────────────────────────────────────────────

var tokenListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tokens deployed from this machine",
	RunE: func(cmd *cobra.Command, args []string) error {
		df, err := cfg.LoadDeployments()
		if err != nil {
			return err
		}
		if len(df.Deployments) == 0 {
			fmt.Println(ui.Meta("No deployments yet."))
			fmt.Println(ui.Hint("Deploy one with: dappastra token create"))
			return nil
		}
		t := ui.NewTable([]ui.Column{
			{Title: "Symbol", Width: 10},
			{Title: "Name", Width: 20},
			{Title: "Supply", Width: 18, Right: true},
			{Title: "Network", Width: 10},
			{Title: "Address", Width: 42},
			{Title: "Deployed", Width: 20},
		})
		for _, dep := range df.Deployments {
			t.AddRow(ui.Row{dep.Symbol, dep.Name, dep.Supply, dep.Network, dep.Address, dep.DeployedAt})
		}
		fmt.Println(t.Render())
		return nil
	},
}

// ── helpers ───────────────────────────────────────────────────────────────────

// deployment holds everything a deploy or estimate needs.
type deployment struct {
	req     contract.DeployRequest
	network *chain.Network
	conn    *walletConn
	owner   string
}

func prepareDeploy(cmd *cobra.Command) (*deployment, error) {
	form, network, err := collectForm()
	if err != nil {
		return nil, err
	}
	req, err := form.Request()
	if err != nil {
		return nil, fieldError(err)
	}
	n, err := resolveNetwork(network)
	if err != nil {
		return nil, err
	}

	path := tokenArtifact
	if path == "" {
		path = cfg.ArtifactPath
	}
	if path == "" {
		return nil, fmt.Errorf("no contract artifact configured: pass --artifact or set artifact_path in %s", cfg.Dir())
	}
	art, err := contract.LoadArtifact(path)
	if err != nil {
		return nil, err
	}

	conn, err := openWallet(cmd.Context(), nil, wallet.WithArtifact(art))
	if err != nil {
		return nil, err
	}
	owner, err := connectOn(cmd.Context(), conn.gateway, n.Key)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &deployment{req: req, network: n, conn: conn, owner: owner}, nil
}

func estimate(ctx context.Context, d *deployment) (*wallet.FeeEstimate, error) {
	ctx, cancel := context.WithTimeout(ctx, config.WalletRequestTimeout)
	defer cancel()
	return d.conn.gateway.EstimateFee(ctx, d.req, d.owner)
}

func feePairs(fee *wallet.FeeEstimate, n *chain.Network) [][2]string {
	return [][2]string{
		{"Gas", fmt.Sprintf("%d", fee.Gas)},
		{"Gas price", fee.GasPriceGwei() + " gwei"},
		{"Est. cost", fee.CostString() + " " + n.CurrencySymbol},
	}
}

// formFromFlags builds the form from command-line flags. Decimals default
// to 18.
func formFromFlags() validation.Form {
	dec := strings.TrimSpace(tokenDecimals)
	if dec == "" {
		dec = "18"
	}
	return validation.Form{Name: tokenName, Symbol: tokenSymbol, Supply: tokenSupply, Decimals: dec}
}

// collectForm fills missing parameters interactively: the full-screen form
// on a terminal, line prompts otherwise.
func collectForm() (validation.Form, string, error) {
	form := formFromFlags()
	network := tokenNetwork
	if tokenName != "" && tokenSymbol != "" && tokenSupply != "" {
		return form, network, nil
	}

	if term.IsTerminal(int(os.Stdin.Fd())) {
		if network == "" {
			network = cfg.DefaultNetwork
		}
		res, err := ui.RunTokenWizard(form, registry.Keys(), network)
		if err != nil {
			return form, "", err
		}
		if res.Cancelled {
			return form, "", errCancelled
		}
		return res.Form, res.Network, nil
	}

	p := ui.StdPrompter()
	form.Name = p.InputValid("Token name", form.Name, validation.Name)
	form.Symbol = p.InputValid("Token symbol", form.Symbol, validation.Symbol)
	form.Supply = p.InputValid("Total supply", form.Supply, validation.Supply)
	form.Decimals = p.InputValid("Decimals", form.Decimals, validation.Decimals)
	return form, network, nil
}

func requestPairs(req contract.DeployRequest) [][2]string {
	return [][2]string{
		{"Name", req.Name},
		{"Symbol", req.Symbol},
		{"Supply", req.TotalSupply},
		{"Decimals", fmt.Sprintf("%d", req.Decimals)},
	}
}

// fieldError prints validation failures in form order and returns a short
// summary error for the exit status.
func fieldError(err error) error {
	var fe validation.FieldErrors
	if !errors.As(err, &fe) {
		return err
	}
	for _, f := range fe.Fields() {
		fmt.Println(ui.Err(fmt.Sprintf("%s: %s", f, fe[f])))
	}
	return errInvalidToken
}

func init() {
	for _, c := range []*cobra.Command{tokenValidateCmd, tokenEstimateCmd, tokenCreateCmd} {
		c.Flags().StringVar(&tokenName, "name", "", "token name (3-50 characters)")
		c.Flags().StringVar(&tokenSymbol, "symbol", "", "token symbol (2-10 uppercase letters or digits)")
		c.Flags().StringVar(&tokenSupply, "supply", "", "total supply in whole tokens")
		c.Flags().StringVar(&tokenDecimals, "decimals", "", "decimals (0-18, default 18)")
	}
	for _, c := range []*cobra.Command{tokenEstimateCmd, tokenCreateCmd} {
		c.Flags().StringVarP(&tokenNetwork, "network", "n", "", "target network (default: configured network)")
		c.Flags().StringVar(&tokenArtifact, "artifact", "", "compiled contract artifact JSON (default: config artifact_path)")
	}
	tokenCreateCmd.Flags().BoolVarP(&tokenYes, "yes", "y", false, "skip the confirmation prompt")

	tokenCmd.AddCommand(tokenValidateCmd, tokenEstimateCmd, tokenCreateCmd, tokenListCmd)
}
