package cmd

import (
	"fmt"
	"os"

	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/chain"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/config"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/logging"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/ui"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Version is the current release. Overridable via build ldflags:
//
//	go build -ldflags "-X github.com/DappAstra/DappAstra-ERC20-Generator/cmd.Version=1.2.3" .
var Version = "0.1.0"

var (
	cfgDir    string
	cfg       *config.Config
	verbose   bool
	walletRPC string
	registry  *chain.Registry
	logger    = zerolog.Nop()
)

// rootCmd is the top-level command.
var rootCmd = &cobra.Command{
	Use:   "dappastra",
	Short: "ERC-20 token generator and emergency transfer tool",
	Long: `dappastra deploys ERC-20 tokens and moves tokens out of a compromised
wallet, signing everything through your own wallet endpoint.

  Networks: Ethereum, Polygon, BNB Smart Chain, Arbitrum.

The wallet endpoint (http, ws or IPC) is read from config; set it once with:
  dappastra wallet connect --rpc ws://127.0.0.1:8550`,
	Version:       Version,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		// .env never overrides variables that are already set.
		_ = godotenv.Load()

		logger = logging.New(os.Stderr, verbose)

		var err error
		cfg, err = config.Load(cfgDir)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if walletRPC != "" {
			cfg.WalletRPC = walletRPC
		}

		registry = chain.NewRegistry()
		for key, url := range cfg.RPCOverrides {
			if err := registry.SetRPC(key, url); err != nil {
				logger.Warn().Err(err).Str("network", key).Msg("ignoring rpc override")
			}
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.Err(err.Error()))
		os.Exit(1)
	}
}

func init() {
	// DAPPASTRA_CONFIG_DIR env var sets the default for --config-dir.
	if envDir := os.Getenv("DAPPASTRA_CONFIG_DIR"); envDir != "" {
		cfgDir = envDir
	}

	rootCmd.PersistentFlags().StringVar(&cfgDir, "config-dir", cfgDir, "config directory (default: ~/.dappastra)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&walletRPC, "wallet", "", "wallet endpoint for this invocation (overrides config)")

	rootCmd.AddCommand(
		networkCmd,
		walletCmd,
		tokenCmd,
		balancesCmd,
		rescueCmd,
		serveCmd,
		keysCmd,
	)
}
