package cmd

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/config"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/explorer"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/logging"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/server"
	"github.com/spf13/cobra"
)

var (
	serveConfig      string
	serveAddr        string
	servePrintConfig bool
	serveKeychain    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the block-explorer balance proxy",
	Long: `Serve POST/GET /api/token-balances (and the legacy
/.netlify/functions/getTokenBalances path). Explorer API keys stay on the
server: they are read from the environment (ETHERSCAN_API_KEY,
POLYGONSCAN_API_KEY, BSCSCAN_API_KEY, ARBISCAN_API_KEY, or the VITE_
prefixed names) and, with --keychain, from the OS keychain.

Examples:
  dappastra serve
  dappastra serve --config server.toml --addr 0.0.0.0:8787
  dappastra serve --print-config > server.toml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := config.LoadServer(serveConfig)
		if err != nil {
			return err
		}
		if serveAddr != "" {
			sc.ListenAddr = serveAddr
		}
		if servePrintConfig {
			out, err := sc.Encode()
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		}

		var metrics *server.Metrics
		if sc.MetricsEnabled {
			metrics = server.NewMetrics()
		}

		opts := []explorer.Option{
			explorer.WithHTTPClient(&http.Client{Timeout: sc.UpstreamTimeout.Duration}),
			explorer.WithLogger(logging.Component(logger, "explorer")),
			explorer.WithObserver(metrics.ObserveUpstream),
		}
		for network, base := range sc.ExplorerAPI {
			if _, err := registry.Get(network); err != nil {
				return fmt.Errorf("explorer_api: %w", err)
			}
			opts = append(opts, explorer.WithBaseURL(network, base))
		}
		client := explorer.NewClient(registry, credentials(serveKeychain), opts...)

		srv := server.New(sc, registry, client,
			server.WithLogger(logging.Component(logger, "server")),
			server.WithMetrics(metrics),
		)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.Info().Str("addr", sc.ListenAddr).Bool("metrics", sc.MetricsEnabled).
			Int("rpm", sc.RequestsPerMinute).Msg("balance proxy starting")
		return srv.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveConfig, "config", "", "server config file (.toml)")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	serveCmd.Flags().BoolVar(&servePrintConfig, "print-config", false, "print the effective config as TOML and exit")
	serveCmd.Flags().BoolVar(&serveKeychain, "keychain", false, "also read explorer API keys from the OS keychain")
}
