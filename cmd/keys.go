package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/explorer"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/ui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage block-explorer API keys in the OS keychain",
	Long: `Explorer API keys are looked up in the environment first, then in the
OS keychain. Keys are never written to the config file.`,
}

var keysSetCmd = &cobra.Command{
	Use:   "set <network>",
	Short: "Store an explorer API key (read from the terminal, not echoed)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := resolveNetwork(args[0])
		if err != nil {
			return err
		}
		key, err := readSecret(fmt.Sprintf("%s API key: ", n.DisplayName))
		if err != nil {
			return err
		}
		if key == "" {
			return errors.New("empty API key")
		}
		kc, err := explorer.OpenKeychain()
		if err != nil {
			return err
		}
		if err := kc.Store(n.Key, key); err != nil {
			return err
		}
		fmt.Println(ui.Success("Stored API key for " + n.DisplayName))
		return nil
	},
}

var keysRemoveCmd = &cobra.Command{
	Use:   "remove <network>",
	Short: "Delete a stored explorer API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := resolveNetwork(args[0])
		if err != nil {
			return err
		}
		kc, err := explorer.OpenKeychain()
		if err != nil {
			return err
		}
		if err := kc.Delete(n.Key); err != nil {
			return err
		}
		fmt.Println(ui.Success("Removed API key for " + n.DisplayName))
		return nil
	},
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show where each network's API key comes from",
	RunE: func(cmd *cobra.Command, args []string) error {
		stored := map[string]bool{}
		if kc, err := explorer.OpenKeychain(); err == nil {
			names, err := kc.Networks()
			if err != nil {
				return err
			}
			for _, name := range names {
				stored[name] = true
			}
		} else {
			fmt.Println(ui.Warn("Keychain unavailable: " + err.Error()))
		}

		env := explorer.NewEnvCredentials(registry)
		t := ui.NewTable([]ui.Column{
			{Title: "Network", Width: 18},
			{Title: "Variable", Width: 22},
			{Title: "Environment", Width: 12},
			{Title: "Keychain", Width: 9},
		})
		for _, n := range registry.All() {
			_, inEnv := env.APIKey(n.Key)
			t.AddRow(ui.Row{n.DisplayName, n.CredentialEnv, yesNo(inEnv), yesNo(stored[n.Key])})
		}
		fmt.Println(t.Render())
		return nil
	},
}

// readSecret reads a line without echo on a terminal, or plainly from a pipe.
func readSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading API key: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading API key: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func yesNo(b bool) string {
	if b {
		return "✓"
	}
	return "·"
}

func init() {
	keysCmd.AddCommand(keysSetCmd, keysRemoveCmd, keysListCmd)
}
