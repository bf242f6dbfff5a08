package explorer

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"

	"github.com/99designs/keyring"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/chain"
)

const keychainService = "dappastra"

// CredentialSource resolves the explorer API key for a network key. It is
// consulted on every request so rotated keys take effect immediately.
type CredentialSource interface {
	APIKey(network string) (string, bool)
}

// EnvCredentials reads keys from the process environment: the network's
// CredentialEnv (e.g. POLYGONSCAN_API_KEY) first, then the same name with a
// VITE_ prefix as used by existing Netlify deployments.
type EnvCredentials struct {
	registry *chain.Registry
	lookup   func(string) (string, bool)
}

// NewEnvCredentials creates an environment-backed source.
func NewEnvCredentials(reg *chain.Registry) *EnvCredentials {
	return &EnvCredentials{registry: reg, lookup: os.LookupEnv}
}

// APIKey implements CredentialSource.
func (e *EnvCredentials) APIKey(network string) (string, bool) {
	n, err := e.registry.Get(network)
	if err != nil {
		return "", false
	}
	for _, name := range []string{n.CredentialEnv, "VITE_" + n.CredentialEnv} {
		if v, ok := e.lookup(name); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// Keychain stores explorer API keys in the OS keychain.
type Keychain struct {
	ring keyring.Keyring
}

// OpenKeychain opens the OS keychain, falling back to the encrypted file
// backend on headless Linux.
func OpenKeychain() (*Keychain, error) {
	cfg := keyring.Config{
		ServiceName:              keychainService,
		KeychainTrustApplication: true,
	}
	if runtime.GOOS == "linux" {
		cfg.AllowedBackends = []keyring.BackendType{
			keyring.SecretServiceBackend,
			keyring.KWalletBackend,
			keyring.FileBackend,
		}
	}
	ring, err := keyring.Open(cfg)
	if err != nil {
		ring, err = keyring.Open(keyring.Config{
			ServiceName:     keychainService,
			AllowedBackends: []keyring.BackendType{keyring.FileBackend},
		})
		if err != nil {
			return nil, fmt.Errorf("opening keychain: %w", err)
		}
	}
	return &Keychain{ring: ring}, nil
}

// NewKeychain wraps an existing keyring (tests use keyring.NewArrayKeyring).
func NewKeychain(ring keyring.Keyring) *Keychain {
	return &Keychain{ring: ring}
}

func keychainRef(network string) string {
	return keychainService + ".explorer." + strings.ToLower(network)
}

// Store saves the API key for a network.
func (k *Keychain) Store(network, apiKey string) error {
	err := k.ring.Set(keyring.Item{
		Key:   keychainRef(network),
		Data:  []byte(apiKey),
		Label: "DappAstra " + network + " explorer API key",
	})
	if err != nil {
		return fmt.Errorf("keychain store: %w", err)
	}
	return nil
}

// Delete removes the API key for a network. Missing keys are not an error.
func (k *Keychain) Delete(network string) error {
	err := k.ring.Remove(keychainRef(network))
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("keychain remove: %w", err)
	}
	return nil
}

// Networks lists the networks with a stored key.
func (k *Keychain) Networks() ([]string, error) {
	keys, err := k.ring.Keys()
	if err != nil {
		return nil, fmt.Errorf("keychain list: %w", err)
	}
	prefix := keychainService + ".explorer."
	var out []string
	for _, key := range keys {
		if strings.HasPrefix(key, prefix) {
			out = append(out, strings.TrimPrefix(key, prefix))
		}
	}
	sort.Strings(out)
	return out, nil
}

// APIKey implements CredentialSource.
func (k *Keychain) APIKey(network string) (string, bool) {
	item, err := k.ring.Get(keychainRef(network))
	if err != nil || len(item.Data) == 0 {
		return "", false
	}
	return string(item.Data), true
}

// Chain tries each source in order.
type Chain []CredentialSource

// APIKey implements CredentialSource.
func (c Chain) APIKey(network string) (string, bool) {
	for _, src := range c {
		if src == nil {
			continue
		}
		if v, ok := src.APIKey(network); ok {
			return v, true
		}
	}
	return "", false
}

// MemoryCredentials is a fixed network → key map.
type MemoryCredentials map[string]string

// APIKey implements CredentialSource.
func (m MemoryCredentials) APIKey(network string) (string, bool) {
	v, ok := m[strings.ToLower(network)]
	return v, ok && v != ""
}
