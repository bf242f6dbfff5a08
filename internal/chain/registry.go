package chain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedNetwork is returned when a network key or chain ID is not in
// the registry.
var ErrUnsupportedNetwork = errors.New("unsupported network")

// OtherNetwork is the key reported for a connected chain outside the table.
const OtherNetwork = "other"

// Network holds all metadata for a single supported network.
type Network struct {
	Key            string `json:"key"`
	DisplayName    string `json:"display_name"`
	ChainID        int64  `json:"chain_id"`
	RPCURL         string `json:"rpc_url"`
	CurrencyName   string `json:"currency_name"`
	CurrencySymbol string `json:"currency_symbol"`
	Explorer       string `json:"explorer"`
	// Etherscan-compatible API root used for tokentx queries.
	ExplorerAPI string `json:"explorer_api"`
	// CredentialEnv is the environment variable holding the explorer API key.
	CredentialEnv string `json:"credential_env"`
}

// HexChainID returns the chain ID in the 0x-prefixed form wallets expect.
func (n *Network) HexChainID() string {
	return fmt.Sprintf("0x%x", n.ChainID)
}

// AddressURL links to an account page on the network's explorer.
func (n *Network) AddressURL(addr string) string {
	return n.Explorer + "/address/" + addr
}

// TokenURL links to a token page on the network's explorer.
func (n *Network) TokenURL(addr string) string {
	return n.Explorer + "/token/" + addr
}

// TxURL links to a transaction page on the network's explorer.
func (n *Network) TxURL(hash string) string {
	return n.Explorer + "/tx/" + hash
}

// Registry is the network registry.
type Registry struct {
	networks []Network
	byKey    map[string]*Network
}

// NewRegistry creates the registry of the four supported networks.
func NewRegistry() *Registry {
	networks := allNetworks()
	r := &Registry{
		networks: networks,
		byKey:    make(map[string]*Network, len(networks)),
	}
	for i := range r.networks {
		n := &r.networks[i]
		r.byKey[n.Key] = n
	}
	return r
}

// All returns every network in table order.
func (r *Registry) All() []Network {
	return r.networks
}

// Keys returns the network keys in table order.
func (r *Registry) Keys() []string {
	keys := make([]string, len(r.networks))
	for i, n := range r.networks {
		keys[i] = n.Key
	}
	return keys
}

// Get finds a network by key (e.g. "polygon"). Keys are case-insensitive.
func (r *Registry) Get(key string) (*Network, error) {
	n, ok := r.byKey[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedNetwork, key)
	}
	return n, nil
}

// GetByChainID finds a network by its numeric chain ID.
func (r *Registry) GetByChainID(id int64) (*Network, error) {
	for i := range r.networks {
		if r.networks[i].ChainID == id {
			return &r.networks[i], nil
		}
	}
	return nil, fmt.Errorf("%w: chain id %d", ErrUnsupportedNetwork, id)
}

// KeyForChainID maps an observed chain ID to its key, or OtherNetwork.
func (r *Registry) KeyForChainID(id int64) string {
	n, err := r.GetByChainID(id)
	if err != nil {
		return OtherNetwork
	}
	return n.Key
}

// DisplayName resolves a key to its display name. Unknown keys, including
// OtherNetwork, yield "Unknown network".
func (r *Registry) DisplayName(key string) string {
	n, err := r.Get(key)
	if err != nil {
		return "Unknown network"
	}
	return n.DisplayName
}

// SetRPC overrides the RPC URL advertised for a network.
func (r *Registry) SetRPC(key, url string) error {
	n, err := r.Get(key)
	if err != nil {
		return err
	}
	n.RPCURL = url
	return nil
}

// SupportedMessage lists the supported keys for error responses.
func (r *Registry) SupportedMessage() string {
	return "Supported networks are: " + strings.Join(r.Keys(), ", ")
}

func allNetworks() []Network {
	return []Network{
		// 1. Ethereum
		{
			Key:            "ethereum",
			DisplayName:    "Ethereum",
			ChainID:        1,
			RPCURL:         "https://eth.llamarpc.com",
			CurrencyName:   "ETH",
			CurrencySymbol: "ETH",
			Explorer:       "https://etherscan.io",
			ExplorerAPI:    "https://api.etherscan.io/api",
			CredentialEnv:  "ETHERSCAN_API_KEY",
		},
		// 2. Polygon
		{
			Key:            "polygon",
			DisplayName:    "Polygon",
			ChainID:        137,
			RPCURL:         "https://polygon-rpc.com",
			CurrencyName:   "MATIC",
			CurrencySymbol: "MATIC",
			Explorer:       "https://polygonscan.com",
			ExplorerAPI:    "https://api.polygonscan.com/api",
			CredentialEnv:  "POLYGONSCAN_API_KEY",
		},
		// 3. BNB Smart Chain
		{
			Key:            "bsc",
			DisplayName:    "BNB Smart Chain",
			ChainID:        56,
			RPCURL:         "https://bsc-dataseed.binance.org",
			CurrencyName:   "BNB",
			CurrencySymbol: "BNB",
			Explorer:       "https://bscscan.com",
			ExplorerAPI:    "https://api.bscscan.com/api",
			CredentialEnv:  "BSCSCAN_API_KEY",
		},
		// 4. Arbitrum One
		{
			Key:            "arbitrum",
			DisplayName:    "Arbitrum One",
			ChainID:        42161,
			RPCURL:         "https://arb1.arbitrum.io/rpc",
			CurrencyName:   "ETH",
			CurrencySymbol: "ETH",
			Explorer:       "https://arbiscan.io",
			ExplorerAPI:    "https://api.arbiscan.io/api",
			CredentialEnv:  "ARBISCAN_API_KEY",
		},
	}
}
