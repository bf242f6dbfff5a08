package config

// Config holds all dappastra CLI configuration.
type Config struct {
	DefaultNetwork string `json:"default_network"`
	// WalletRPC is the wallet endpoint (http, ws or IPC path). Empty means
	// no wallet is available.
	WalletRPC string `json:"wallet_rpc"`
	// ArtifactPath points at the compiled token contract ({"abi","bytecode"}).
	ArtifactPath string `json:"artifact_path"`
	// BalanceEndpoint is the balance proxy URL. Empty means query the
	// explorers directly with locally held keys.
	BalanceEndpoint    string            `json:"balance_endpoint"`
	RPCOverrides       map[string]string `json:"rpc_overrides"`
	ReceiptPollSeconds int               `json:"receipt_poll_seconds"`

	// internal: config dir path used for Save()
	configDir string
}

// Deployment is a token deployed from this machine.
type Deployment struct {
	Name       string `json:"name"`
	Symbol     string `json:"symbol"`
	Decimals   uint8  `json:"decimals"`
	Supply     string `json:"supply"`
	Network    string `json:"network"`
	Address    string `json:"address"`
	TxHash     string `json:"tx_hash"`
	Owner      string `json:"owner"`
	DeployedAt string `json:"deployed_at"`
}

// DeploymentsFile is the structure of deployments.json.
type DeploymentsFile struct {
	Deployments []Deployment `json:"deployments"`
}
