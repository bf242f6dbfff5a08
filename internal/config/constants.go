package config

import "time"

// Timeout constants used across cmd and the balance server.
const (
	WalletRequestTimeout = 2 * time.Minute  // connect / switch prompts awaiting the user
	TxConfirmTimeout     = 3 * time.Minute  // token transfer confirmation wait
	TxDeployTimeout      = 5 * time.Minute  // contract deployment confirmation wait
	UpstreamTimeout      = 15 * time.Second // one block-explorer call
	ShutdownTimeout      = 30 * time.Second // graceful HTTP shutdown
)

// MaxRequestBody caps the balance endpoint's JSON body.
const MaxRequestBody = 64 << 10
