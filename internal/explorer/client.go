// Package explorer queries Etherscan-compatible block-explorer APIs for an
// address's ERC-20 transfer history.
package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/chain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// Errors.
var (
	ErrInvalidAddress    = errors.New("invalid address")
	ErrMissingCredential = errors.New("API configuration missing")
	ErrRequestFailed     = errors.New("explorer request failed")
	ErrAPI               = errors.New("explorer API error")
)

// noTransactions is what Etherscan-family APIs answer, with status "0",
// for an address that has no token activity.
const noTransactions = "No transactions found"

// maxBodyLog caps how much of an unparseable body is written to the log.
const maxBodyLog = 512

// TokenTransfer is one record of a tokentx response.
type TokenTransfer struct {
	BlockNumber     string `json:"blockNumber"`
	TimeStamp       string `json:"timeStamp"`
	Hash            string `json:"hash"`
	From            string `json:"from"`
	To              string `json:"to"`
	ContractAddress string `json:"contractAddress"`
	TokenName       string `json:"tokenName"`
	TokenSymbol     string `json:"tokenSymbol"`
	TokenDecimal    string `json:"tokenDecimal"`
	Value           string `json:"value"`
}

// Response is the explorer envelope as returned to proxy callers.
type Response struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  []TokenTransfer `json:"result"`
}

// envelope keeps Result raw: failures carry a string, successes an array.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// DecodeError reports a transfer record that does not match the expected
// schema. It unwraps to ErrRequestFailed.
type DecodeError struct {
	Index  int
	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid response from API: record %d: %s %s", e.Index, e.Field, e.Reason)
}

func (e *DecodeError) Unwrap() error { return ErrRequestFailed }

// Client calls the per-network explorer APIs.
type Client struct {
	registry *chain.Registry
	creds    CredentialSource
	http     *http.Client
	baseURLs map[string]string
	log      zerolog.Logger
	observe  func(network string, d time.Duration, err error)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for upstream calls.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithBaseURL points a network at a different API root.
func WithBaseURL(network, base string) Option {
	return func(c *Client) { c.baseURLs[strings.ToLower(network)] = base }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithObserver registers a hook called after every upstream call.
func WithObserver(f func(network string, d time.Duration, err error)) Option {
	return func(c *Client) { c.observe = f }
}

// NewClient creates an explorer client.
func NewClient(reg *chain.Registry, creds CredentialSource, opts ...Option) *Client {
	c := &Client{
		registry: reg,
		creds:    creds,
		http:     &http.Client{Timeout: 15 * time.Second},
		baseURLs: map[string]string{},
		log:      zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Fetch returns the address's token transfers, most recent first, in the
// explorer's own envelope. "No token activity" is a success with an empty
// result.
func (c *Client) Fetch(ctx context.Context, network, address string) (*Response, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("%w: address is required", ErrInvalidAddress)
	}
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	n, err := c.registry.Get(network)
	if err != nil {
		return nil, err
	}
	apiKey, ok := c.creds.APIKey(n.Key)
	if !ok {
		return nil, fmt.Errorf("%w for %s", ErrMissingCredential, n.Key)
	}

	start := time.Now()
	resp, err := c.fetch(ctx, n, address, apiKey)
	if c.observe != nil {
		c.observe(n.Key, time.Since(start), err)
	}
	return resp, err
}

// TokenTransfers is Fetch without the envelope.
func (c *Client) TokenTransfers(ctx context.Context, network, address string) ([]TokenTransfer, error) {
	resp, err := c.Fetch(ctx, network, address)
	if err != nil {
		return nil, err
	}
	return resp.Result, nil
}

func (c *Client) fetch(ctx context.Context, n *chain.Network, address, apiKey string) (*Response, error) {
	base := n.ExplorerAPI
	if override, ok := c.baseURLs[n.Key]; ok {
		base = override
	}
	q := url.Values{}
	q.Set("module", "account")
	q.Set("action", "tokentx")
	q.Set("address", address)
	q.Set("sort", "desc")
	q.Set("apikey", apiKey)
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+sep+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		// url.Error would echo the query string, apikey included.
		return nil, fmt.Errorf("%w: %s unreachable: %v", ErrRequestFailed, n.Key, unwrapURLError(err))
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrRequestFailed, err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("%w: HTTP error! status: %d", ErrRequestFailed, res.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		c.log.Error().Err(err).Str("network", n.Key).Str("body", truncate(body, maxBodyLog)).
			Msg("unparseable explorer response")
		return nil, fmt.Errorf("%w: invalid response from API", ErrRequestFailed)
	}

	if env.Status != "1" {
		if isEmptyResult(env) {
			return &Response{Status: "1", Message: noTransactions, Result: []TokenTransfer{}}, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrAPI, apiMessage(env))
	}

	transfers, err := decodeTransfers(env.Result)
	if err != nil {
		c.log.Error().Err(err).Str("network", n.Key).Str("body", truncate(body, maxBodyLog)).
			Msg("malformed explorer records")
		return nil, err
	}
	return &Response{Status: env.Status, Message: env.Message, Result: transfers}, nil
}

// decodeTransfers parses and checks every record, failing closed on the
// first bad one.
func decodeTransfers(raw json.RawMessage) ([]TokenTransfer, error) {
	var out []TokenTransfer
	if len(raw) == 0 || string(raw) == "null" {
		return []TokenTransfer{}, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &DecodeError{Index: -1, Field: "result", Reason: "is not a list of transfers"}
	}
	for i, t := range out {
		if !common.IsHexAddress(t.ContractAddress) {
			return nil, &DecodeError{Index: i, Field: "contractAddress", Reason: "is not an address"}
		}
		if d, err := strconv.Atoi(t.TokenDecimal); err != nil || d < 0 || d > 255 {
			return nil, &DecodeError{Index: i, Field: "tokenDecimal", Reason: "is not an integer in [0,255]"}
		}
		if v, ok := new(big.Int).SetString(t.Value, 10); !ok || v.Sign() < 0 {
			return nil, &DecodeError{Index: i, Field: "value", Reason: "is not a non-negative integer"}
		}
	}
	if out == nil {
		out = []TokenTransfer{}
	}
	return out, nil
}

func isEmptyResult(env envelope) bool {
	if strings.EqualFold(env.Message, noTransactions) {
		return true
	}
	var list []json.RawMessage
	return env.Message != "NOTOK" && json.Unmarshal(env.Result, &list) == nil && len(list) == 0
}

// apiMessage prefers the result string ("Invalid API Key") over the
// generic message ("NOTOK").
func apiMessage(env envelope) string {
	var s string
	if json.Unmarshal(env.Result, &s) == nil && s != "" {
		return s
	}
	if env.Message != "" {
		return env.Message
	}
	return "status " + env.Status
}

func unwrapURLError(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "…"
}
