// Package explorer provides a client for the block-explorer HTTP API.
// The explorer records creation transactions, verified source metadata, and
// runtime bytecode for deployed contracts.
package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrNotFound is returned when the explorer has no record for a resource.
var ErrNotFound = errors.New("not found")

// Client is a rate-limited explorer API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithRateLimit caps outgoing requests per second with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(client *Client) {
		client.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// New creates a new explorer client.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(10), 10),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Address is the explorer's record for an account.
type Address struct {
	Hash                    string `json:"hash"`
	IsContract              bool   `json:"is_contract"`
	CreationTransactionHash string `json:"creation_transaction_hash"`
}

// TransactionParty is the sender or recipient of a transaction.
type TransactionParty struct {
	Hash string `json:"hash"`
}

// Transaction is the explorer's record for a transaction. To is nil for
// direct contract deployments.
type Transaction struct {
	Hash     string            `json:"hash"`
	To       *TransactionParty `json:"to"`
	RawInput string            `json:"raw_input"`
}

// IsFactoryDeployment reports whether the transaction was a call into another
// contract rather than a direct deployment.
func (t *Transaction) IsFactoryDeployment() bool {
	return t.To != nil
}

// SmartContract is the explorer's verified-source record for a contract.
type SmartContract struct {
	Name                string           `json:"name"`
	DeployedBytecode    string           `json:"deployed_bytecode"`
	CompilerVersion     string           `json:"compiler_version"`
	OptimizationEnabled *bool            `json:"optimization_enabled"`
	OptimizationRuns    *int             `json:"optimization_runs"`
	EVMVersion          string           `json:"evm_version"`
	CompilerSettings    CompilerSettings `json:"compiler_settings"`
	FilePath            string           `json:"file_path"`
	VerifiedAt          string           `json:"verified_at"`
}

// CompilerSettings is the subset of the verified standard-json settings the
// engine cares about.
type CompilerSettings struct {
	ViaIR bool `json:"viaIR"`
}

// GetAddress fetches the account record for an address.
func (c *Client) GetAddress(ctx context.Context, address string) (*Address, error) {
	var out Address
	if err := c.get(ctx, "/addresses/"+strings.ToLower(address), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTransaction fetches a transaction by hash.
func (c *Client) GetTransaction(ctx context.Context, hash string) (*Transaction, error) {
	var out Transaction
	if err := c.get(ctx, "/transactions/"+hash, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSmartContract fetches the verified-source record for an address.
// Returns ErrNotFound when the contract is not verified on the explorer.
func (c *Client) GetSmartContract(ctx context.Context, address string) (*SmartContract, error) {
	var out SmartContract
	if err := c.get(ctx, "/smart-contracts/"+strings.ToLower(address), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("explorer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("explorer returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding explorer response: %w", err)
	}
	return nil
}
