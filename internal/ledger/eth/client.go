// Package eth reaches the external on-chain collaborators over JSON-RPC: the
// token ledger that counts units held per account, and the edition contracts
// whose owners may administer sales.
package eth

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"
)

// ClientConfig holds connection parameters for the JSON-RPC endpoint.
type ClientConfig struct {
	RPCURL string
}

// Client wraps an ethclient connection.
type Client struct {
	ec *ethclient.Client
}

// New dials the configured JSON-RPC endpoint.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("eth: dial %s: %w", cfg.RPCURL, err)
	}
	return &Client{ec: ec}, nil
}

// Close shuts down the underlying RPC connection.
func (c *Client) Close() {
	c.ec.Close()
}

// Underlying returns the raw ethclient for the oracle and access types.
func (c *Client) Underlying() *ethclient.Client {
	return c.ec
}
