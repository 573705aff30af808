package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultTxWaitTimeout is the default timeout for waiting for transaction execution.
const DefaultTxWaitTimeout = 2 * time.Minute

// DefaultPollInterval is the default interval for polling transaction status.
const DefaultPollInterval = 2 * time.Second

// GetTransactionBlock returns a transaction with its effects.
func (c *Client) GetTransactionBlock(ctx context.Context, digest string) (*TransactionBlock, error) {
	result, err := c.Call(ctx, "sui_getTransactionBlock", digest, map[string]bool{"showEffects": true})
	if err != nil {
		return nil, err
	}

	var tx TransactionBlock
	if err := json.Unmarshal(result, &tx); err != nil {
		return nil, fmt.Errorf("unmarshal transaction %s: %w", digest, err)
	}
	return &tx, nil
}

// WaitForTransaction polls until the transaction is indexed or ctx is done.
// A transaction the node does not know yet is treated as transient.
func (c *Client) WaitForTransaction(ctx context.Context, digest string, pollInterval time.Duration) (*TransactionBlock, error) {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTxWaitTimeout)
		defer cancel()
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		tx, err := c.GetTransactionBlock(ctx, digest)
		if err == nil {
			return tx, nil
		}
		if !IsNotFound(err) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// IsNotFound reports whether err is the node saying the requested item does
// not exist (yet).
func IsNotFound(err error) bool {
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		return false
	}
	msg := strings.ToLower(rpcErr.Message)
	return strings.Contains(msg, "not found") ||
		strings.Contains(msg, "could not find") ||
		strings.Contains(msg, "notexists")
}
