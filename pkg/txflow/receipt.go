// Package txflow sequences wallet transactions and interprets their outcome.
//
// Steps of a multi-transaction flow run strictly one after another, each one
// waiting for its receipt, which is polled at a fixed interval because the
// chain RPC is pull-based.
package txflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// DefaultPollInterval is the receipt polling interval.
const DefaultPollInterval = 3 * time.Second

// ErrReverted is returned for a mined transaction with a failed status.
var ErrReverted = errors.New("txflow: transaction reverted")

// ReceiptFetcher looks up receipts. *ethclient.Client satisfies it.
type ReceiptFetcher interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// maxLookupErrors is the number of consecutive lookup failures, other than
// "not found", tolerated before giving up.
const maxLookupErrors = 3

// WaitForReceipt polls until hash is mined, ctx ends, or lookups keep
// failing. A mined but failed transaction returns its receipt together with
// ErrReverted.
func WaitForReceipt(ctx context.Context, fetcher ReceiptFetcher, hash common.Hash, interval time.Duration) (*types.Receipt, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	failures := 0
	for {
		receipt, err := fetcher.TransactionReceipt(ctx, hash)
		switch {
		case err == nil && receipt != nil:
			if receipt.Status == types.ReceiptStatusFailed {
				return receipt, fmt.Errorf("%w: %s", ErrReverted, hash.Hex())
			}
			return receipt, nil
		case err == nil, errors.Is(err, ethereum.NotFound):
			failures = 0
		default:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failures++
			if failures >= maxLookupErrors {
				return nil, fmt.Errorf("txflow: receipt lookup for %s: %w", hash.Hex(), err)
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
