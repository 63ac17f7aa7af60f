// Package ledger talks to an Algorand node.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/algorand/go-algorand-sdk/v2/types"
)

var (
	// ErrBadRequest means the node understood the request and refused it.
	ErrBadRequest = errors.New("node rejected the request")
	// ErrNotFound is returned for unknown transactions and accounts.
	ErrNotFound = errors.New("not found on node")
	// ErrUnavailable covers transport failures and server faults.
	ErrUnavailable = errors.New("node unavailable")
)

// CompileResult is the node's answer to a TEAL compile request.
type CompileResult struct {
	Hash     string `json:"hash"`
	Bytecode []byte `json:"bytecode"`
}

// PendingInfo is the subset of pending transaction state the deployer needs.
type PendingInfo struct {
	ConfirmedRound   uint64
	PoolError        string
	ApplicationIndex uint64
}

// Confirmed reports whether the transaction made it into a block.
func (p PendingInfo) Confirmed() bool {
	return p.ConfirmedRound > 0
}

// Node is the set of node endpoints the pipeline uses.
type Node interface {
	Compile(ctx context.Context, source string) (CompileResult, error)
	SuggestedParams(ctx context.Context) (types.SuggestedParams, error)
	SendRawTransaction(ctx context.Context, signedTxn []byte) (string, error)
	PendingTransaction(ctx context.Context, txID string) (PendingInfo, error)
	Status(ctx context.Context) (uint64, error)
	StatusAfterBlock(ctx context.Context, round uint64) (uint64, error)
	AccountBalance(ctx context.Context, address string) (uint64, error)
}

// classify maps SDK errors, which only carry the HTTP status in their text,
// onto the package sentinels.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "HTTP 400"):
		return fmt.Errorf("%s: %w: %w", op, ErrBadRequest, err)
	case strings.Contains(msg, "HTTP 404"):
		return fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
}
