package ledger

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/algod"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"go.uber.org/zap"
)

type Config struct {
	Address string
	Token   string
	Timeout time.Duration
}

// Client implements Node over the algod REST API.
type Client struct {
	algod   *algod.Client
	timeout time.Duration
	logger  *zap.Logger
}

var _ Node = (*Client)(nil)

// NewClient builds an algod client. It does not contact the node.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	c, err := algod.MakeClient(cfg.Address, cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create algod client for %s: %w", cfg.Address, err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		algod:   c,
		timeout: timeout,
		logger:  logger.Named("algod"),
	}, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// Ping returns the node's last round.
func (c *Client) Ping(ctx context.Context) (uint64, error) {
	round, err := c.Status(ctx)
	if err != nil {
		return 0, err
	}
	c.logger.Debug("algod reachable", zap.Uint64("last_round", round))
	return round, nil
}

func (c *Client) Compile(ctx context.Context, source string) (CompileResult, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.algod.TealCompile([]byte(source)).Do(ctx)
	if err != nil {
		return CompileResult{}, classify("teal compile", err)
	}
	bytecode, err := base64.StdEncoding.DecodeString(resp.Result)
	if err != nil {
		return CompileResult{}, fmt.Errorf("teal compile: %w: malformed program bytes: %w", ErrUnavailable, err)
	}
	return CompileResult{Hash: resp.Hash, Bytecode: bytecode}, nil
}

func (c *Client) SuggestedParams(ctx context.Context) (types.SuggestedParams, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	sp, err := c.algod.SuggestedParams().Do(ctx)
	if err != nil {
		return types.SuggestedParams{}, classify("suggested params", err)
	}
	return sp, nil
}

func (c *Client) SendRawTransaction(ctx context.Context, signedTxn []byte) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	txID, err := c.algod.SendRawTransaction(signedTxn).Do(ctx)
	if err != nil {
		return "", classify("send transaction", err)
	}
	return txID, nil
}

func (c *Client) PendingTransaction(ctx context.Context, txID string) (PendingInfo, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	info, _, err := c.algod.PendingTransactionInformation(txID).Do(ctx)
	if err != nil {
		return PendingInfo{}, classify("pending transaction", err)
	}
	return PendingInfo{
		ConfirmedRound:   info.ConfirmedRound,
		PoolError:        info.PoolError,
		ApplicationIndex: info.ApplicationIndex,
	}, nil
}

func (c *Client) Status(ctx context.Context) (uint64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	status, err := c.algod.Status().Do(ctx)
	if err != nil {
		return 0, classify("status", err)
	}
	return status.LastRound, nil
}

func (c *Client) StatusAfterBlock(ctx context.Context, round uint64) (uint64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	status, err := c.algod.StatusAfterBlock(round).Do(ctx)
	if err != nil {
		return 0, classify("status after block", err)
	}
	return status.LastRound, nil
}

func (c *Client) AccountBalance(ctx context.Context, address string) (uint64, error) {
	if _, err := types.DecodeAddress(address); err != nil {
		return 0, fmt.Errorf("account balance: invalid address %q: %w", address, err)
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	acct, err := c.algod.AccountInformation(address).Do(ctx)
	if err != nil {
		return 0, classify("account information", err)
	}
	return acct.Amount, nil
}
