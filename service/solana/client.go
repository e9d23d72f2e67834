package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/solsweep/solsweep/service/metrics"
)

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	GetTokenAccountsByOwner(
		ctx context.Context,
		owner solana.PublicKey,
		conf *rpc.GetTokenAccountsConfig,
		opts *rpc.GetTokenAccountsOpts,
	) (*rpc.GetTokenAccountsResult, error)

	GetLatestBlockhash(
		ctx context.Context,
		commitment rpc.CommitmentType,
	) (*rpc.GetLatestBlockhashResult, error)

	SendTransactionWithOpts(
		ctx context.Context,
		tx *solana.Transaction,
		opts rpc.TransactionOpts,
	) (solana.Signature, error)

	GetSignatureStatuses(
		ctx context.Context,
		searchTransactionHistory bool,
		signatures ...solana.Signature,
	) (*rpc.GetSignatureStatusesResult, error)

	GetMinimumBalanceForRentExemption(
		ctx context.Context,
		dataSize uint64,
		commitment rpc.CommitmentType,
	) (uint64, error)
}

// Client wraps the RPC client with domain-specific operations: scanning a
// wallet's token accounts and submitting/confirming transactions.
type Client struct {
	rpcClient  RPCClient
	logger     *slog.Logger
	metrics    *metrics.Metrics
	endpoint   string // RPC endpoint identifier for metrics (e.g. rpc host)
	commitment rpc.CommitmentType
}

// NewClient creates a new Solana client.
// The endpoint parameter is used for metrics labeling (e.g. "mainnet",
// "devnet", or RPC hostname). If m is nil, no metrics will be recorded.
func NewClient(rpcClient RPCClient, endpoint string, commitment rpc.CommitmentType, m *metrics.Metrics, logger *slog.Logger) *Client {
	return &Client{
		rpcClient:  rpcClient,
		logger:     logger,
		metrics:    m,
		endpoint:   endpoint,
		commitment: commitment,
	}
}

// ScanTokenAccounts queries every SPL token account owned by the wallet and
// returns one record per account, in the order the RPC returned them.
// If mint is non-nil the scan is restricted to accounts of that mint.
//
// Scan errors propagate unchanged: a failed scan has no partial state worth
// preserving, so retry policy lives with the submission layer instead.
func (c *Client) ScanTokenAccounts(ctx context.Context, owner solana.PublicKey, mint *solana.PublicKey) ([]TokenAccountRecord, error) {
	conf := &rpc.GetTokenAccountsConfig{}
	if mint != nil {
		conf.Mint = mint
	} else {
		programID := solana.TokenProgramID
		conf.ProgramId = &programID
	}

	opts := &rpc.GetTokenAccountsOpts{
		Commitment: c.commitment,
		Encoding:   solana.EncodingBase64,
	}

	c.logger.DebugContext(ctx, "calling GetTokenAccountsByOwner",
		"wallet", owner.String(),
		"mint", mint,
	)

	start := time.Now()
	result, err := c.rpcClient.GetTokenAccountsByOwner(ctx, owner, conf, opts)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
		c.logger.ErrorContext(ctx, "failed to get token accounts",
			"wallet", owner.String(),
			"error", err,
		)
	}
	c.metrics.RecordRPCCall("GetTokenAccountsByOwner", status, c.endpoint, duration)

	if err != nil {
		return nil, err
	}

	records := make([]TokenAccountRecord, 0, len(result.Value))
	closeable := 0
	for _, keyed := range result.Value {
		if keyed.Account.Data == nil {
			return nil, fmt.Errorf("token account %s: missing account data", keyed.Pubkey)
		}

		var acct token.Account
		if err := bin.NewBinDecoder(keyed.Account.Data.GetBinary()).Decode(&acct); err != nil {
			return nil, fmt.Errorf("decode token account %s: %w", keyed.Pubkey, err)
		}

		record := TokenAccountRecord{
			Address:   keyed.Pubkey,
			Mint:      acct.Mint,
			Balance:   acct.Amount,
			Lamports:  keyed.Account.Lamports,
			Closeable: acct.Amount == 0,
		}
		if record.Closeable {
			closeable++
		}
		records = append(records, record)
	}

	c.metrics.RecordScan(owner.String(), len(records), closeable)
	c.logger.InfoContext(ctx, "scanned token accounts",
		"wallet", owner.String(),
		"total", len(records),
		"closeable", closeable,
	)

	return records, nil
}

// sendRetryAttempts bounds how often a rate-limited send is retried before
// the batch is marked failed. Public RPC: keep small to avoid long stalls.
const sendRetryAttempts = 3

// SendTransaction submits a signed transaction, retrying on rate limiting
// (429) with exponential backoff. Any other error fails immediately: a
// broadcast transaction cannot be recalled, so blind re-sends are unsafe.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	opts := rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: c.commitment,
	}

	var lastErr error
	for attempt := 0; attempt < sendRetryAttempts; attempt++ {
		start := time.Now()
		sig, err := c.rpcClient.SendTransactionWithOpts(ctx, tx, opts)
		duration := time.Since(start).Seconds()

		status := "success"
		if err != nil {
			status = "error"
		}
		c.metrics.RecordRPCCall("SendTransaction", status, c.endpoint, duration)

		if err == nil {
			return sig, nil
		}
		lastErr = err

		if !strings.Contains(err.Error(), "429") {
			return solana.Signature{}, err
		}

		backoff := time.Duration(2<<uint(attempt)) * time.Second // 2s, 4s, 8s
		c.logger.WarnContext(ctx, "rate limited sending transaction, backing off",
			"attempt", attempt+1,
			"backoff_seconds", backoff.Seconds(),
		)
		c.metrics.RecordRateLimitHit(c.endpoint)
		c.metrics.RecordRPCRetry("SendTransaction", "rate_limit")

		select {
		case <-ctx.Done():
			return solana.Signature{}, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return solana.Signature{}, fmt.Errorf("send transaction: retries exhausted: %w", lastErr)
}

// LatestBlockhash fetches a recent blockhash for transaction building.
func (c *Client) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	start := time.Now()
	result, err := c.rpcClient.GetLatestBlockhash(ctx, c.commitment)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordRPCCall("GetLatestBlockhash", status, c.endpoint, duration)

	if err != nil {
		return solana.Hash{}, err
	}
	return result.Value.Blockhash, nil
}

// ErrConfirmationTimeout is returned when a transaction does not reach the
// requested commitment within the confirmation window. The transaction may
// still land afterwards; a fresh scan is the only way to know.
var ErrConfirmationTimeout = errors.New("confirmation timed out")

// ConfirmationParams controls how WaitForConfirmation polls.
type ConfirmationParams struct {
	Timeout      time.Duration
	PollInterval time.Duration
}

// WaitForConfirmation polls signature status until the transaction reaches
// the client's commitment level, the transaction fails on-chain, or the
// timeout elapses. Returns an error on timeout or on-chain failure.
//
// Polling GetSignatureStatuses rather than holding a websocket subscription
// keeps the client usable against HTTP-only endpoints.
func (c *Client) WaitForConfirmation(ctx context.Context, sig solana.Signature, params ConfirmationParams) error {
	waitCtx, cancel := context.WithTimeout(ctx, params.Timeout)
	defer cancel()

	ticker := time.NewTicker(params.PollInterval)
	defer ticker.Stop()

	waitStart := time.Now()
	defer func() {
		c.metrics.RecordConfirmationWait(c.endpoint, time.Since(waitStart).Seconds())
	}()

	for {
		select {
		case <-waitCtx.Done():
			if waitCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
				return fmt.Errorf("%w after %v", ErrConfirmationTimeout, params.Timeout)
			}
			return waitCtx.Err()
		case <-ticker.C:
		}

		start := time.Now()
		result, err := c.rpcClient.GetSignatureStatuses(waitCtx, false, sig)
		duration := time.Since(start).Seconds()

		status := "success"
		if err != nil {
			status = "error"
		}
		c.metrics.RecordRPCCall("GetSignatureStatuses", status, c.endpoint, duration)

		if err != nil {
			// Transient status-poll errors are not fatal; the next tick retries.
			c.logger.WarnContext(ctx, "failed to poll signature status",
				"signature", sig.String(),
				"error", err,
			)
			continue
		}

		if len(result.Value) == 0 || result.Value[0] == nil {
			// Not yet observed by the node.
			continue
		}

		st := result.Value[0]
		if st.Err != nil {
			return fmt.Errorf("transaction %s failed on-chain: %v", sig, st.Err)
		}

		if confirmationReached(st.ConfirmationStatus, c.commitment) {
			c.logger.DebugContext(ctx, "transaction confirmed",
				"signature", sig.String(),
				"status", string(st.ConfirmationStatus),
			)
			return nil
		}
	}
}

// confirmationReached reports whether the observed status satisfies the
// requested commitment. Finalized satisfies confirmed, not vice versa.
func confirmationReached(observed rpc.ConfirmationStatusType, want rpc.CommitmentType) bool {
	switch want {
	case rpc.CommitmentConfirmed:
		return observed == rpc.ConfirmationStatusConfirmed || observed == rpc.ConfirmationStatusFinalized
	default:
		return observed == rpc.ConfirmationStatusFinalized
	}
}

// MinimumRentExemptBalance asks the network for the current rent-exemption
// minimum for a token-account-sized allocation. Used to sanity-check the
// configured deposit constant; the estimate built from the constant is
// advisory, this figure is authoritative.
func (c *Client) MinimumRentExemptBalance(ctx context.Context) (uint64, error) {
	start := time.Now()
	minimum, err := c.rpcClient.GetMinimumBalanceForRentExemption(ctx, TokenAccountDataSize, c.commitment)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordRPCCall("GetMinimumBalanceForRentExemption", status, c.endpoint, duration)

	return minimum, err
}
