package reclaim

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"

	"github.com/solsweep/solsweep/service/metrics"
	solsvc "github.com/solsweep/solsweep/service/solana"
)

// ChainClient is the slice of the Solana client the engine needs.
// Satisfied by *solana.Client; mocked in tests.
type ChainClient interface {
	ScanTokenAccounts(ctx context.Context, owner solana.PublicKey, mint *solana.PublicKey) ([]solsvc.TokenAccountRecord, error)
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	WaitForConfirmation(ctx context.Context, sig solana.Signature, params solsvc.ConfirmationParams) error
}

// BatchOutcome records what happened to one submitted batch. Signature is
// set only when the batch confirmed, Err only when it failed; failed batches
// contribute zero to the recovered totals.
type BatchOutcome struct {
	Index     int                         `json:"index"`
	Accounts  []solsvc.TokenAccountRecord `json:"-"`
	Addresses []string                    `json:"addresses"`
	Signature *solana.Signature           `json:"signature,omitempty"`
	Err       error                       `json:"-"`
	Error     string                      `json:"error,omitempty"`

	AccountsClosed    int    `json:"accounts_closed"`
	RecoveredLamports uint64 `json:"recovered_lamports"`
}

// Succeeded reports whether the batch was confirmed on-chain.
func (o BatchOutcome) Succeeded() bool {
	return o.Err == nil
}

// Submitter turns one batch of closeable accounts into a single transaction
// carrying one close instruction per account, submits it, and waits for
// confirmation. The signing identity is both close authority and rent
// destination.
type Submitter struct {
	chain              ChainClient
	signer             solana.PrivateKey
	wallet             solana.PublicKey
	rentExemptLamports uint64
	confirm            solsvc.ConfirmationParams
	logger             *slog.Logger
	metrics            *metrics.Metrics
}

// NewSubmitter creates a Submitter. The signer's public key is used as fee
// payer, close authority and rent destination for every batch.
func NewSubmitter(chain ChainClient, signer solana.PrivateKey, rentExemptLamports uint64, confirm solsvc.ConfirmationParams, m *metrics.Metrics, logger *slog.Logger) *Submitter {
	return &Submitter{
		chain:              chain,
		signer:             signer,
		wallet:             signer.PublicKey(),
		rentExemptLamports: rentExemptLamports,
		confirm:            confirm,
		logger:             logger,
		metrics:            m,
	}
}

// SubmitBatch builds, signs, submits and confirms one batch.
// Never returns an error: failures are captured in the outcome so the caller
// can keep iterating over remaining batches.
func (s *Submitter) SubmitBatch(ctx context.Context, index int, batch []solsvc.TokenAccountRecord) BatchOutcome {
	outcome := BatchOutcome{
		Index:     index,
		Accounts:  batch,
		Addresses: recordAddresses(batch),
	}

	start := time.Now()
	sig, err := s.submit(ctx, batch)
	duration := time.Since(start).Seconds()

	if err != nil {
		outcome.Err = err
		outcome.Error = err.Error()
		s.metrics.RecordBatchSubmitted(s.wallet.String(), "error", duration)
		s.logger.ErrorContext(ctx, "batch failed",
			"batch", index,
			"accounts", len(batch),
			"error", err,
		)
		return outcome
	}

	outcome.Signature = &sig
	outcome.AccountsClosed = len(batch)
	outcome.RecoveredLamports = uint64(len(batch)) * s.rentExemptLamports

	s.metrics.RecordBatchSubmitted(s.wallet.String(), "success", duration)
	s.metrics.RecordAccountsClosed(s.wallet.String(), outcome.AccountsClosed, outcome.RecoveredLamports)
	s.logger.InfoContext(ctx, "batch confirmed",
		"batch", index,
		"signature", sig.String(),
		"accounts_closed", outcome.AccountsClosed,
		"recovered_lamports", outcome.RecoveredLamports,
	)
	return outcome
}

func (s *Submitter) submit(ctx context.Context, batch []solsvc.TokenAccountRecord) (solana.Signature, error) {
	if len(batch) == 0 {
		return solana.Signature{}, fmt.Errorf("empty batch")
	}

	instructions := make([]solana.Instruction, 0, len(batch))
	for _, record := range batch {
		closeIx := token.NewCloseAccountInstruction(
			record.Address,
			s.wallet, // rent destination
			s.wallet, // close authority
			nil,
		).Build()
		instructions = append(instructions, closeIx)
	}

	blockhash, err := s.chain.LatestBlockhash(ctx)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("get latest blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		instructions,
		blockhash,
		solana.TransactionPayer(s.wallet),
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("build transaction: %w", err)
	}

	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if s.wallet.Equals(key) {
			return &s.signer
		}
		return nil
	}); err != nil {
		return solana.Signature{}, fmt.Errorf("sign transaction: %w", err)
	}

	sig, err := s.chain.SendTransaction(ctx, tx)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("submit transaction: %w", err)
	}

	// One confirmation wait per batch, not per instruction.
	if err := s.chain.WaitForConfirmation(ctx, sig, s.confirm); err != nil {
		return solana.Signature{}, fmt.Errorf("confirm transaction %s: %w", sig, err)
	}

	return sig, nil
}

func recordAddresses(records []solsvc.TokenAccountRecord) []string {
	addrs := make([]string, len(records))
	for i, r := range records {
		addrs[i] = r.Address.String()
	}
	return addrs
}
