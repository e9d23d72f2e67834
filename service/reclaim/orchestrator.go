package reclaim

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/solsweep/solsweep/service/events"
)

// RunParams describes one reclamation run.
type RunParams struct {
	// Wallet is the account whose token accounts are scanned and closed.
	Wallet solana.PublicKey

	// Signer authorizes the close instructions. Its public key must equal
	// Wallet; the run aborts with ErrIdentityMismatch otherwise. Nil is
	// allowed only for dry runs.
	Signer solana.PrivateKey

	// Mint optionally restricts the run to accounts of one asset type.
	Mint *solana.PublicKey

	// DryRun stops after classification and reports projected numbers
	// without any network write.
	DryRun bool

	// Confirm is the operator gate, called with the classification before
	// the first batch is submitted. Returning false aborts the run. A nil
	// Confirm skips the gate (the --yes path).
	Confirm func(Classification) bool
}

// RunReport is the terminal artifact of a run. Every field is written only
// after its corresponding batch completes, so the report always reflects
// what actually happened on-chain, not what was attempted.
type RunReport struct {
	Wallet string `json:"wallet"`

	TotalScanned   int `json:"total_scanned"`
	TotalCloseable int `json:"total_closeable"`
	TotalClosed    int `json:"total_closed"`

	RecoveredLamports        uint64 `json:"recovered_lamports"`
	EstimatedDepositLamports uint64 `json:"estimated_deposit_lamports"`

	DryRun  bool `json:"dry_run"`
	Aborted bool `json:"aborted"`

	Outcomes []BatchOutcome `json:"batches"`

	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
}

// RecoveredSOL converts the recovered lamport total for display.
func (r *RunReport) RecoveredSOL() float64 {
	return float64(r.RecoveredLamports) / float64(solana.LAMPORTS_PER_SOL)
}

// FailedBatches counts outcomes that did not confirm.
func (r *RunReport) FailedBatches() int {
	failed := 0
	for _, o := range r.Outcomes {
		if !o.Succeeded() {
			failed++
		}
	}
	return failed
}

// Orchestrator sequences scan, classify, plan and submit, accumulating the
// run report. Batches are submitted strictly sequentially: concurrent
// submission from one signing identity gains little at this batch size and
// risks account-level ordering conflicts.
type Orchestrator struct {
	chain              ChainClient
	rentExemptLamports uint64
	batchSize          int
	newSubmitter       func(signer solana.PrivateKey) *Submitter
	publisher          events.Publisher // may be nil
	logger             *slog.Logger
}

// OrchestratorOptions carries the injected configuration for an Orchestrator.
// The RPC endpoint and all tunables arrive here; nothing is compiled in.
type OrchestratorOptions struct {
	Chain              ChainClient
	RentExemptLamports uint64
	BatchSize          int
	NewSubmitter       func(signer solana.PrivateKey) *Submitter
	Publisher          events.Publisher
	Logger             *slog.Logger
}

// NewOrchestrator creates an Orchestrator from explicit options.
func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	return &Orchestrator{
		chain:              opts.Chain,
		rentExemptLamports: opts.RentExemptLamports,
		batchSize:          opts.BatchSize,
		newSubmitter:       opts.NewSubmitter,
		publisher:          opts.Publisher,
		logger:             opts.Logger,
	}
}

// Run executes one reclamation pass:
//
//	identity check -> scan -> classify -> (dry-run stop | confirmation gate)
//	-> plan -> sequential submit loop -> report
//
// Scan-phase and identity-phase errors are fatal and returned immediately.
// Batch-phase errors never abort the loop; they are captured in the report,
// which is the only place they surface. Re-running after a partial failure
// is safe: accounts already closed will not reappear in the next scan.
func (o *Orchestrator) Run(ctx context.Context, params RunParams) (*RunReport, error) {
	report := &RunReport{
		Wallet:  params.Wallet.String(),
		DryRun:  params.DryRun,
		Started: time.Now().UTC(),
	}

	// Identity check comes first: it is cheap, and nothing may be written
	// on behalf of a wallet the signer cannot speak for.
	if !params.DryRun {
		if params.Signer == nil {
			return nil, fmt.Errorf("%w: no signing key provided", ErrIdentityMismatch)
		}
		if !params.Signer.PublicKey().Equals(params.Wallet) {
			return nil, fmt.Errorf("%w: key is for %s, target is %s",
				ErrIdentityMismatch, params.Signer.PublicKey(), params.Wallet)
		}
	}

	records, err := o.chain.ScanTokenAccounts(ctx, params.Wallet, params.Mint)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanFailed, err)
	}

	classification := Classify(records, o.rentExemptLamports)
	report.TotalScanned = classification.TotalScanned()
	report.TotalCloseable = len(classification.Closeable)
	report.EstimatedDepositLamports = classification.EstimatedDepositLamports

	o.logger.InfoContext(ctx, "classified token accounts",
		"wallet", report.Wallet,
		"scanned", report.TotalScanned,
		"closeable", report.TotalCloseable,
		"estimated_lamports", report.EstimatedDepositLamports,
	)

	if params.DryRun {
		report.Finished = time.Now().UTC()
		o.publishRun(ctx, report)
		return report, nil
	}

	if len(classification.Closeable) == 0 {
		report.Finished = time.Now().UTC()
		o.publishRun(ctx, report)
		return report, nil
	}

	// Operator gate: the last cancellation point. Once a batch is
	// broadcast it cannot be recalled.
	if params.Confirm != nil && !params.Confirm(classification) {
		report.Aborted = true
		report.Finished = time.Now().UTC()
		o.logger.InfoContext(ctx, "run aborted at confirmation gate", "wallet", report.Wallet)
		o.publishRun(ctx, report)
		return report, nil
	}

	batches := PlanBatches(classification.Closeable, o.batchSize)
	submitter := o.newSubmitter(params.Signer)

	for i, batch := range batches {
		outcome := submitter.SubmitBatch(ctx, i, batch)

		// The report accumulator is only touched between batches.
		report.Outcomes = append(report.Outcomes, outcome)
		if outcome.Succeeded() {
			report.TotalClosed += outcome.AccountsClosed
			report.RecoveredLamports += outcome.RecoveredLamports
		}

		o.publishBatch(ctx, report.Wallet, outcome)

		if ctx.Err() != nil {
			// Context cancelled; remaining batches are left for a rerun.
			break
		}
	}

	report.Finished = time.Now().UTC()
	o.publishRun(ctx, report)
	return report, nil
}

func (o *Orchestrator) publishBatch(ctx context.Context, wallet string, outcome BatchOutcome) {
	if o.publisher == nil {
		return
	}
	event := &events.BatchEvent{
		WalletAddress:     wallet,
		BatchIndex:        outcome.Index,
		Accounts:          outcome.Addresses,
		AccountsClosed:    outcome.AccountsClosed,
		RecoveredLamports: outcome.RecoveredLamports,
		PublishedAt:       time.Now().UTC(),
	}
	if outcome.Succeeded() {
		event.Signature = outcome.Signature.String()
	} else {
		event.Error = outcome.Err.Error()
	}
	if err := o.publisher.PublishBatch(ctx, event); err != nil {
		// Event delivery is best-effort; the report is the source of truth.
		o.logger.WarnContext(ctx, "failed to publish batch event",
			"wallet", wallet,
			"batch", outcome.Index,
			"error", err,
		)
	}
}

func (o *Orchestrator) publishRun(ctx context.Context, report *RunReport) {
	if o.publisher == nil {
		return
	}
	event := &events.RunEvent{
		WalletAddress:     report.Wallet,
		TotalScanned:      report.TotalScanned,
		TotalCloseable:    report.TotalCloseable,
		TotalClosed:       report.TotalClosed,
		RecoveredLamports: report.RecoveredLamports,
		FailedBatches:     report.FailedBatches(),
		DryRun:            report.DryRun,
		Aborted:           report.Aborted,
		Started:           report.Started,
		Finished:          report.Finished,
		PublishedAt:       time.Now().UTC(),
	}
	if err := o.publisher.PublishRun(ctx, event); err != nil {
		o.logger.WarnContext(ctx, "failed to publish run event",
			"wallet", report.Wallet,
			"error", err,
		)
	}
}
