package reclaim

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solsweep/solsweep/service/events"
)

func newTestOrchestrator(chain *mockChain, batchSize int, publisher events.Publisher) *Orchestrator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewOrchestrator(OrchestratorOptions{
		Chain:              chain,
		RentExemptLamports: testRentLamports,
		BatchSize:          batchSize,
		NewSubmitter: func(signer solana.PrivateKey) *Submitter {
			return NewSubmitter(chain, signer, testRentLamports, testConfirmParams(), nil, logger)
		},
		Publisher: publisher,
		Logger:    logger,
	})
}

func runParams(t *testing.T, signer solana.PrivateKey) RunParams {
	t.Helper()
	return RunParams{
		Wallet: signer.PublicKey(),
		Signer: signer,
	}
}

func TestRun_FullSuccess(t *testing.T) {
	ctx := context.Background()
	signer := testSigner(t)

	chain := &mockChain{scanRecords: testRecords(t, 0, 0, 0, 100, 0, 50)}
	o := newTestOrchestrator(chain, 2, nil)

	report, err := o.Run(ctx, runParams(t, signer))
	require.NoError(t, err)

	assert.Equal(t, 6, report.TotalScanned)
	assert.Equal(t, 4, report.TotalCloseable)
	assert.Equal(t, 4, report.TotalClosed)
	assert.Equal(t, 4*testRentLamports, report.RecoveredLamports)
	assert.Equal(t, 4*testRentLamports, report.EstimatedDepositLamports)
	assert.False(t, report.Aborted)
	assert.Zero(t, report.FailedBatches())
	require.Len(t, report.Outcomes, 2) // 4 closeable / batch size 2
	assert.False(t, report.Finished.Before(report.Started))
}

func TestRun_PartialFailure(t *testing.T) {
	ctx := context.Background()
	signer := testSigner(t)

	// 5 closeable accounts, batch size 2 -> 3 batches of 2, 2, 1.
	// The second batch's send fails; batches 1 and 3 must still land.
	chain := &mockChain{
		scanRecords: testRecords(t, 0, 0, 0, 0, 0),
		failSends:   map[int]error{2: errors.New("node unhealthy")},
	}
	o := newTestOrchestrator(chain, 2, nil)

	report, err := o.Run(ctx, runParams(t, signer))
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 3)
	assert.True(t, report.Outcomes[0].Succeeded())
	assert.False(t, report.Outcomes[1].Succeeded())
	assert.True(t, report.Outcomes[2].Succeeded(), "later batches must still be attempted")

	assert.Equal(t, 3, report.TotalClosed) // 2 from batch 1, 1 from batch 3
	assert.Equal(t, 3*testRentLamports, report.RecoveredLamports)
	assert.Equal(t, 1, report.FailedBatches())
	assert.Equal(t, 3, chain.sendCalls)
}

func TestRun_DryRunPerformsNoWrites(t *testing.T) {
	ctx := context.Background()
	signer := testSigner(t)

	chain := &mockChain{scanRecords: testRecords(t, 0, 0, 0)}
	o := newTestOrchestrator(chain, 10, nil)

	params := runParams(t, signer)
	params.DryRun = true
	params.Signer = nil // dry runs need no key

	report, err := o.Run(ctx, params)
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, 3, report.TotalCloseable)
	assert.Equal(t, 3*testRentLamports, report.EstimatedDepositLamports)
	assert.Zero(t, report.TotalClosed)
	assert.Zero(t, report.RecoveredLamports)
	assert.Empty(t, report.Outcomes)
	assert.Zero(t, chain.sendCalls, "dry run must not submit anything")
}

func TestRun_DryRunParamsNeedNoWallet(t *testing.T) {
	ctx := context.Background()

	chain := &mockChain{scanRecords: testRecords(t, 0)}
	o := newTestOrchestrator(chain, 10, nil)

	other, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	report, err := o.Run(ctx, RunParams{
		Wallet: other.PublicKey(),
		DryRun: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalCloseable)
}

func TestRun_IdentityMismatch(t *testing.T) {
	ctx := context.Background()
	signer := testSigner(t)
	other := testSigner(t)

	chain := &mockChain{scanRecords: testRecords(t, 0, 0)}
	o := newTestOrchestrator(chain, 10, nil)

	gateCalled := false
	report, err := o.Run(ctx, RunParams{
		Wallet: other.PublicKey(), // not the signer's wallet
		Signer: signer,
		Confirm: func(Classification) bool {
			gateCalled = true
			return true
		},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIdentityMismatch)
	assert.Nil(t, report)
	assert.False(t, gateCalled, "mismatch must surface before the gate")
	assert.Zero(t, chain.scanCalls)
	assert.Zero(t, chain.sendCalls)
}

func TestRun_MissingSigner(t *testing.T) {
	ctx := context.Background()
	signer := testSigner(t)

	chain := &mockChain{}
	o := newTestOrchestrator(chain, 10, nil)

	_, err := o.Run(ctx, RunParams{Wallet: signer.PublicKey()})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIdentityMismatch)
}

func TestRun_ScanFailureIsFatal(t *testing.T) {
	ctx := context.Background()
	signer := testSigner(t)

	chain := &mockChain{scanErr: errors.New("429 Too Many Requests")}
	o := newTestOrchestrator(chain, 10, nil)

	report, err := o.Run(ctx, runParams(t, signer))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrScanFailed)
	assert.Nil(t, report)
	assert.Zero(t, chain.sendCalls)
}

func TestRun_GateDeclineAborts(t *testing.T) {
	ctx := context.Background()
	signer := testSigner(t)

	chain := &mockChain{scanRecords: testRecords(t, 0, 0, 0)}
	o := newTestOrchestrator(chain, 10, nil)

	params := runParams(t, signer)
	params.Confirm = func(c Classification) bool {
		assert.Len(t, c.Closeable, 3)
		return false
	}

	report, err := o.Run(ctx, params)
	require.NoError(t, err)

	assert.True(t, report.Aborted)
	assert.Zero(t, report.TotalClosed)
	assert.Empty(t, report.Outcomes)
	assert.Zero(t, chain.sendCalls, "no batch may be submitted after a declined gate")
}

func TestRun_NothingCloseable(t *testing.T) {
	ctx := context.Background()
	signer := testSigner(t)

	chain := &mockChain{scanRecords: testRecords(t, 10, 20)}
	o := newTestOrchestrator(chain, 10, nil)

	gateCalled := false
	params := runParams(t, signer)
	params.Confirm = func(Classification) bool {
		gateCalled = true
		return true
	}

	report, err := o.Run(ctx, params)
	require.NoError(t, err)

	assert.Zero(t, report.TotalCloseable)
	assert.Zero(t, report.TotalClosed)
	assert.False(t, gateCalled, "nothing to confirm when nothing is closeable")
	assert.Zero(t, chain.sendCalls)
}

func TestRun_PublishesEvents(t *testing.T) {
	ctx := context.Background()
	signer := testSigner(t)

	publisher := events.NewMockPublisher()
	chain := &mockChain{
		scanRecords: testRecords(t, 0, 0, 0),
		failSends:   map[int]error{2: errors.New("node unhealthy")},
	}
	o := newTestOrchestrator(chain, 1, publisher)

	report, err := o.Run(ctx, runParams(t, signer))
	require.NoError(t, err)

	batchEvents := publisher.BatchEvents()
	require.Len(t, batchEvents, 3)
	assert.NotEmpty(t, batchEvents[0].Signature)
	assert.NotEmpty(t, batchEvents[1].Error)
	assert.NotEmpty(t, batchEvents[2].Signature)

	runEvents := publisher.RunEvents()
	require.Len(t, runEvents, 1)
	assert.Equal(t, report.TotalClosed, runEvents[0].TotalClosed)
	assert.Equal(t, 1, runEvents[0].FailedBatches)
}

// Running the engine twice with no external funding in between: the second
// scan no longer returns the closed accounts, so the second run has nothing
// to close.
func TestRun_IdempotentAcrossRuns(t *testing.T) {
	ctx := context.Background()
	signer := testSigner(t)

	records := testRecords(t, 0, 0, 100)
	chain := &mockChain{scanRecords: records}
	o := newTestOrchestrator(chain, 10, nil)

	first, err := o.Run(ctx, runParams(t, signer))
	require.NoError(t, err)
	require.Equal(t, 2, first.TotalClosed)

	// The closed accounts are gone from the next scan.
	chain.mu.Lock()
	chain.scanRecords = records[2:]
	chain.mu.Unlock()

	second, err := o.Run(ctx, runParams(t, signer))
	require.NoError(t, err)
	assert.Zero(t, second.TotalCloseable)
	assert.Zero(t, second.TotalClosed)
	assert.Empty(t, second.Outcomes)
}
