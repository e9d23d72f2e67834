// Package history persists reclamation run reports to Postgres.
//
// The store is an audit log, not a resume file: the engine is fully
// re-derivable from chain state on every invocation, and nothing here is
// read back during a run.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solsweep/solsweep/service/reclaim"
)

// Store provides database operations for run history.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store with the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect opens a pgx pool against the given DSN and verifies the connection.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the history tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS reclaim_runs (
			id                 BIGSERIAL PRIMARY KEY,
			wallet             TEXT NOT NULL,
			total_scanned      INT NOT NULL,
			total_closeable    INT NOT NULL,
			total_closed       INT NOT NULL,
			recovered_lamports BIGINT NOT NULL,
			estimated_lamports BIGINT NOT NULL,
			dry_run            BOOLEAN NOT NULL,
			aborted            BOOLEAN NOT NULL,
			started_at         TIMESTAMPTZ NOT NULL,
			finished_at        TIMESTAMPTZ NOT NULL,
			created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS reclaim_batches (
			id                 BIGSERIAL PRIMARY KEY,
			run_id             BIGINT NOT NULL REFERENCES reclaim_runs(id) ON DELETE CASCADE,
			batch_index        INT NOT NULL,
			accounts           TEXT[] NOT NULL,
			signature          TEXT,
			error              TEXT,
			accounts_closed    INT NOT NULL,
			recovered_lamports BIGINT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS reclaim_runs_wallet_idx ON reclaim_runs (wallet, created_at DESC);
	`
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure history schema: %w", err)
	}
	return nil
}

// RunRecord is one persisted run summary.
type RunRecord struct {
	ID                int64     `json:"id"`
	Wallet            string    `json:"wallet"`
	TotalScanned      int       `json:"total_scanned"`
	TotalCloseable    int       `json:"total_closeable"`
	TotalClosed       int       `json:"total_closed"`
	RecoveredLamports uint64    `json:"recovered_lamports"`
	EstimatedLamports uint64    `json:"estimated_lamports"`
	DryRun            bool      `json:"dry_run"`
	Aborted           bool      `json:"aborted"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
	CreatedAt         time.Time `json:"created_at"`
}

// RecordRun persists a run report and its batch outcomes atomically.
// Returns the new run id.
func (s *Store) RecordRun(ctx context.Context, report *reclaim.RunReport) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin history transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertRun = `
		INSERT INTO reclaim_runs (
			wallet, total_scanned, total_closeable, total_closed,
			recovered_lamports, estimated_lamports, dry_run, aborted,
			started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	var runID int64
	err = tx.QueryRow(ctx, insertRun,
		report.Wallet,
		report.TotalScanned,
		report.TotalCloseable,
		report.TotalClosed,
		int64(report.RecoveredLamports),
		int64(report.EstimatedDepositLamports),
		report.DryRun,
		report.Aborted,
		report.Started,
		report.Finished,
	).Scan(&runID)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}

	const insertBatch = `
		INSERT INTO reclaim_batches (
			run_id, batch_index, accounts, signature, error,
			accounts_closed, recovered_lamports
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	for _, outcome := range report.Outcomes {
		var signature, errText *string
		if outcome.Succeeded() {
			sig := outcome.Signature.String()
			signature = &sig
		} else {
			msg := outcome.Err.Error()
			errText = &msg
		}

		_, err := tx.Exec(ctx, insertBatch,
			runID,
			outcome.Index,
			outcome.Addresses,
			signature,
			errText,
			outcome.AccountsClosed,
			int64(outcome.RecoveredLamports),
		)
		if err != nil {
			return 0, fmt.Errorf("insert batch %d: %w", outcome.Index, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit history transaction: %w", err)
	}
	return runID, nil
}

// ListRuns returns the most recent runs, newest first. A wallet filter of ""
// returns runs for all wallets.
func (s *Store) ListRuns(ctx context.Context, wallet string, limit int) ([]RunRecord, error) {
	const query = `
		SELECT id, wallet, total_scanned, total_closeable, total_closed,
		       recovered_lamports, estimated_lamports, dry_run, aborted,
		       started_at, finished_at, created_at
		FROM reclaim_runs
		WHERE ($1 = '' OR wallet = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, wallet, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

func scanRuns(rows pgx.Rows) ([]RunRecord, error) {
	var records []RunRecord
	for rows.Next() {
		var r RunRecord
		var recovered, estimated int64
		err := rows.Scan(
			&r.ID,
			&r.Wallet,
			&r.TotalScanned,
			&r.TotalCloseable,
			&r.TotalClosed,
			&recovered,
			&estimated,
			&r.DryRun,
			&r.Aborted,
			&r.StartedAt,
			&r.FinishedAt,
			&r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		r.RecoveredLamports = uint64(recovered)
		r.EstimatedLamports = uint64(estimated)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return records, nil
}
