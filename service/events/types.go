package events

import (
	"time"
)

// BatchEvent is published after each close-account batch completes,
// success or failure, to the subject "reclaim.{wallet_address}".
type BatchEvent struct {
	WalletAddress string `json:"wallet_address"`

	BatchIndex int      `json:"batch_index"`
	Accounts   []string `json:"accounts"`
	Signature  string   `json:"signature,omitempty"`
	Error      string   `json:"error,omitempty"`

	AccountsClosed    int    `json:"accounts_closed"`
	RecoveredLamports uint64 `json:"recovered_lamports"`

	PublishedAt time.Time `json:"published_at"`
}

// RunEvent summarizes a completed reclamation run. Published once per run to
// the same per-wallet subject as its batch events.
type RunEvent struct {
	WalletAddress string `json:"wallet_address"`

	TotalScanned      int    `json:"total_scanned"`
	TotalCloseable    int    `json:"total_closeable"`
	TotalClosed       int    `json:"total_closed"`
	RecoveredLamports uint64 `json:"recovered_lamports"`
	FailedBatches     int    `json:"failed_batches"`
	DryRun            bool   `json:"dry_run"`
	Aborted           bool   `json:"aborted"`

	Started     time.Time `json:"started"`
	Finished    time.Time `json:"finished"`
	PublishedAt time.Time `json:"published_at"`
}
