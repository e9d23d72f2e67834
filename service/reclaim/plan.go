package reclaim

import (
	solsvc "github.com/solsweep/solsweep/service/solana"
)

// PlanBatches slices the closeable records into groups of at most batchSize,
// preserving scan order. Order is not semantically important but must be
// deterministic so runs are reproducible and testable. Empty input yields an
// empty plan, not an error.
func PlanBatches(records []solsvc.TokenAccountRecord, batchSize int) [][]solsvc.TokenAccountRecord {
	if batchSize < 1 {
		batchSize = 1
	}

	batches := make([][]solsvc.TokenAccountRecord, 0, (len(records)+batchSize-1)/batchSize)
	for start := 0; start < len(records); start += batchSize {
		end := min(start+batchSize, len(records))
		batches = append(batches, records[start:end])
	}
	return batches
}
