package reclaim

import (
	"github.com/gagliardetto/solana-go"

	solsvc "github.com/solsweep/solsweep/service/solana"
)

// Classification partitions a scanned account set into closeable
// (zero balance) and funded accounts, with an advisory estimate of the rent
// deposit that closing would recover.
type Classification struct {
	Closeable []solsvc.TokenAccountRecord
	Funded    []solsvc.TokenAccountRecord

	// EstimatedDepositLamports is closeable count times the configured
	// rent-exempt deposit. Advisory only: the authoritative figure is what
	// the network actually returns as each account closes.
	EstimatedDepositLamports uint64
}

// TotalScanned returns the size of the input set.
func (c Classification) TotalScanned() int {
	return len(c.Closeable) + len(c.Funded)
}

// EstimatedDepositSOL converts the lamport estimate for display.
func (c Classification) EstimatedDepositSOL() float64 {
	return float64(c.EstimatedDepositLamports) / float64(solana.LAMPORTS_PER_SOL)
}

// Classify partitions records by balance, preserving scan order within each
// partition. Total over its input; never fails.
func Classify(records []solsvc.TokenAccountRecord, rentExemptLamports uint64) Classification {
	out := Classification{
		Closeable: make([]solsvc.TokenAccountRecord, 0, len(records)),
		Funded:    make([]solsvc.TokenAccountRecord, 0, len(records)),
	}
	for _, r := range records {
		if r.Closeable {
			out.Closeable = append(out.Closeable, r)
		} else {
			out.Funded = append(out.Funded, r)
		}
	}
	out.EstimatedDepositLamports = uint64(len(out.Closeable)) * rentExemptLamports
	return out
}
