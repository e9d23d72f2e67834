package solana

import (
	"github.com/gagliardetto/solana-go"
)

// TokenAccountRecord is our domain model for one scanned SPL token account,
// independent of the RPC response format. Records are immutable after the
// scan that produced them; a fresh scan always rebuilds the whole set.
type TokenAccountRecord struct {
	// Address is the token account itself (not the owning wallet).
	Address solana.PublicKey `json:"address"`

	// Mint identifies the asset type the account holds.
	Mint solana.PublicKey `json:"mint"`

	// Balance is the raw token amount, in the mint's base units.
	Balance uint64 `json:"balance"`

	// Lamports is the SOL balance carried by the account, i.e. the rent
	// deposit that closing it would return.
	Lamports uint64 `json:"lamports"`

	// Closeable is true when the token balance is zero.
	Closeable bool `json:"closeable"`
}

// TokenAccountDataSize is the serialized size of an SPL token account.
// Used when asking the network for the current rent-exemption minimum.
const TokenAccountDataSize = 165
