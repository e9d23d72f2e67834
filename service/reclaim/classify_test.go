package reclaim

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	solsvc "github.com/solsweep/solsweep/service/solana"
)

const testRentLamports = uint64(2_039_280)

// testRecord builds a record with a fresh random address.
func testRecord(t *testing.T, balance uint64) solsvc.TokenAccountRecord {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return solsvc.TokenAccountRecord{
		Address:   key.PublicKey(),
		Mint:      solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"),
		Balance:   balance,
		Lamports:  testRentLamports,
		Closeable: balance == 0,
	}
}

func testRecords(t *testing.T, balances ...uint64) []solsvc.TokenAccountRecord {
	t.Helper()
	records := make([]solsvc.TokenAccountRecord, 0, len(balances))
	for _, b := range balances {
		records = append(records, testRecord(t, b))
	}
	return records
}

func TestClassify_Partition(t *testing.T) {
	records := testRecords(t, 0, 100, 0, 0, 7)

	c := Classify(records, testRentLamports)

	assert.Len(t, c.Closeable, 3)
	assert.Len(t, c.Funded, 2)
	assert.Equal(t, len(records), c.TotalScanned())

	for _, r := range c.Closeable {
		assert.Zero(t, r.Balance)
	}
	for _, r := range c.Funded {
		assert.NotZero(t, r.Balance)
	}
}

func TestClassify_PreservesScanOrder(t *testing.T) {
	records := testRecords(t, 0, 5, 0, 0)

	c := Classify(records, testRentLamports)

	require.Len(t, c.Closeable, 3)
	assert.Equal(t, records[0].Address, c.Closeable[0].Address)
	assert.Equal(t, records[2].Address, c.Closeable[1].Address)
	assert.Equal(t, records[3].Address, c.Closeable[2].Address)
}

func TestClassify_DepositEstimate(t *testing.T) {
	records := testRecords(t, 0, 0, 0, 1)

	c := Classify(records, testRentLamports)

	assert.Equal(t, 3*testRentLamports, c.EstimatedDepositLamports)
	assert.InDelta(t, float64(3*testRentLamports)/1e9, c.EstimatedDepositSOL(), 1e-12)
}

func TestClassify_Empty(t *testing.T) {
	c := Classify(nil, testRentLamports)

	assert.Empty(t, c.Closeable)
	assert.Empty(t, c.Funded)
	assert.Zero(t, c.EstimatedDepositLamports)
	assert.Zero(t, c.TotalScanned())
}

func TestClassify_AllFunded(t *testing.T) {
	records := testRecords(t, 1, 2, 3)

	c := Classify(records, testRentLamports)

	assert.Empty(t, c.Closeable)
	assert.Len(t, c.Funded, 3)
	assert.Zero(t, c.EstimatedDepositLamports)
}
