package journal

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntry(wallet, hash string, at time.Time) *Entry {
	return &Entry{
		Time:     at,
		Wallet:   wallet,
		Venue:    "ambient",
		TokenIn:  "USDC",
		TokenOut: "TED",
		Amount:   big.NewInt(70_000_000),
		PerMille: 70,
		TxHash:   hash,
		Outcome:  "ok",
		GasUsed:  150_000,
		FeePaid:  big.NewInt(7_800_000_000_000_000),
	}
}

// runStoreContract exercises behaviour shared by every Store.
func runStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	first := sampleEntry("0xaaa", "0x01", at)
	require.NoError(t, s.Append(ctx, first))
	assert.NotZero(t, first.ID)

	failed := sampleEntry("0xbbb", "", at.Add(time.Second))
	failed.Outcome = "insufficient_gas"
	failed.Reason = "native balance 0.005000 below reserve 0.010000"
	failed.Amount = nil
	failed.FeePaid = nil
	require.NoError(t, s.Append(ctx, failed))

	// entries with no tx hash never collide
	require.NoError(t, s.Append(ctx, sampleEntry("0xaaa", "", at.Add(2*time.Second))))

	assert.ErrorIs(t, s.Append(ctx, sampleEntry("0xaaa", "0x01", at)), ErrDuplicateKey)
	assert.ErrorIs(t, s.Append(ctx, &Entry{Wallet: "0xaaa"}), ErrInvalidInput)

	all, err := s.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Less(t, all[0].ID, all[1].ID)
	assert.Less(t, all[1].ID, all[2].ID)
	assert.Equal(t, "0x01", all[0].TxHash)
	assert.Equal(t, 0, all[0].Amount.Cmp(big.NewInt(70_000_000)))
	assert.Equal(t, 0, all[0].FeePaid.Cmp(big.NewInt(7_800_000_000_000_000)))
	assert.Equal(t, uint64(150_000), all[0].GasUsed)
	assert.True(t, all[0].Time.Equal(at))
	assert.Nil(t, all[1].Amount)
	assert.Equal(t, "insufficient_gas", all[1].Outcome)

	mine, err := s.List(ctx, ListOptions{Wallet: "0xaaa", Limit: 1})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, first.ID, mine[0].ID)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	runStoreContract(t, s)
}

func TestMemoryStoreCopiesBigInts(t *testing.T) {
	s := NewMemoryStore()
	e := sampleEntry("0xaaa", "0x02", time.Now())
	require.NoError(t, s.Append(context.Background(), e))
	e.Amount.SetInt64(1)

	got, err := s.List(context.Background(), ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, got[0].Amount.Cmp(big.NewInt(70_000_000)))
}

func TestBoundedMemoryStoreKeepsLatest(t *testing.T) {
	ctx := context.Background()
	s := NewBoundedMemoryStore(2)
	now := time.Now()
	for i, h := range []string{"0x01", "0x02", "0x03"} {
		require.NoError(t, s.Append(ctx, sampleEntry("0xaaa", h, now.Add(time.Duration(i)*time.Second))))
	}

	got, err := s.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "0x02", got[0].TxHash)
	assert.Equal(t, int64(3), got[1].ID)

	// evicted hashes no longer count as duplicates, retained ones still do
	assert.NoError(t, s.Append(ctx, sampleEntry("0xaaa", "0x01", now)))
	assert.ErrorIs(t, s.Append(ctx, sampleEntry("0xaaa", "0x01", now)), ErrDuplicateKey)
}
