package db

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"podcred/internal/models"
)

func TestMemoryLedgerLifecycle(t *testing.T) {
	ledger := NewMemoryLedger()
	now := time.Unix(1000, 0)
	ledger.now = func() time.Time { return now }
	ctx := context.Background()

	tx := &models.Transaction{Kind: "issue_diploma", TxHash: "0xABC", Signer: "0xSigner"}
	require.NoError(t, ledger.Record(ctx, tx))
	require.NotEqual(t, uuid.Nil, tx.ID)
	require.Equal(t, models.TransactionPending, tx.Status)

	got, err := ledger.Get(ctx, "0xabc")
	require.NoError(t, err)
	require.Equal(t, "issue_diploma", got.Kind)

	pending, err := ledger.Pending(ctx, now.Add(time.Second), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, ledger.MarkConfirmed(ctx, "0xabc", 42, 21000))
	got, err = ledger.Get(ctx, "0xABC")
	require.NoError(t, err)
	require.Equal(t, models.TransactionConfirmed, got.Status)
	require.Equal(t, uint64(42), got.BlockNumber)

	pending, err = ledger.Pending(ctx, now.Add(time.Second), 10)
	require.NoError(t, err)
	require.Empty(t, pending)

	require.ErrorIs(t, ledger.MarkFailed(ctx, "0xmissing", "x"), ErrNotFound)
	_, err = ledger.Get(ctx, "0xmissing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryLedgerListOrdersNewestFirst(t *testing.T) {
	ledger := NewMemoryLedger()
	ctx := context.Background()
	base := time.Unix(1000, 0)

	for i, hash := range []string{"0x1", "0x2", "0x3"} {
		require.NoError(t, ledger.Record(ctx, &models.Transaction{
			TxHash:    hash,
			Signer:    "0xAA",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, ledger.Record(ctx, &models.Transaction{TxHash: "0x4", Signer: "0xBB", CreatedAt: base}))

	txs, err := ledger.List(ctx, "0xaa", 2)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	require.Equal(t, "0x3", txs[0].TxHash)
	require.Equal(t, "0x2", txs[1].TxHash)

	all, err := ledger.List(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
}
