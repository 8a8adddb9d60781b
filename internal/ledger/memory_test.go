package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepositoryQueryFilters(t *testing.T) {
	repo := NewMemoryRepository()

	seed := []Entry{
		{Sequence: 1, Exchange: "paper", Asset: "USDT", Type: TypeTransferIn, Amount: decimal.NewFromInt(100)},
		{Sequence: 2, Exchange: "paper", Asset: "BTC", Type: TypeAdjustment, Amount: decimal.NewFromInt(1)},
		{Sequence: 3, Exchange: "live", Asset: "USDT", Type: TypeFee, Amount: decimal.NewFromInt(-1)},
		{Sequence: 4, Exchange: "paper", Asset: "USDT", Type: TypeFee, Amount: decimal.NewFromInt(-2)},
	}
	require.NoError(t, repo.AppendBatch(seed))

	byExchange, err := repo.Query(Query{Exchange: "paper"})
	require.NoError(t, err)
	require.Len(t, byExchange, 3)

	byType, err := repo.Query(Query{Type: TypeFee})
	require.NoError(t, err)
	require.Len(t, byType, 2)
	require.Equal(t, uint64(3), byType[0].Sequence)

	byRange, err := repo.Query(Query{StartSequence: 2, EndSequence: 3})
	require.NoError(t, err)
	require.Len(t, byRange, 2)

	limited, err := repo.Query(Query{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	require.Equal(t, uint64(1), limited[0].Sequence)
}

func TestMemoryRepositoryRejectsEmptyAndGappyBatches(t *testing.T) {
	repo := NewMemoryRepository()
	require.ErrorIs(t, repo.AppendBatch(nil), ErrEmptyBatch)

	require.NoError(t, repo.AppendBatch([]Entry{{Sequence: 1}}))
	require.ErrorIs(t, repo.AppendBatch([]Entry{{Sequence: 3}}), ErrSequenceOrder)
	require.ErrorIs(t, repo.AppendBatch([]Entry{{Sequence: 2}, {Sequence: 4}}), ErrSequenceOrder)
}
