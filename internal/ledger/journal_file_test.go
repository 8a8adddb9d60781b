package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func sampleEntries(start uint64, n int) []Entry {
	entries := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		entry := NewEntry("paper", "USDT", decimal.NewFromInt(int64(i+1)), TypeAdjustment, "ref")
		entry.Sequence = start + uint64(i)
		entries = append(entries, entry)
	}
	return entries
}

func TestFileRepositoryRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.journal")

	repo, err := OpenFileRepository(path)
	require.NoError(t, err)
	require.NoError(t, repo.AppendBatch(sampleEntries(1, 2)))
	require.NoError(t, repo.AppendBatch(sampleEntries(3, 3)))
	require.NoError(t, repo.Close())

	reopened, err := OpenFileRepository(path)
	require.NoError(t, err)
	defer reopened.Close()

	last, err := reopened.LatestSequence()
	require.NoError(t, err)
	require.Equal(t, uint64(5), last)

	entries, err := reopened.Query(Query{StartSequence: 2, EndSequence: 4})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, uint64(2), entries[0].Sequence)
	require.Equal(t, uint64(4), entries[2].Sequence)
}

func TestFileRepositoryEmptyStore(t *testing.T) {
	repo, err := OpenFileRepository(filepath.Join(t.TempDir(), "empty.journal"))
	require.NoError(t, err)
	defer repo.Close()

	last, err := repo.LatestSequence()
	require.NoError(t, err)
	require.Equal(t, uint64(0), last)

	entries, err := repo.Query(Query{})
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestFileRepositoryRejectsSequenceGap(t *testing.T) {
	repo, err := OpenFileRepository(filepath.Join(t.TempDir(), "gap.journal"))
	require.NoError(t, err)
	defer repo.Close()

	require.NoError(t, repo.AppendBatch(sampleEntries(1, 1)))
	err = repo.AppendBatch(sampleEntries(3, 1))
	require.ErrorIs(t, err, ErrSequenceOrder)
}

// Simulates a crash after part of a batch record reached disk: the torn
// record must be invisible after reopen and the sequence must resume at the
// pre-crash value.
func TestFileRepositoryCrashMidBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crash.journal")

	repo, err := OpenFileRepository(path)
	require.NoError(t, err)
	require.NoError(t, repo.AppendBatch(sampleEntries(1, 1)))
	committedSize := repo.size
	require.NoError(t, repo.AppendBatch(sampleEntries(2, 2)))
	require.NoError(t, repo.Close())

	// chop the second record in half
	info, err := os.Stat(path)
	require.NoError(t, err)
	torn := committedSize + (info.Size()-committedSize)/2
	require.NoError(t, os.Truncate(path, torn))

	reopened, err := OpenFileRepository(path)
	require.NoError(t, err)
	defer reopened.Close()

	last, err := reopened.LatestSequence()
	require.NoError(t, err)
	require.Equal(t, uint64(1), last, "torn batch must not be visible")

	entries, err := reopened.Query(Query{})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	seq, err := BootstrapSequencer(reopened)
	require.NoError(t, err)
	require.Equal(t, uint64(2), seq.Next())
}

func TestFileRepositoryCorruptedChecksumDropsTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.journal")

	repo, err := OpenFileRepository(path)
	require.NoError(t, err)
	require.NoError(t, repo.AppendBatch(sampleEntries(1, 1)))
	goodSize := repo.size
	require.NoError(t, repo.AppendBatch(sampleEntries(2, 1)))
	require.NoError(t, repo.Close())

	// flip a payload byte in the second record
	file, err := os.OpenFile(path, os.O_RDWR, 0o644)
	require.NoError(t, err)
	_, err = file.WriteAt([]byte{0xFF}, goodSize+journalHeaderSize+1)
	require.NoError(t, err)
	require.NoError(t, file.Close())

	reopened, err := OpenFileRepository(path)
	require.NoError(t, err)
	defer reopened.Close()

	last, err := reopened.LatestSequence()
	require.NoError(t, err)
	require.Equal(t, uint64(1), last)
}
