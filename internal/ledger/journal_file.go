package ledger

import (
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"

	"github.com/yanun0323/errors"
)

const (
	journalVersion    uint16 = 1
	journalHeaderSize        = 12
	journalCRCSize           = 4
)

var (
	journalMagic    = [4]byte{'L', 'G', 'R', '1'}
	journalCRCTable = crc32.MakeTable(crc32.Castagnoli)
)

// FileRepository is an append-only journal where every batch is a single
// checksummed record. A crash mid-write leaves at most one torn record at
// the tail, which Open discards, restoring the pre-write state. A partial
// batch is never observed.
type FileRepository struct {
	path    string
	file    *os.File
	size    int64
	entries []Entry
}

// OpenFileRepository opens (or creates) a journal file and replays its
// records. Torn or corrupt tail data is truncated away.
func OpenFileRepository(path string) (*FileRepository, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "create journal dir")
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "open journal")
	}
	repo := &FileRepository{path: path, file: file}
	if err := repo.replay(); err != nil {
		_ = file.Close()
		return nil, err
	}
	return repo, nil
}

// Close releases the underlying file.
func (r *FileRepository) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// AppendBatch writes all entries as one durable record. All entries land
// or none do.
func (r *FileRepository) AppendBatch(entries []Entry) error {
	if len(entries) == 0 {
		return ErrEmptyBatch
	}
	next := uint64(1)
	if n := len(r.entries); n > 0 {
		next = r.entries[n-1].Sequence + 1
	}
	for i, entry := range entries {
		if entry.Sequence != next+uint64(i) {
			return ErrSequenceOrder
		}
	}

	payload, err := json.Marshal(entries)
	if err != nil {
		return errors.Wrap(err, "encode batch")
	}

	record := make([]byte, journalHeaderSize+len(payload)+journalCRCSize)
	copy(record[0:4], journalMagic[:])
	binary.LittleEndian.PutUint16(record[4:6], journalVersion)
	binary.LittleEndian.PutUint16(record[6:8], 0)
	binary.LittleEndian.PutUint32(record[8:12], uint32(len(payload)))
	copy(record[journalHeaderSize:], payload)
	sum := crc32.Checksum(record[:journalHeaderSize+len(payload)], journalCRCTable)
	binary.LittleEndian.PutUint32(record[journalHeaderSize+len(payload):], sum)

	if _, err := r.file.WriteAt(record, r.size); err != nil {
		_ = r.file.Truncate(r.size)
		return errors.Wrap(err, "write batch record")
	}
	if err := r.file.Sync(); err != nil {
		_ = r.file.Truncate(r.size)
		return errors.Wrap(err, "sync journal")
	}

	r.size += int64(len(record))
	r.entries = append(r.entries, entries...)
	return nil
}

// LatestSequence returns the highest persisted sequence, zero when empty.
func (r *FileRepository) LatestSequence() (uint64, error) {
	if len(r.entries) == 0 {
		return 0, nil
	}
	return r.entries[len(r.entries)-1].Sequence, nil
}

// Query returns matching entries in sequence order.
func (r *FileRepository) Query(q Query) ([]Entry, error) {
	var out []Entry
	for _, entry := range r.entries {
		if !q.Matches(entry) {
			continue
		}
		out = append(out, entry)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}

func (r *FileRepository) replay() error {
	info, err := r.file.Stat()
	if err != nil {
		return errors.Wrap(err, "stat journal")
	}
	total := info.Size()

	var offset int64
	header := make([]byte, journalHeaderSize)
	for offset < total {
		if total-offset < journalHeaderSize {
			break
		}
		if _, err := r.file.ReadAt(header, offset); err != nil {
			return errors.Wrap(err, "read record header")
		}
		if string(header[0:4]) != string(journalMagic[:]) {
			break
		}
		if binary.LittleEndian.Uint16(header[4:6]) != journalVersion {
			break
		}
		payloadLen := int64(binary.LittleEndian.Uint32(header[8:12]))
		recordLen := journalHeaderSize + payloadLen + journalCRCSize
		if total-offset < recordLen {
			break
		}

		body := make([]byte, payloadLen+journalCRCSize)
		if _, err := r.file.ReadAt(body, offset+journalHeaderSize); err != nil {
			if err == io.EOF {
				break
			}
			return errors.Wrap(err, "read record body")
		}
		payload := body[:payloadLen]
		expected := binary.LittleEndian.Uint32(body[payloadLen:])
		sum := crc32.Update(crc32.Checksum(header, journalCRCTable), journalCRCTable, payload)
		if sum != expected {
			break
		}

		var batch []Entry
		if err := json.Unmarshal(payload, &batch); err != nil {
			break
		}
		r.entries = append(r.entries, batch...)
		offset += recordLen
	}

	if offset < total {
		if err := r.file.Truncate(offset); err != nil {
			return errors.Wrap(err, "truncate torn tail")
		}
	}
	r.size = offset
	return nil
}
