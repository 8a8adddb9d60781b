package ledger

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"gorm.io/gorm"
)

type entryRow struct {
	Sequence    uint64    `gorm:"primaryKey;autoIncrement:false"`
	EntryID     string    `gorm:"size:36;uniqueIndex"`
	Timestamp   time.Time `gorm:"index"`
	Exchange    string    `gorm:"size:64;index:idx_ledger_scope"`
	Asset       string    `gorm:"size:64;index:idx_ledger_scope"`
	Amount      string    `gorm:"size:64"`
	EntryType   string    `gorm:"size:32;index"`
	ReferenceID string    `gorm:"size:128;index"`
	Meta        string
}

func (entryRow) TableName() string {
	return "ledger_entries"
}

// PgRepository is the PostgreSQL-backed ledger store used by the live
// runtime. Batches commit inside a single transaction.
type PgRepository struct {
	db *gorm.DB
}

// NewPgRepository migrates the schema and returns a repository.
func NewPgRepository(db *gorm.DB) (*PgRepository, error) {
	if db == nil {
		return nil, errors.New("nil gorm db")
	}
	if err := db.AutoMigrate(&entryRow{}); err != nil {
		return nil, errors.Wrap(err, "migrate ledger schema")
	}
	return &PgRepository{db: db}, nil
}

// AppendBatch persists all entries in one transaction.
func (r *PgRepository) AppendBatch(entries []Entry) error {
	if len(entries) == 0 {
		return ErrEmptyBatch
	}
	rows := make([]entryRow, 0, len(entries))
	for _, entry := range entries {
		row, err := toRow(entry)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rows).Error; err != nil {
			return errors.Wrap(err, "insert ledger batch")
		}
		return nil
	})
}

// LatestSequence returns the highest persisted sequence, zero when empty.
func (r *PgRepository) LatestSequence() (uint64, error) {
	var last uint64
	err := r.db.Model(&entryRow{}).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&last).Error
	if err != nil {
		return 0, errors.Wrap(err, "read latest sequence")
	}
	return last, nil
}

// Query returns matching entries in sequence order.
func (r *PgRepository) Query(q Query) ([]Entry, error) {
	stmt := r.db.Model(&entryRow{})
	if q.Exchange != "" {
		stmt = stmt.Where("exchange = ?", q.Exchange)
	}
	if q.Asset != "" {
		stmt = stmt.Where("asset = ?", q.Asset)
	}
	if q.Type != "" {
		stmt = stmt.Where("entry_type = ?", string(q.Type))
	}
	if q.StartSequence != 0 {
		stmt = stmt.Where("sequence >= ?", q.StartSequence)
	}
	if q.EndSequence != 0 {
		stmt = stmt.Where("sequence <= ?", q.EndSequence)
	}
	stmt = stmt.Order("sequence ASC")
	if q.Limit > 0 {
		stmt = stmt.Limit(q.Limit)
	}

	var rows []entryRow
	if err := stmt.Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "query ledger entries")
	}
	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entry, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func toRow(entry Entry) (entryRow, error) {
	row := entryRow{
		Sequence:    entry.Sequence,
		EntryID:     entry.ID.String(),
		Timestamp:   entry.Timestamp,
		Exchange:    entry.Exchange,
		Asset:       entry.Asset,
		Amount:      entry.Amount.String(),
		EntryType:   string(entry.Type),
		ReferenceID: entry.ReferenceID,
	}
	if entry.Meta != nil {
		data, err := json.Marshal(entry.Meta)
		if err != nil {
			return entryRow{}, errors.Wrap(err, "encode entry meta")
		}
		row.Meta = string(data)
	}
	return row, nil
}

func fromRow(row entryRow) (Entry, error) {
	id, err := uuid.Parse(row.EntryID)
	if err != nil {
		return Entry{}, errors.Wrap(err, "parse entry id")
	}
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return Entry{}, errors.Wrap(err, "parse entry amount")
	}
	entryType, err := ParseType(row.EntryType)
	if err != nil {
		return Entry{}, err
	}
	entry := Entry{
		Sequence:    row.Sequence,
		ID:          id,
		Timestamp:   row.Timestamp,
		Exchange:    row.Exchange,
		Asset:       row.Asset,
		Amount:      amount,
		Type:        entryType,
		ReferenceID: row.ReferenceID,
	}
	if row.Meta != "" {
		var meta map[string]any
		if err := json.Unmarshal([]byte(row.Meta), &meta); err != nil {
			return Entry{}, errors.Wrap(err, "decode entry meta")
		}
		entry.Meta = meta
	}
	return entry, nil
}
