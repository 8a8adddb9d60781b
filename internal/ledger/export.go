package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	clickhouse "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/yanun0323/errors"
)

const exportBatchSize = 10_000

// ExporterConfig points the exporter at a ClickHouse database.
type ExporterConfig struct {
	Addr     []string
	Database string
	Table    string
	User     string
	Password string
}

func (c ExporterConfig) withDefaults() ExporterConfig {
	if len(c.Addr) == 0 {
		c.Addr = []string{"localhost:9000"}
	}
	if c.Database == "" {
		c.Database = "default"
	}
	if c.Table == "" {
		c.Table = "ledger_entries"
	}
	return c
}

// Exporter replays a ledger store into a ClickHouse table so analytics can
// run on the full entry set without reprocessing source fills.
type Exporter struct {
	cfg  ExporterConfig
	conn clickhouse.Conn
}

// NewExporter opens the ClickHouse connection and verifies it.
func NewExporter(ctx context.Context, cfg ExporterConfig) (*Exporter, error) {
	cfg = cfg.withDefaults()
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: cfg.Addr,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "open clickhouse")
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, errors.Wrap(err, "ping clickhouse")
	}
	return &Exporter{cfg: cfg, conn: conn}, nil
}

// Close releases the connection.
func (e *Exporter) Close() error {
	return e.conn.Close()
}

// EnsureSchema creates the target table when missing.
func (e *Exporter) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.%s (
			sequence     UInt64,
			entry_id     String,
			ts           DateTime64(6, 'UTC'),
			exchange     LowCardinality(String),
			asset        LowCardinality(String),
			amount       Decimal(38, 18),
			entry_type   LowCardinality(String),
			reference_id String,
			meta         String
		)
		ENGINE = ReplacingMergeTree
		ORDER BY sequence`, e.cfg.Database, e.cfg.Table)
	if err := e.conn.Exec(ctx, ddl); err != nil {
		return errors.Wrap(err, "create export table")
	}
	return nil
}

// Export streams every entry of the repository, in sequence order, into
// ClickHouse. Returns the number of exported rows.
func (e *Exporter) Export(ctx context.Context, repo Repository) (int, error) {
	exported := 0
	start := uint64(0)
	for {
		entries, err := repo.Query(Query{StartSequence: start + 1, Limit: exportBatchSize})
		if err != nil {
			return exported, errors.Wrap(err, "read ledger page")
		}
		if len(entries) == 0 {
			return exported, nil
		}
		if err := e.sendBatch(ctx, entries); err != nil {
			return exported, err
		}
		exported += len(entries)
		start = entries[len(entries)-1].Sequence
	}
}

func (e *Exporter) sendBatch(ctx context.Context, entries []Entry) error {
	batch, err := e.conn.PrepareBatch(ctx,
		fmt.Sprintf("INSERT INTO %s.%s", e.cfg.Database, e.cfg.Table))
	if err != nil {
		return errors.Wrap(err, "prepare batch")
	}
	for _, entry := range entries {
		meta := ""
		if entry.Meta != nil {
			data, err := json.Marshal(entry.Meta)
			if err != nil {
				return errors.Wrap(err, "encode meta")
			}
			meta = string(data)
		}
		if err := batch.Append(
			entry.Sequence,
			entry.ID.String(),
			entry.Timestamp.UTC().Truncate(time.Microsecond),
			entry.Exchange,
			entry.Asset,
			entry.Amount,
			string(entry.Type),
			entry.ReferenceID,
			meta,
		); err != nil {
			return errors.Wrap(err, "append row")
		}
	}
	if err := batch.Send(); err != nil {
		return errors.Wrap(err, "send batch")
	}
	return nil
}
