package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"main/internal/ledger"
)

func main() {
	journalPath := flag.String("journal", "", "Path to the ledger journal file")
	addr := flag.String("addr", "localhost:9000", "ClickHouse address list, comma separated")
	database := flag.String("database", "default", "ClickHouse database")
	table := flag.String("table", "ledger_entries", "Target table")
	user := flag.String("user", "default", "ClickHouse user")
	password := flag.String("password", "", "ClickHouse password")
	flag.Parse()

	if *journalPath == "" {
		log.Fatal("-journal is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := ledger.OpenFileRepository(*journalPath)
	if err != nil {
		log.Fatalf("open journal failed: %v", err)
	}
	defer func() { _ = repo.Close() }()

	exporter, err := ledger.NewExporter(ctx, ledger.ExporterConfig{
		Addr:     strings.Split(*addr, ","),
		Database: *database,
		Table:    *table,
		User:     *user,
		Password: *password,
	})
	if err != nil {
		log.Fatalf("connect clickhouse failed: %v", err)
	}
	defer func() { _ = exporter.Close() }()

	if err := exporter.EnsureSchema(ctx); err != nil {
		log.Fatalf("ensure schema failed: %v", err)
	}
	exported, err := exporter.Export(ctx, repo)
	if err != nil {
		log.Fatalf("export failed after %d rows: %v", exported, err)
	}
	log.Printf("exported %d ledger entries to %s.%s", exported, *database, *table)
}
