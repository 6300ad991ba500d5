// Package sqlite implements the engine's audit trail: an append-only,
// WAL-mode table of TickReport rows, written off the tick's critical path.
// Grounded on the teacher's internal/store/sqlite/writer.go: a
// single-writer *sql.DB opened with WAL+NORMAL+busy-timeout pragmas,
// batched inserts flushed by size or a timer, whichever first.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"metalindexd/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultBatchSize  = 50
	defaultFlushDelay = 500 * time.Millisecond
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/ticks.db"
}

// Writer is a single-goroutine SQLite writer with transaction batching.
type Writer struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New creates a new SQLite Writer, initializing the database with WAL mode
// and schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Writer{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS ticks (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			trace_id    TEXT    NOT NULL,
			ts          INTEGER NOT NULL,
			regime      TEXT    NOT NULL,
			index_usd   REAL    NOT NULL,
			weights     TEXT    NOT NULL,
			volatility  TEXT    NOT NULL,
			drift_cap   REAL    NOT NULL,
			weight_speed REAL   NOT NULL,
			published   INTEGER NOT NULL,
			publish_err TEXT,
			tick_err    TEXT
		);
	`)
	return err
}

// Run reads TickReports from reportCh and inserts them in batched
// transactions. Flushes every batchSize reports OR every flushDelay,
// whichever comes first. Blocks until ctx is cancelled or reportCh is
// closed.
func (w *Writer) Run(ctx context.Context, reportCh <-chan model.TickReport) {
	batch := make([]model.TickReport, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		if err := w.insertBatch(batch); err != nil {
			log.Printf("[sqlite] batch insert error: %v", err)
		} else {
			log.Printf("[sqlite] committed %d ticks in %v", len(batch), time.Since(start))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case r, ok := <-reportCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, r)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

func (w *Writer) insertBatch(reports []model.TickReport) error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO ticks (trace_id, ts, regime, index_usd, weights, volatility, drift_cap, weight_speed, published, publish_err, tick_err)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, r := range reports {
		weights, err := json.Marshal(r.Weights)
		if err != nil {
			tx.Rollback()
			return err
		}
		volatility, err := json.Marshal(r.Volatility)
		if err != nil {
			tx.Rollback()
			return err
		}
		_, err = stmt.Exec(
			r.TraceID, r.TS.Unix(), r.Regime.String(), r.Index,
			string(weights), string(volatility),
			r.Risk.DriftCap, r.Risk.WeightSpeed,
			r.Published, nullableString(r.PublishErr), nullableString(r.TickErr),
		)
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
