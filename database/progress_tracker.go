package database

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const createProgressSchema = `
CREATE TABLE IF NOT EXISTS processed_records (
	record_id TEXT PRIMARY KEY,
	processed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	batch_number INTEGER
);

CREATE INDEX IF NOT EXISTS idx_batch_number
ON processed_records(batch_number);

CREATE TABLE IF NOT EXISTS progress_metadata (
	key TEXT PRIMARY KEY,
	value TEXT,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// ProgressTracker records which source records have already been processed
// so an interrupted run over millions of records can resume where it left
// off. Safe for concurrent use.
type ProgressTracker struct {
	conn *sql.DB
	mu   sync.Mutex
}

// NewProgressTracker opens (creating if needed) the tracker at path.
func NewProgressTracker(path string) (*ProgressTracker, error) {
	conn, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open progress database: %w", err)
	}
	tracker := &ProgressTracker{conn: conn}
	if _, err := conn.Exec(createProgressSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create progress schema: %w", err)
	}
	return tracker, nil
}

// Close closes the underlying connection.
func (t *ProgressTracker) Close() error {
	return t.conn.Close()
}

// IsProcessed reports whether the record was already handled.
func (t *ProgressTracker) IsProcessed(recordID string) (bool, error) {
	var one int
	err := t.conn.QueryRow(
		"SELECT 1 FROM processed_records WHERE record_id = ? LIMIT 1", recordID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check record %q: %w", recordID, err)
	}
	return true, nil
}

// MarkProcessed records one handled record.
func (t *ProgressTracker) MarkProcessed(recordID string, batchNumber int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := t.conn.Exec(
		"INSERT OR IGNORE INTO processed_records (record_id, batch_number) VALUES (?, ?)",
		recordID, batchNumber)
	if err != nil {
		return fmt.Errorf("failed to mark record %q: %w", recordID, err)
	}
	return nil
}

// MarkBatchProcessed records a whole batch in one transaction.
func (t *ProgressTracker) MarkBatchProcessed(recordIDs []string, batchNumber int) error {
	if len(recordIDs) == 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	tx, err := t.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin batch transaction: %w", err)
	}
	stmt, err := tx.Prepare(
		"INSERT OR IGNORE INTO processed_records (record_id, batch_number) VALUES (?, ?)")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare batch insert: %w", err)
	}
	defer stmt.Close()

	for _, id := range recordIDs {
		if _, err := stmt.Exec(id, batchNumber); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to mark record %q in batch %d: %w", id, batchNumber, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch %d: %w", batchNumber, err)
	}
	return nil
}

// ProcessedCount returns how many records were handled so far.
func (t *ProgressTracker) ProcessedCount() (int64, error) {
	var count int64
	if err := t.conn.QueryRow("SELECT COUNT(*) FROM processed_records").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count processed records: %w", err)
	}
	return count, nil
}

// LastBatch returns the highest batch number seen, or -1 for a fresh run.
func (t *ProgressTracker) LastBatch() (int, error) {
	var batch sql.NullInt64
	if err := t.conn.QueryRow("SELECT MAX(batch_number) FROM processed_records").Scan(&batch); err != nil {
		return -1, fmt.Errorf("failed to read last batch: %w", err)
	}
	if !batch.Valid {
		return -1, nil
	}
	return int(batch.Int64), nil
}

// SetMetadata stores a key/value pair, refreshing its timestamp.
func (t *ProgressTracker) SetMetadata(key, value string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := t.conn.Exec(`
		INSERT INTO progress_metadata (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to set metadata %q: %w", key, err)
	}
	return nil
}

// GetMetadata reads a value; ok is false when the key is unset.
func (t *ProgressTracker) GetMetadata(key string) (string, bool, error) {
	var value string
	err := t.conn.QueryRow("SELECT value FROM progress_metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get metadata %q: %w", key, err)
	}
	return value, true, nil
}
