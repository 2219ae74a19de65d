package source

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteSourceConfig describes where occurrence records live in a local
// SQLite mirror of the specimen collection.
type SQLiteSourceConfig struct {
	Path            string `json:"path" yaml:"path"`
	Table           string `json:"table" yaml:"table"`
	IDColumn        string `json:"id_column" yaml:"id_column"`
	CollectorColumn string `json:"collector_column" yaml:"collector_column"`
	// KingdomColumn/KingdomFilter restrict the stream to one kingdom,
	// normally Plantae. Empty disables the filter.
	KingdomColumn string `json:"kingdom_column" yaml:"kingdom_column"`
	KingdomFilter string `json:"kingdom_filter" yaml:"kingdom_filter"`
}

func (c *SQLiteSourceConfig) applyDefaults() {
	if c.Table == "" {
		c.Table = "occurrences"
	}
	if c.IDColumn == "" {
		c.IDColumn = "id"
	}
	if c.CollectorColumn == "" {
		c.CollectorColumn = "recordedBy"
	}
}

// SQLiteSource streams occurrence records from a SQLite database.
type SQLiteSource struct {
	conn   *sql.DB
	rows   *sql.Rows
	config SQLiteSourceConfig
}

// NewSQLiteSource opens the database and starts the record query.
func NewSQLiteSource(config SQLiteSourceConfig) (*SQLiteSource, error) {
	config.applyDefaults()

	conn, err := sql.Open("sqlite3", config.Path+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite source: %w", err)
	}

	query, args := config.buildQuery(false)
	rows, err := conn.Query(query, args...)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to query sqlite source: %w", err)
	}

	return &SQLiteSource{conn: conn, rows: rows, config: config}, nil
}

func (c SQLiteSourceConfig) buildQuery(count bool) (string, []any) {
	selected := fmt.Sprintf("%s, %s", c.IDColumn, c.CollectorColumn)
	if count {
		selected = "COUNT(*)"
	}
	query := fmt.Sprintf("SELECT %s FROM %s", selected, c.Table)
	var args []any
	if c.KingdomColumn != "" && c.KingdomFilter != "" {
		query += fmt.Sprintf(" WHERE %s = ?", c.KingdomColumn)
		args = append(args, c.KingdomFilter)
	}
	return query, args
}

// Next returns the next record.
func (s *SQLiteSource) Next(ctx context.Context) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for s.rows.Next() {
		var id, collector sql.NullString
		if err := s.rows.Scan(&id, &collector); err != nil {
			return nil, fmt.Errorf("failed to scan occurrence row: %w", err)
		}
		if !collector.Valid || collector.String == "" {
			continue
		}
		record := &Record{Collector: collector.String}
		if id.Valid && id.String != "" {
			record.ID = id.String
		} else {
			record.ID = uuid.NewString()
		}
		return record, nil
	}
	if err := s.rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate occurrence rows: %w", err)
	}
	return nil, ErrNoMoreRecords
}

// Count runs a COUNT query with the same filter.
func (s *SQLiteSource) Count() (int64, error) {
	query, args := s.config.buildQuery(true)
	var count int64
	if err := s.conn.QueryRow(query, args...).Scan(&count); err != nil {
		return -1, fmt.Errorf("failed to count occurrence rows: %w", err)
	}
	return count, nil
}

// Close releases the cursor and connection.
func (s *SQLiteSource) Close() error {
	s.rows.Close()
	return s.conn.Close()
}
