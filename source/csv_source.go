package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
)

// CSVSource streams occurrence records from a CSV dump. The file is read
// incrementally; only the header is inspected up front.
type CSVSource struct {
	file      *os.File
	reader    *csv.Reader
	path      string
	idCol     int
	collector int
}

// NewCSVSource opens a CSV file whose header contains collectorColumn and,
// optionally, idColumn. When idColumn is empty or absent, records get
// generated identifiers.
func NewCSVSource(path, idColumn, collectorColumn string) (*CSVSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv source: %w", err)
	}

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	src := &CSVSource{file: file, reader: reader, path: path, idCol: -1, collector: -1}
	for i, name := range header {
		name = strings.TrimSpace(name)
		if strings.EqualFold(name, collectorColumn) {
			src.collector = i
		}
		if idColumn != "" && strings.EqualFold(name, idColumn) {
			src.idCol = i
		}
	}
	if src.collector < 0 {
		file.Close()
		return nil, fmt.Errorf("csv source %s has no column %q", path, collectorColumn)
	}
	return src, nil
}

// Next returns the next record.
func (s *CSVSource) Next(ctx context.Context) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for {
		row, err := s.reader.Read()
		if err == io.EOF {
			return nil, ErrNoMoreRecords
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv row: %w", err)
		}
		if s.collector >= len(row) {
			continue
		}

		record := &Record{Collector: row[s.collector]}
		if s.idCol >= 0 && s.idCol < len(row) && row[s.idCol] != "" {
			record.ID = row[s.idCol]
		} else {
			record.ID = uuid.NewString()
		}
		return record, nil
	}
}

// Count scans the file once to count data rows.
func (s *CSVSource) Count() (int64, error) {
	file, err := os.Open(s.path)
	if err != nil {
		return -1, fmt.Errorf("failed to reopen csv source: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	var count int64 = -1 // discount the header
	for {
		if _, err := reader.Read(); err != nil {
			if err == io.EOF {
				break
			}
			return -1, fmt.Errorf("failed to count csv rows: %w", err)
		}
		count++
	}
	if count < 0 {
		count = 0
	}
	return count, nil
}

// Close releases the file handle.
func (s *CSVSource) Close() error {
	return s.file.Close()
}
