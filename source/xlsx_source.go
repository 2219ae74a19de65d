package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

// XLSXSource streams occurrence records from an Excel workbook, reading the
// first sheet row by row.
type XLSXSource struct {
	file      *excelize.File
	rows      *excelize.Rows
	idCol     int
	collector int
}

// NewXLSXSource opens a workbook whose first sheet's header row contains
// collectorColumn and, optionally, idColumn.
func NewXLSXSource(path, idColumn, collectorColumn string) (*XLSXSource, error) {
	file, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx source: %w", err)
	}

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		file.Close()
		return nil, fmt.Errorf("xlsx source %s has no sheets", path)
	}

	rows, err := file.Rows(sheets[0])
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to iterate sheet %q: %w", sheets[0], err)
	}

	src := &XLSXSource{file: file, rows: rows, idCol: -1, collector: -1}

	if rows.Next() {
		header, err := rows.Columns()
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to read xlsx header: %w", err)
		}
		for i, name := range header {
			name = strings.TrimSpace(name)
			if strings.EqualFold(name, collectorColumn) {
				src.collector = i
			}
			if idColumn != "" && strings.EqualFold(name, idColumn) {
				src.idCol = i
			}
		}
	}
	if src.collector < 0 {
		file.Close()
		return nil, fmt.Errorf("xlsx source %s has no column %q", path, collectorColumn)
	}
	return src, nil
}

// Next returns the next record.
func (s *XLSXSource) Next(ctx context.Context) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for s.rows.Next() {
		row, err := s.rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("failed to read xlsx row: %w", err)
		}
		if s.collector >= len(row) || strings.TrimSpace(row[s.collector]) == "" {
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
	if err := s.rows.Error(); err != nil {
		return nil, fmt.Errorf("failed to iterate xlsx rows: %w", err)
	}
	return nil, ErrNoMoreRecords
}

// Count is not known without a full scan; callers get a negative value.
func (s *XLSXSource) Count() (int64, error) {
	return -1, nil
}

// Close releases the workbook.
func (s *XLSXSource) Close() error {
	s.rows.Close()
	return s.file.Close()
}
