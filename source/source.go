// Package source provides pull-model readers over herbarium occurrence
// records. The pipeline asks for one record at a time; no source ever
// materializes the full dataset.
package source

import (
	"context"
	"errors"
)

// Record is one occurrence record reduced to what the pipeline needs: an
// opaque identifier and the raw collector field.
type Record struct {
	ID        string `json:"id"`
	Collector string `json:"collector"`
}

// ErrNoMoreRecords signals normal end of stream.
var ErrNoMoreRecords = errors.New("no more records")

// RecordSource streams records. Implementations are not safe for concurrent
// Next calls; the pipeline reads from a single goroutine.
type RecordSource interface {
	// Next returns the next record, or ErrNoMoreRecords at end of stream.
	Next(ctx context.Context) (*Record, error)

	// Count returns the total number of records, for progress reporting.
	// Sources that cannot count cheaply return a negative value.
	Count() (int64, error)

	Close() error
}
