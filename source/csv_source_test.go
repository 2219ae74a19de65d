package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "records.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCSVSourceStreams(t *testing.T) {
	path := writeCSV(t, "id,recordedBy\nrec-1,\"Silva, J.\"\nrec-2,EMBRAPA\n")

	src, err := NewCSVSource(path, "id", "recordedBy")
	if err != nil {
		t.Fatalf("NewCSVSource failed: %v", err)
	}
	defer src.Close()

	ctx := context.Background()

	first, err := src.Next(ctx)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if first.ID != "rec-1" || first.Collector != "Silva, J." {
		t.Errorf("first record = %+v", first)
	}

	second, err := src.Next(ctx)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if second.Collector != "EMBRAPA" {
		t.Errorf("second record = %+v", second)
	}

	if _, err := src.Next(ctx); !errors.Is(err, ErrNoMoreRecords) {
		t.Errorf("Next at end = %v, want ErrNoMoreRecords", err)
	}
}

func TestCSVSourceCount(t *testing.T) {
	path := writeCSV(t, "id,recordedBy\nrec-1,Silva\nrec-2,Santos\nrec-3,Forzza\n")

	src, err := NewCSVSource(path, "id", "recordedBy")
	if err != nil {
		t.Fatalf("NewCSVSource failed: %v", err)
	}
	defer src.Close()

	count, err := src.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 3 {
		t.Errorf("Count = %d, want 3", count)
	}
}

func TestCSVSourceGeneratesIDs(t *testing.T) {
	path := writeCSV(t, "recordedBy\nSilva\n")

	src, err := NewCSVSource(path, "", "recordedBy")
	if err != nil {
		t.Fatalf("NewCSVSource failed: %v", err)
	}
	defer src.Close()

	record, err := src.Next(context.Background())
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if record.ID == "" {
		t.Error("record without id column should get a generated id")
	}
}

func TestCSVSourceMissingColumn(t *testing.T) {
	path := writeCSV(t, "id,name\n1,foo\n")
	if _, err := NewCSVSource(path, "id", "recordedBy"); err == nil {
		t.Error("missing collector column should fail")
	}
}

func TestCSVSourceRespectsContext(t *testing.T) {
	path := writeCSV(t, "id,recordedBy\nrec-1,Silva\n")

	src, err := NewCSVSource(path, "id", "recordedBy")
	if err != nil {
		t.Fatalf("NewCSVSource failed: %v", err)
	}
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.Next(ctx); err == nil {
		t.Error("cancelled context should abort Next")
	}
}
