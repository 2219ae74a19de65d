// Package export produces the canonical-collector deliverables: the CSV
// contract consumed downstream, plus Excel and JSON reports for curators.
package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"coletores/database"
)

// Format selects an export encoding.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatExcel Format = "excel"
	FormatJSON  Format = "json"
)

// Exporter writes canonical entities out of the store.
type Exporter struct {
	db *database.CanonicalDB
}

// NewExporter creates an exporter over the store.
func NewExporter(db *database.CanonicalDB) *Exporter {
	return &Exporter{db: db}
}

// Export writes every canonical entity to path in the given format.
func (e *Exporter) Export(format Format, path string) error {
	entities, err := e.db.AllEntities()
	if err != nil {
		return fmt.Errorf("failed to fetch entities for export: %w", err)
	}

	switch format {
	case FormatCSV:
		return e.toCSV(entities, path)
	case FormatExcel:
		return e.toExcel(entities, path)
	case FormatJSON:
		return e.toJSON(entities, path)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

// toCSV writes the three-column contract: canonicalName, variations and
// occurrenceCounts, the last two semicolon-joined in insertion order.
// Fields are written unquoted in UTF-8 without BOM; encoding/csv is not
// used because it would quote fields containing commas.
func (e *Exporter) toCSV(entities []*database.CanonicalEntity, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create csv export: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	if _, err := w.WriteString("canonicalName,variations,occurrenceCounts\n"); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, entity := range entities {
		texts := make([]string, 0, len(entity.Variations))
		counts := make([]string, 0, len(entity.Variations))
		for _, v := range entity.Variations {
			texts = append(texts, v.VariationText)
			counts = append(counts, strconv.Itoa(v.OccurrenceCount))
		}
		line := entity.CanonicalName + "," + strings.Join(texts, ";") + "," + strings.Join(counts, ";") + "\n"
		if _, err := w.WriteString(line); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush csv export: %w", err)
	}
	return nil
}

// toExcel writes a curator-oriented workbook including the confidence
// columns the CSV contract omits.
func (e *Exporter) toExcel(entities []*database.CanonicalEntity, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Collectors"
	f.SetSheetName(f.GetSheetName(0), sheet)

	headers := []string{
		"canonicalName", "entityType", "classificationConfidence",
		"groupingConfidence", "variations", "occurrenceCounts", "createdAt",
	}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return fmt.Errorf("failed to address header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	for row, entity := range entities {
		texts := make([]string, 0, len(entity.Variations))
		counts := make([]string, 0, len(entity.Variations))
		for _, v := range entity.Variations {
			texts = append(texts, v.VariationText)
			counts = append(counts, strconv.Itoa(v.OccurrenceCount))
		}
		values := []any{
			entity.CanonicalName,
			string(entity.EntityType),
			entity.ClassificationConfidence,
			entity.GroupingConfidence,
			strings.Join(texts, ";"),
			strings.Join(counts, ";"),
			entity.CreatedAt.Format(time.RFC3339),
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return fmt.Errorf("failed to address cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("failed to write row %d: %w", row+2, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save excel export: %w", err)
	}
	return nil
}

func (e *Exporter) toJSON(entities []*database.CanonicalEntity, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create json export: %w", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	payload := map[string]any{
		"exported_at": time.Now().UTC().Format(time.RFC3339),
		"count":       len(entities),
		"entities":    entities,
	}
	if err := enc.Encode(payload); err != nil {
		return fmt.Errorf("failed to encode json export: %w", err)
	}
	return nil
}

// CSVRow is one parsed line of the CSV contract.
type CSVRow struct {
	CanonicalName    string
	Variations       []string
	OccurrenceCounts []int
}

// ReadCSV parses an exported CSV back into rows, used to verify the
// round-trip law. Fields are unquoted, so commas inside names are resolved
// structurally: the counts column starts at the last comma of the line, and
// the canonicalName/variations boundary is the first comma not followed by
// a space (canonical forms always write ", " inside a name).
func ReadCSV(r io.Reader) ([]CSVRow, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var rows []CSVRow
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			first = false
			continue
		}
		if line == "" {
			continue
		}

		lastComma := strings.LastIndex(line, ",")
		if lastComma < 0 {
			return nil, fmt.Errorf("malformed csv line: %q", line)
		}
		counts := line[lastComma+1:]
		prefix := line[:lastComma]

		boundary := boundaryComma(prefix)
		if boundary < 0 {
			return nil, fmt.Errorf("malformed csv line: %q", line)
		}

		row := CSVRow{CanonicalName: prefix[:boundary]}
		variations := prefix[boundary+1:]

		if variations != "" {
			row.Variations = strings.Split(variations, ";")
		}
		for _, c := range strings.Split(counts, ";") {
			if c == "" {
				continue
			}
			n, err := strconv.Atoi(c)
			if err != nil {
				return nil, fmt.Errorf("malformed occurrence count %q: %w", c, err)
			}
			row.OccurrenceCounts = append(row.OccurrenceCounts, n)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return rows, nil
}

// boundaryComma finds the comma separating canonicalName from variations:
// the first comma not followed by a space, falling back to the first comma.
func boundaryComma(prefix string) int {
	for i := 0; i < len(prefix); i++ {
		if prefix[i] == ',' && (i+1 >= len(prefix) || prefix[i+1] != ' ') {
			return i
		}
	}
	return strings.Index(prefix, ",")
}
