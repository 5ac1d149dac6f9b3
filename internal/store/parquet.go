package store

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
)

// HeaderRow is the Row value of the records that carry column labels.
const HeaderRow = -1

// CellRecord is the Parquet schema of an exported table: one record per
// cell, plus one HeaderRow record per column.
type CellRecord struct {
	Row    int64  `parquet:"row"`
	Col    int32  `parquet:"col"`
	Column string `parquet:"column"`
	Value  string `parquet:"value"`
}

// Sheet is a rendered table: column labels and the text of each row.
type Sheet struct {
	Columns []string
	Rows    [][]string
}

// ParquetExporter writes rendered tables to Parquet files under Dir.
type ParquetExporter struct {
	Dir string
	now func() time.Time
}

// NewParquetExporter creates an exporter rooted at dir.
func NewParquetExporter(dir string) *ParquetExporter {
	return &ParquetExporter{Dir: dir, now: time.Now}
}

// Export writes sheet and returns the file path. The file is named
// <name>-<YYYYMMDD-HHMMSS>.parquet.
func (e *ParquetExporter) Export(name string, sheet Sheet) (string, error) {
	path := e.exportPath(name, e.now())
	if err := writeParquetFile(path, sheetRecords(sheet)); err != nil {
		return "", fmt.Errorf("writing export %s: %w", path, err)
	}
	return path, nil
}

// exportPath returns the filesystem path for an export.
// Layout: <Dir>/<name>-<YYYYMMDD-HHMMSS>.parquet
func (e *ParquetExporter) exportPath(name string, t time.Time) string {
	name = strings.TrimSuffix(filepath.Base(name), ".parquet")
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "export"
	}
	return filepath.Join(e.Dir, name+"-"+t.Format("20060102-150405")+".parquet")
}

// ReadExport reads a file written by Export back into a Sheet.
func ReadExport(path string) (Sheet, error) {
	records, err := readParquetFile[CellRecord](path)
	if err != nil {
		return Sheet{}, fmt.Errorf("reading export %s: %w", path, err)
	}
	return recordsSheet(records), nil
}

func sheetRecords(sheet Sheet) []CellRecord {
	records := make([]CellRecord, 0, len(sheet.Columns)*(len(sheet.Rows)+1))
	for c, label := range sheet.Columns {
		records = append(records, CellRecord{Row: HeaderRow, Col: int32(c), Column: label, Value: label})
	}
	for r, row := range sheet.Rows {
		for c, value := range row {
			if c >= len(sheet.Columns) {
				break
			}
			records = append(records, CellRecord{Row: int64(r), Col: int32(c), Column: sheet.Columns[c], Value: value})
		}
	}
	return records
}

func recordsSheet(records []CellRecord) Sheet {
	slices.SortStableFunc(records, func(a, b CellRecord) int {
		if a.Row != b.Row {
			if a.Row < b.Row {
				return -1
			}
			return 1
		}
		return int(a.Col) - int(b.Col)
	})

	var sheet Sheet
	for _, rec := range records {
		if rec.Row == HeaderRow {
			sheet.Columns = append(sheet.Columns, rec.Column)
		}
	}
	for _, rec := range records {
		if rec.Row == HeaderRow {
			continue
		}
		for int64(len(sheet.Rows)) <= rec.Row {
			sheet.Rows = append(sheet.Rows, make([]string, len(sheet.Columns)))
		}
		if int(rec.Col) < len(sheet.Columns) {
			sheet.Rows[rec.Row][rec.Col] = rec.Value
		}
	}
	return sheet
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
