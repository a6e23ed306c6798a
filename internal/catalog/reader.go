package catalog

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/unicode/norm"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
)

// ParseError reports that a file could not be decoded as a catalog table.
type ParseError struct {
	Name string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("Fehler beim Einlesen (%s): %v", e.Name, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func DetectFormat(name string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return FormatCSV, true
	case ".xlsx":
		return FormatXLSX, true
	case ".xls":
		return FormatXLS, true
	default:
		return "", false
	}
}

func ReadFile(path string) (Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Table{}, &ParseError{Name: filepath.Base(path), Err: err}
	}
	return Read(filepath.Base(path), bytes.NewReader(raw))
}

// Read decodes a CSV file or the first sheet of an xlsx workbook. The first
// non-empty line is the header.
func Read(name string, r io.Reader) (Table, error) {
	format, ok := DetectFormat(name)
	if !ok {
		return Table{}, &ParseError{Name: name, Err: fmt.Errorf("Dateityp nicht unterstützt (erlaubt: .csv, .xlsx)")}
	}
	var (
		records [][]string
		err     error
	)
	switch format {
	case FormatCSV:
		records, err = readCSV(r)
	case FormatXLSX:
		records, err = readXLSX(r)
	case FormatXLS:
		err = fmt.Errorf("altes Excel-Format (.xls) kann nicht gelesen werden, bitte als .xlsx speichern")
	}
	if err != nil {
		return Table{}, &ParseError{Name: name, Err: err}
	}
	return buildTable(name, records)
}

func readCSV(r io.Reader) ([][]string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimPrefix(raw, []byte("\ufeff"))
	cr := csv.NewReader(bytes.NewReader(raw))
	cr.Comma = sniffDelimiter(raw)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr.ReadAll()
}

// sniffDelimiter picks ';' for German spreadsheet exports and ',' otherwise.
func sniffDelimiter(raw []byte) rune {
	line := raw
	if i := bytes.IndexByte(raw, '\n'); i >= 0 {
		line = raw[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("Arbeitsmappe enthält keine Tabellenblätter")
	}
	return f.GetRows(sheets[0])
}

func buildTable(name string, records [][]string) (Table, error) {
	start := -1
	for i, rec := range records {
		if !emptyRecord(rec) {
			start = i
			break
		}
	}
	if start < 0 {
		return Table{}, &ParseError{Name: name, Err: fmt.Errorf("keine Kopfzeile gefunden")}
	}

	header := make([]string, len(records[start]))
	seen := map[string]struct{}{}
	columns := make([]string, 0, len(header))
	for i, h := range records[start] {
		h = strings.TrimSpace(norm.NFC.String(h))
		header[i] = h
		if h == "" {
			continue
		}
		if _, dup := seen[h]; dup {
			header[i] = ""
			continue
		}
		seen[h] = struct{}{}
		columns = append(columns, h)
	}

	t := Table{Name: name, Columns: columns}
	for _, rec := range records[start+1:] {
		if emptyRecord(rec) {
			continue
		}
		values := make(map[string]string, len(columns))
		for i, col := range header {
			if col == "" || i >= len(rec) {
				continue
			}
			values[col] = norm.NFC.String(rec[i])
		}
		t.Rows = append(t.Rows, NewRow(len(t.Rows), values))
	}
	return t, nil
}

func emptyRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
