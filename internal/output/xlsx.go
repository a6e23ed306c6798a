package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"luki-produkttexte/internal/session"
)

const (
	sheetName   = "Produkttexte"
	createdFmt  = "02.01.2006 15:04:05"
	failureHead = "Fehler"
)

// Columns is the header row of every export.
var Columns = []string{"Modell", "Produkttext", "Response_ID", "Created_UTC", "Model", "Prompt_Tokens", "Completion_Tokens"}

// FormatCreated renders a unix timestamp in loc. Zero means unknown.
func FormatCreated(created int64, loc *time.Location) string {
	if created == 0 {
		return ""
	}
	if loc == nil {
		loc = time.Local
	}
	return time.Unix(created, 0).In(loc).Format(createdFmt)
}

// WriteXLSX writes the table as a single sheet workbook. A Fehler column is
// appended only when the table holds failure markers.
func WriteXLSX(w io.Writer, table session.Table, loc *time.Location) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("Tabellenblatt anlegen fehlgeschlagen: %w", err)
	}
	withErrors := table.Failures() > 0
	header := make([]any, 0, len(Columns)+1)
	for _, c := range Columns {
		header = append(header, c)
	}
	if withErrors {
		header = append(header, failureHead)
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("Kopfzeile schreiben fehlgeschlagen: %w", err)
	}
	for i, r := range table {
		row := []any{
			r.Model,
			r.Text,
			r.ResponseID,
			FormatCreated(r.Created, loc),
			r.ServiceModel,
			r.PromptTokens,
			r.CompletionTokens,
		}
		if withErrors {
			row = append(row, r.Err)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("Zeile %d schreiben fehlgeschlagen: %w", i+1, err)
		}
	}
	_ = f.SetColWidth(sheetName, "B", "B", 80)
	return f.Write(w)
}

// Save writes the table to the next free export path in dir.
func Save(dir string, now time.Time, table session.Table, loc *time.Location) (string, error) {
	if err := EnsureDir(dir); err != nil {
		return "", fmt.Errorf("Ausgabeverzeichnis anlegen fehlgeschlagen: %w", err)
	}
	path, err := NextExportPath(dir, now)
	if err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(dir, ".produkttexte-*.xlsx")
	if err != nil {
		return "", fmt.Errorf("Export schreiben fehlgeschlagen: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := WriteXLSX(tmp, table, loc); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("Export schreiben fehlgeschlagen (%s): %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("Export schreiben fehlgeschlagen (%s): %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("Export schreiben fehlgeschlagen (%s): %w", filepath.Base(path), err)
	}
	return path, nil
}
