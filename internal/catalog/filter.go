package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNothingToDo is returned by Select when every row already carries a product text.
var ErrNothingToDo = errors.New("alle Zeilen haben bereits einen Produkttext")

// SchemaError lists the required columns missing from an input table.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("Fehlende Spalten: %s", strings.Join(e.Missing, ", "))
}

// Selection splits a table into the rows that still need a text and the rows
// that are excluded from generation.
type Selection struct {
	Pending []Row
	Done    []Row
	Invalid []Row
}

func (s Selection) Skipped() int {
	return len(s.Done) + len(s.Invalid)
}

func Validate(t Table) error {
	var missing []string
	for _, col := range RequiredColumns {
		if !t.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Missing: missing}
	}
	return nil
}

// Select validates the table and returns the rows whose Produkttext is
// missing or blank. Rows without a model number cannot be correlated with a
// result and are reported as invalid.
func Select(t Table) (Selection, error) {
	if err := Validate(t); err != nil {
		return Selection{}, err
	}
	sel := Selection{}
	for _, row := range t.Rows {
		switch {
		case row.Get(ColProductText).IsFilled():
			sel.Done = append(sel.Done, row)
		case row.ModelNo() == "":
			sel.Invalid = append(sel.Invalid, row)
		default:
			sel.Pending = append(sel.Pending, row)
		}
	}
	if len(sel.Pending) == 0 {
		return sel, ErrNothingToDo
	}
	return sel, nil
}
