package catalog

import "strings"

// Cell is a single catalog value. A Cell is either missing (empty spreadsheet
// cell or absent column), present but blank (whitespace only) or filled.
type Cell struct {
	value   string
	present bool
}

// Text returns a present cell, or a missing one when v is the empty string.
func Text(v string) Cell {
	if v == "" {
		return Cell{}
	}
	return Cell{value: v, present: true}
}

// Blank returns a present cell holding the empty string.
func Blank() Cell {
	return Cell{present: true}
}

func Missing() Cell {
	return Cell{}
}

func (c Cell) IsMissing() bool {
	return !c.present
}

func (c Cell) IsBlank() bool {
	return c.present && strings.TrimSpace(c.value) == ""
}

func (c Cell) IsFilled() bool {
	return c.present && strings.TrimSpace(c.value) != ""
}

func (c Cell) String() string {
	return c.value
}
