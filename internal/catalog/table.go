package catalog

import "strings"

// Column names of the product catalog export. Names are matched exactly.
const (
	ColBrand            = "Marke"
	ColGroup            = "Gruppe"
	ColSeason           = "Saison"
	ColModelNo          = "Modellnr"
	ColGroupDescription = "Gruppenbeschreibung"
	ColModelDescription = "Modellbeschreibung"
	ColProductText      = "Produkttext"
	ColGender           = "Geschlecht"
	ColProductType      = "Produkttyp OS"
	ColClosure          = "Verschluss"
	ColShoeWidth        = "Schuhweite"
	ColSoleProperties   = "Laufsohle Eigenschaften"
	ColSoleProfile      = "Profil Laufsohle"
	ColSustainability   = "Nachhaltigkeit"
)

var RequiredColumns = []string{
	ColBrand,
	ColGroup,
	ColSeason,
	ColModelNo,
	ColGroupDescription,
	ColModelDescription,
	ColProductText,
	"Selling Point 1",
	"Selling Point 2",
	"Selling Point 3",
	"Selling Point 4",
	"Selling Point 5",
	ColGender,
	"Unisex",
	"Kategorie",
	ColProductType,
	ColClosure,
	ColShoeWidth,
	"Membrane",
	ColSoleProperties,
	"Laufsohle",
	ColSoleProfile,
	"Absatzart",
	"Absatzhöhe",
	"Form Schuhspitze",
	ColSustainability,
	"Barfussschuh",
	"Wechselfußbett",
	"Decksohle",
	"Futtermaterial",
	"Futter Detail",
	"Zertifikate",
	"Leuchtendes Motiv",
	"Non-marking Sohle",
	"Wasserbeständig",
	"Made in Europe",
}

// Table is one decoded catalog sheet. Row order is the input order.
type Table struct {
	Name    string
	Columns []string
	Rows    []Row
}

// Row maps column header to cell. Columns absent from the table read as Missing.
type Row struct {
	Index  int
	values map[string]Cell
}

func NewRow(index int, values map[string]string) Row {
	r := Row{Index: index, values: make(map[string]Cell, len(values))}
	for k, v := range values {
		r.values[k] = Text(v)
	}
	return r
}

func (r Row) Get(column string) Cell {
	if r.values == nil {
		return Cell{}
	}
	return r.values[column]
}

func (r Row) ModelNo() string {
	return strings.TrimSpace(r.Get(ColModelNo).String())
}

func (t Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}
