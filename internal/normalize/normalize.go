// Package normalize holds the attribute rules applied to catalog values
// before they are shown to the text model.
package normalize

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"luki-produkttexte/internal/catalog"
)

// Gender relabels superfit children's shoes.
func Gender(brand, gender catalog.Cell) catalog.Cell {
	if gender.IsMissing() {
		return gender
	}
	if strings.ToLower(strings.TrimSpace(brand.String())) != "superfit" {
		return gender
	}
	switch strings.ToLower(strings.TrimSpace(gender.String())) {
	case "weiblich":
		return catalog.Text("Mädchen")
	case "männlich":
		return catalog.Text("Junge")
	}
	return gender
}

// ProductType maps the product type to its shop label. The source data
// spells "ancle boot" this way.
func ProductType(v catalog.Cell) catalog.Cell {
	if v.IsMissing() {
		return v
	}
	text := strings.TrimSpace(v.String())
	lower := strings.ToLower(text)
	if strings.Contains(lower, "sneaker") {
		return catalog.Text("Sneaker")
	}
	if lower == "ancle boot" {
		return catalog.Text("Stiefelette")
	}
	return textOrBlank(text)
}

var noClosure = []string{"schlupfschuh", "kein verschluss", "offen"}

// Closure suppresses "no closure" values and spells out combined closures.
func Closure(v catalog.Cell) catalog.Cell {
	if v.IsMissing() {
		return v
	}
	text := strings.ToLower(strings.TrimSpace(v.String()))
	for _, term := range noClosure {
		if strings.Contains(text, term) {
			return catalog.Blank()
		}
	}
	text = strings.ReplaceAll(text, "/", " zusätzlich ")
	return textOrBlank(upperFirst(text))
}

// SoleProfile keeps only a pronounced tread; everything else is dropped.
func SoleProfile(v catalog.Cell) catalog.Cell {
	if v.IsMissing() {
		return catalog.Missing()
	}
	if strings.ToLower(strings.TrimSpace(v.String())) == "stark ausgeprägtes profil" {
		return catalog.Text("Stark ausgeprägtes Profil")
	}
	return catalog.Missing()
}

const slipResistant = "rutschhemmend"

// SoleProperties drops the slip resistance claim for spring/summer seasons.
func SoleProperties(season, v catalog.Cell) catalog.Cell {
	if v.IsMissing() {
		return v
	}
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(season.String())), "FS") {
		return v
	}
	text := v.String()
	if !strings.Contains(text, slipResistant) {
		return textOrBlank(strings.TrimSpace(text))
	}
	sep := listSeparator(text)
	text = strings.ReplaceAll(text, slipResistant, "")
	return textOrBlank(joinListItems(text, sep))
}

// listSeparator is the separator the list is written with: "; " when its
// first separator is a semicolon, ", " otherwise.
func listSeparator(text string) string {
	if i := strings.IndexAny(text, ",;"); i >= 0 && text[i] == ';' {
		return "; "
	}
	return ", "
}

// joinListItems drops empty entries of a comma or semicolon separated list.
func joinListItems(text, sep string) string {
	parts := strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == ';' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func textOrBlank(s string) catalog.Cell {
	if s == "" {
		return catalog.Blank()
	}
	return catalog.Text(s)
}
