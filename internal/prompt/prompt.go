package prompt

import (
	"strings"

	"luki-produkttexte/internal/catalog"
	"luki-produkttexte/internal/normalize"
)

// SystemMessage is sent as the system role of every completion request.
const SystemMessage = "Du bist ein erfahrener Werbetexter für Schuhe."

// DefaultInstruction is the copywriting brief placed in front of every row.
const DefaultInstruction = "Du bist ein erfahrener Werbetexter für Schuhe. " +
	"Formuliere markante Teile der Modellbeschreibung und der Gruppenbeschreibung neu " +
	"um den Charakter des Schuhs hervorzuheben. Erwähne Produktname und Produkttyp im ersten Satz. " +
	"Ergänze den Text um relevante Attribute, damit er informativ, emotional ansprechend wirkt. " +
	"Achte auf eine natürliche, menschlich klingende Sprache und eine SEO-optimierte " +
	"Formulierung. Vermeide Aufzählungen, Wortwiederholungen und übermäßig werbliche Floskeln. " +
	"Halte die Textlänge zwischen 350-400 Zeichen, erwähne nie das Wort Leisten. " +
	"Wenn möglich, erwähne die Laufsohleneigenschaften und die Aspekte der Nachhaltigkeit (wenn befüllt) in einem Satz. " +
	"Beachte korrekte Rechtschreibung und flüssigen Satzbau. Leistenname immer in Großbuchstaben. " +
	"Hier ein Beispieltext: Ganz schön raffiniert, bewegt man sich mit der Sandale MOVE durch den Sommer. " +
	"Dezente Schmuckelemente an den Riemenenden, in Kombination mit dem naturgemilltem Nappaleder sorgen bei " +
	"dem legero Schuh für einen feinen und modernen Look. Die besonders weiche, flexible und superleichte PU-Sohle " +
	"mit dem markanten Profil macht MOVE so luftig und flexibel. Damit stellt sich das Sommergefühl ganz leicht ein. "

type Attribute struct {
	Label string
	Value string
}

// Attributes resolves the labelled attributes of a row in fixed order,
// leaving out every value that is missing or blank.
func Attributes(row catalog.Row) []Attribute {
	candidates := []struct {
		label string
		cell  catalog.Cell
	}{
		{"Produktname", row.Get(catalog.ColGroup)},
		{"Modellbeschreibung", row.Get(catalog.ColModelDescription)},
		{"Geschlecht", normalize.Gender(row.Get(catalog.ColBrand), row.Get(catalog.ColGender))},
		{"Produkttyp", normalize.ProductType(row.Get(catalog.ColProductType))},
		{"Verschluss", normalize.Closure(row.Get(catalog.ColClosure))},
		{"Schuhweite", row.Get(catalog.ColShoeWidth)},
		{"Laufsohle Eigenschaften", normalize.SoleProperties(row.Get(catalog.ColSeason), row.Get(catalog.ColSoleProperties))},
		{"Nachhaltigkeit", row.Get(catalog.ColSustainability)},
	}
	out := make([]Attribute, 0, len(candidates))
	for _, c := range candidates {
		if !c.cell.IsFilled() {
			continue
		}
		out = append(out, Attribute{Label: c.label, Value: c.cell.String()})
	}
	return out
}

func FormatAttributes(attrs []Attribute) string {
	parts := make([]string, 0, len(attrs))
	for _, a := range attrs {
		parts = append(parts, a.Label+": "+a.Value)
	}
	return strings.Join(parts, ", ")
}

// Build joins the instruction, the raw group description and the attribute
// listing. Values are inserted verbatim.
func Build(instruction string, row catalog.Row) string {
	if strings.TrimSpace(instruction) == "" {
		instruction = DefaultInstruction
	}
	var b strings.Builder
	b.WriteString(instruction)
	b.WriteString("\nGruppenbeschreibung::\n")
	b.WriteString(row.Get(catalog.ColGroupDescription).String())
	b.WriteString("\nAttribute:\n")
	b.WriteString(FormatAttributes(Attributes(row)))
	return b.String()
}
