package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"luki-produkttexte/internal/catalog"
)

// Resolve turns a user supplied path into the absolute path of one catalog
// file. Directories are not scanned.
func Resolve(cwd, in string) (string, error) {
	in = strings.TrimSpace(in)
	if in == "" {
		return "", fmt.Errorf("keine Eingabedatei angegeben")
	}
	if !filepath.IsAbs(in) && cwd != "" {
		in = filepath.Join(cwd, in)
	}
	st, err := os.Stat(in)
	if err != nil {
		return "", fmt.Errorf("Eingabedatei ungültig (%s): %w", in, err)
	}
	if st.IsDir() {
		hint := ""
		if files := Candidates(in); len(files) > 0 {
			hint = fmt.Sprintf(", gefunden: %s", strings.Join(files, ", "))
		}
		return "", fmt.Errorf("Eingabe ist ein Verzeichnis, bitte eine Datei angeben (%s)%s", in, hint)
	}
	if _, ok := catalog.DetectFormat(in); !ok {
		return "", fmt.Errorf("Dateityp nicht unterstützt (erlaubt: .csv, .xlsx): %s", in)
	}
	return in, nil
}

// Candidates lists the catalog files directly inside dir by name. Hidden
// files and spreadsheet lock files are left out.
func Candidates(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	out := []string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
			continue
		}
		if f, ok := catalog.DetectFormat(name); ok && f != catalog.FormatXLS {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
