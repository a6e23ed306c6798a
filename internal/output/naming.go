package output

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const exportPrefix = "Produkttexte_"

func EnsureDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("Ausgabeverzeichnis ist leer")
	}
	return os.MkdirAll(dir, 0o755)
}

// ExportName is the file name of an export made at now.
func ExportName(now time.Time) string {
	return exportPrefix + now.Format("20060102") + ".xlsx"
}

// NextExportPath returns Produkttexte_<YYYYMMDD>.xlsx inside dir, or the first
// free Produkttexte_<YYYYMMDD>_<n>.xlsx when that name is already taken.
func NextExportPath(dir string, now time.Time) (string, error) {
	base := filepath.Join(dir, ExportName(now))
	if !exists(base) {
		return base, nil
	}
	stamp := now.Format("20060102")
	for i := 2; i < 1000; i++ {
		p := filepath.Join(dir, fmt.Sprintf("%s%s_%d.xlsx", exportPrefix, stamp, i))
		if !exists(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("kein freier Dateiname für den Export gefunden")
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
