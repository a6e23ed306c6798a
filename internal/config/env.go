package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func LoadEnvFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := map[string]string{}
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		i := strings.Index(line, "=")
		if i <= 0 {
			continue
		}
		k := strings.TrimSpace(line[:i])
		v := strings.TrimSpace(line[i+1:])
		v = strings.Trim(v, "\"'")
		if k != "" {
			out[k] = v
		}
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf(".env lesen fehlgeschlagen: %w", err)
	}
	return out, nil
}

func UpsertEnvVar(path, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("env-Schlüssel ist leer")
	}
	value = strings.TrimSpace(value)
	lines := make([]string, 0, 8)
	if raw, err := os.ReadFile(path); err == nil {
		text := strings.ReplaceAll(string(raw), "\r\n", "\n")
		lines = strings.Split(text, "\n")
	} else if !os.IsNotExist(err) {
		return fmt.Errorf(".env lesen fehlgeschlagen: %w", err)
	}

	found := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		idx := strings.Index(trimmed, "=")
		if idx <= 0 {
			continue
		}
		k := strings.TrimSpace(trimmed[:idx])
		if k != key {
			continue
		}
		lines[i] = fmt.Sprintf("%s=%s", key, value)
		found = true
	}
	if !found {
		lines = append(lines, fmt.Sprintf("%s=%s", key, value))
	}
	out := strings.Join(lines, "\n")
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf(".env-Verzeichnis anlegen fehlgeschlagen: %w", err)
	}
	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		return fmt.Errorf(".env schreiben fehlgeschlagen: %w", err)
	}
	return nil
}

// ResolveAPIKey reads keyName from the .env file and falls back to the
// process environment.
func ResolveAPIKey(envPath, keyName string) (string, error) {
	keyName = strings.TrimSpace(keyName)
	if keyName == "" {
		return "", fmt.Errorf("api_key_env ist leer")
	}
	if envMap, err := LoadEnvFile(envPath); err == nil {
		if key := strings.TrimSpace(envMap[keyName]); key != "" {
			return key, nil
		}
	}
	if key := strings.TrimSpace(os.Getenv(keyName)); key != "" {
		return key, nil
	}
	return "", fmt.Errorf("API-Key fehlt (%s)\nAusführen: luki-produkttexte set key <api_key>", keyName)
}
