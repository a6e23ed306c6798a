package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"luki-produkttexte/internal/prompt"
)

//go:embed default.yaml
var embeddedDefaultConfig []byte

//go:embed default_env.example
var embeddedEnvExample []byte

func Load(pathArg, cwd string) (*Config, *Paths, error) {
	paths, err := resolvePaths(pathArg)
	if err != nil {
		return nil, nil, err
	}
	if err := ensureBootstrap(paths); err != nil {
		return nil, nil, err
	}

	raw, err := os.ReadFile(paths.ConfigPath)
	if err != nil {
		return nil, nil, fmt.Errorf("Konfiguration lesen fehlgeschlagen (%s): %w", paths.ConfigPath, err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, nil, fmt.Errorf("Konfiguration fehlerhaft (%s): %w", paths.ConfigPath, err)
	}
	cfg.applyDefaults()

	paths.ResolvedPromptPath = expandPath(cfg.PromptFile, paths.HomeDir, cwd)
	paths.ResolvedSession = expandPath(cfg.Session.Path, paths.HomeDir, cwd)
	return cfg, paths, nil
}

func resolvePaths(configArg string) (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("Benutzerverzeichnis nicht lesbar: %w", err)
	}
	root := filepath.Join(home, ".luki-produkttexte")
	configPath := filepath.Join(root, "config.yaml")
	if strings.TrimSpace(configArg) != "" {
		configPath = expandPath(configArg, home, "")
	}

	return &Paths{
		HomeDir:    home,
		RootDir:    root,
		ConfigPath: configPath,
		PromptPath: filepath.Join(root, "prompt.md"),
		EnvPath:    filepath.Join(root, ".env"),
		EnvExample: filepath.Join(root, ".env.example"),
	}, nil
}

func ensureBootstrap(paths *Paths) error {
	if err := os.MkdirAll(filepath.Dir(paths.ConfigPath), 0o755); err != nil {
		return fmt.Errorf("Konfigurationsverzeichnis anlegen fehlgeschlagen: %w", err)
	}
	if err := os.MkdirAll(paths.RootDir, 0o755); err != nil {
		return fmt.Errorf("Konfigurationsverzeichnis anlegen fehlgeschlagen: %w", err)
	}
	if err := ensureFile(paths.ConfigPath, embeddedDefaultConfig, 0o644); err != nil {
		return err
	}
	if err := ensureFile(paths.EnvExample, embeddedEnvExample, 0o644); err != nil {
		return err
	}
	return ensureFile(paths.PromptPath, []byte(prompt.DefaultInstruction), 0o644)
}

func ensureFile(path string, data []byte, mode os.FileMode) error {
	if st, err := os.Stat(path); err == nil && !st.IsDir() {
		return nil
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		return fmt.Errorf("Standarddatei schreiben fehlgeschlagen (%s): %w", path, err)
	}
	return nil
}

func expandPath(v, home, cwd string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return v
	}
	if strings.HasPrefix(v, "~/") {
		return filepath.Join(home, v[2:])
	}
	if filepath.IsAbs(v) {
		return v
	}
	if strings.TrimSpace(cwd) != "" {
		return filepath.Join(cwd, v)
	}
	return v
}

// ReadPrompt returns the instruction template. A missing file falls back to
// the built-in template; an unreadable one is an error.
func ReadPrompt(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return prompt.DefaultInstruction, nil
	}
	if err != nil {
		return "", fmt.Errorf("Prompt-Datei lesen fehlgeschlagen (%s): %w", path, err)
	}
	text := strings.TrimRight(string(raw), "\n")
	if strings.TrimSpace(text) == "" {
		return prompt.DefaultInstruction, nil
	}
	return text, nil
}
