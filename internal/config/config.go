package config

import (
	"strings"
	"time"

	"luki-produkttexte/internal/prompt"
)

const (
	RowErrorsAbort    = "abort"
	RowErrorsContinue = "continue"
)

type Config struct {
	Provider          string                    `yaml:"provider"`
	APIKeyEnv         string                    `yaml:"api_key_env"`
	PromptFile        string                    `yaml:"prompt_file"`
	MaxRetries        int                       `yaml:"max_retries"`
	RequestTimeoutSec int                       `yaml:"request_timeout_sec"`
	RequestsPerMinute int                       `yaml:"requests_per_minute"`
	RowErrors         string                    `yaml:"row_errors"`
	Timezone          string                    `yaml:"timezone"`
	Output            OutputConfig              `yaml:"output"`
	Session           SessionConfig             `yaml:"session"`
	Providers         map[string]ProviderConfig `yaml:"providers"`
}

type OutputConfig struct {
	Dir string `yaml:"dir"`
}

type SessionConfig struct {
	Path string `yaml:"path"`
	Key  string `yaml:"key"`
}

type ProviderConfig struct {
	BaseURL      string  `yaml:"base_url"`
	Model        string  `yaml:"model"`
	SystemPrompt string  `yaml:"system_prompt"`
	Temperature  float64 `yaml:"temperature"`
	MaxTokens    int     `yaml:"max_tokens"`
}

type Paths struct {
	HomeDir            string
	RootDir            string
	ConfigPath         string
	PromptPath         string
	EnvPath            string
	EnvExample         string
	ResolvedPromptPath string
	ResolvedSession    string
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Provider) == "" {
		c.Provider = "openai"
	}
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if strings.TrimSpace(c.APIKeyEnv) == "" {
		c.APIKeyEnv = defaultKeyEnv(c.Provider)
	}
	if strings.TrimSpace(c.PromptFile) == "" {
		c.PromptFile = "~/.luki-produkttexte/prompt.md"
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RequestTimeoutSec <= 0 {
		c.RequestTimeoutSec = 120
	}
	if c.RequestsPerMinute < 0 {
		c.RequestsPerMinute = 0
	}
	switch strings.ToLower(strings.TrimSpace(c.RowErrors)) {
	case RowErrorsContinue:
		c.RowErrors = RowErrorsContinue
	default:
		c.RowErrors = RowErrorsAbort
	}
	if strings.TrimSpace(c.Timezone) == "" {
		c.Timezone = "Local"
	}
	if strings.TrimSpace(c.Output.Dir) == "" {
		c.Output.Dir = "."
	}
	if strings.TrimSpace(c.Session.Path) == "" {
		c.Session.Path = "~/.luki-produkttexte/session.db"
	}
	if strings.TrimSpace(c.Session.Key) == "" {
		c.Session.Key = "default"
	}
	if c.Providers == nil {
		c.Providers = map[string]ProviderConfig{}
	}
	defaults := map[string]ProviderConfig{
		"openai":   {BaseURL: "https://api.openai.com", Model: "gpt-4.1-mini"},
		"deepseek": {BaseURL: "https://api.deepseek.com", Model: "deepseek-chat"},
	}
	for name, def := range defaults {
		p := c.Providers[name]
		if strings.TrimSpace(p.BaseURL) == "" {
			p.BaseURL = def.BaseURL
		}
		if strings.TrimSpace(p.Model) == "" {
			p.Model = def.Model
		}
		c.Providers[name] = p
	}
	for name, p := range c.Providers {
		if strings.TrimSpace(p.SystemPrompt) == "" {
			p.SystemPrompt = prompt.SystemMessage
		}
		if p.Temperature <= 0 {
			p.Temperature = 0.5
		}
		if p.MaxTokens <= 0 {
			p.MaxTokens = 1000
		}
		c.Providers[name] = p
	}
}

func defaultKeyEnv(provider string) string {
	if provider == "deepseek" {
		return "DEEPSEEK_API_KEY"
	}
	return "OPENAI_API_KEY"
}

// Location resolves the time zone used for Created_UTC in exports.
func (c *Config) Location() *time.Location {
	tz := strings.TrimSpace(c.Timezone)
	if tz == "" || strings.EqualFold(tz, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Local
	}
	return loc
}

// SetProvider switches the provider and follows it with the default key
// variable unless a custom one was configured.
func (c *Config) SetProvider(name string) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == c.Provider {
		return
	}
	if c.APIKeyEnv == defaultKeyEnv(c.Provider) {
		c.APIKeyEnv = defaultKeyEnv(name)
	}
	c.Provider = name
}
