// Package config defines all configuration structures for the Ana
// sales-assistant bot.
package config

import "time"

// Config holds the full bot configuration.
type Config struct {
	// Name is the assistant persona name used in replies (e.g. "Ana").
	Name string `yaml:"name"`

	// Company is the organization the assistant represents.
	Company string `yaml:"company"`

	// Timezone is the default timezone for date rendering (e.g. "America/Fortaleza").
	Timezone string `yaml:"timezone"`

	// Language is the reply language (e.g. "pt-BR").
	Language string `yaml:"language"`

	// HandoffContact is shown in fallback replies when the model fails.
	HandoffContact string `yaml:"handoff_contact"`

	// Logging configures the slog handler.
	Logging LoggingConfig `yaml:"logging"`

	// Server configures the HTTP gateway.
	Server ServerConfig `yaml:"server"`

	// Knowledge configures the knowledge directory and reload behavior.
	Knowledge KnowledgeConfig `yaml:"knowledge"`

	// LLM configures the responder endpoint.
	LLM LLMConfig `yaml:"llm"`

	// WhatsApp configures the outbound message provider.
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`

	// CRM configures the RD Station side channel.
	CRM CRMConfig `yaml:"crm"`

	// Pipeline configures the inbound processing pipeline.
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `yaml:"level"`

	// Format is "json" or "text".
	Format string `yaml:"format"`
}

// ServerConfig configures the HTTP gateway.
type ServerConfig struct {
	// Address is the listen address (e.g. ":8080").
	Address string `yaml:"address"`

	// AuthToken, when non-empty, requires Authorization: Bearer <token>
	// on every route except /health.
	AuthToken string `yaml:"auth_token"`
}

// KnowledgeConfig configures the on-disk knowledge base.
type KnowledgeConfig struct {
	// Dir is the root of the knowledge directory tree.
	Dir string `yaml:"dir"`

	// CatalogFile is the basename of the product catalog JSON file.
	CatalogFile string `yaml:"catalog_file"`

	// MaxCorpusBytes caps the concatenated corpus size.
	MaxCorpusBytes int `yaml:"max_corpus_bytes"`

	// PriorityKeywords mark files whose content is placed first in the
	// corpus and never truncated ahead of regular content.
	PriorityKeywords []string `yaml:"priority_keywords"`

	// ReloadInterval is how often the watcher checks the directory
	// signature for changes.
	ReloadInterval time.Duration `yaml:"reload_interval"`
}

// LLMConfig configures the OpenAI-compatible responder.
type LLMConfig struct {
	// BaseURL is the API endpoint (default "https://api.openai.com/v1").
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates against the provider. Resolved via
	// keyring -> env -> config (see loader.go).
	APIKey string `yaml:"api_key"`

	// Model is the chat model (e.g. "gpt-4o-mini").
	Model string `yaml:"model"`

	// Temperature for completions.
	Temperature float64 `yaml:"temperature"`

	// MaxTokens per reply.
	MaxTokens int `yaml:"max_tokens"`

	// Timeout bounds every responder call; on expiry the pipeline uses
	// the fallback reply.
	Timeout time.Duration `yaml:"timeout"`

	// DryRun disables the remote call and returns a deterministic
	// canned reply. Useful for local testing without credentials.
	DryRun bool `yaml:"dry_run"`
}

// WhatsAppConfig configures the Evolution-style message provider.
type WhatsAppConfig struct {
	// BaseURL is the provider API root.
	BaseURL string `yaml:"base_url"`

	// Instance is the provider instance name.
	Instance string `yaml:"instance"`

	// APIKey authenticates sendText calls.
	APIKey string `yaml:"api_key"`

	// SuppressSelfEcho drops inbound events flagged fromMe.
	SuppressSelfEcho bool `yaml:"suppress_self_echo"`
}

// CRMConfig configures the RD Station client.
type CRMConfig struct {
	// BaseURL is the RD Station API root.
	BaseURL string `yaml:"base_url"`

	// AccessToken is the bearer token. Empty disables the CRM side channel.
	AccessToken string `yaml:"access_token"`

	// Timeout bounds each CRM call.
	Timeout time.Duration `yaml:"timeout"`
}

// PipelineConfig configures dedup and worker behavior.
type PipelineConfig struct {
	// DedupTTL is the echo/redelivery suppression window.
	DedupTTL time.Duration `yaml:"dedup_ttl"`

	// Workers is the size of the background worker pool.
	Workers int `yaml:"workers"`

	// HistoryLimit caps per-contact chat history entries.
	HistoryLimit int `yaml:"history_limit"`
}

// DefaultConfig returns a Config populated with sane defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:           "Ana",
		Company:        "CENAT",
		Timezone:       "America/Fortaleza",
		Language:       "pt-BR",
		HandoffContact: "",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Server: ServerConfig{
			Address: ":8080",
		},
		Knowledge: KnowledgeConfig{
			Dir:              "./data",
			CatalogFile:      "catalog.json",
			MaxCorpusBytes:   120_000,
			PriorityKeywords: []string{"prioridade", "priority"},
			ReloadInterval:   30 * time.Second,
		},
		LLM: LLMConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			Temperature: 0.2,
			MaxTokens:   220,
			Timeout:     25 * time.Second,
		},
		WhatsApp: WhatsAppConfig{
			SuppressSelfEcho: true,
		},
		CRM: CRMConfig{
			BaseURL: "https://api.rd.services",
			Timeout: 15 * time.Second,
		},
		Pipeline: PipelineConfig{
			DedupTTL:     12 * time.Second,
			Workers:      8,
			HistoryLimit: 12,
		},
	}
}
