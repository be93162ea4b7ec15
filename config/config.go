// Package config loads generator settings from a YAML file, a .env file and
// the process environment, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/tbxark/soliddialog/completion"
	"gopkg.in/yaml.v3"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

type Config struct {
	Provider   string           `yaml:"provider"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Ollama     OllamaConfig     `yaml:"ollama"`
	Generation GenerationConfig `yaml:"generation"`
	Cache      CacheConfig      `yaml:"cache"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	LogLevel   string           `yaml:"log_level"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

type OllamaConfig struct {
	Host  string `yaml:"host"`
	Model string `yaml:"model"`
}

type GenerationConfig struct {
	completion.Options `yaml:",inline"`
	TurnTimeout        time.Duration `yaml:"turn_timeout"`
	// HistoryTurns bounds the transcript in each prompt; 0 keeps all turns.
	HistoryTurns int `yaml:"history_turns"`
}

// CacheConfig sizes the completion cache. Size 0 disables it.
type CacheConfig struct {
	Size int           `yaml:"size"`
	TTL  time.Duration `yaml:"ttl"`
}

type CatalogConfig struct {
	Path string `yaml:"path"`
	// Overrides is an RFC 7386 merge patch applied on top of the catalog.
	Overrides string `yaml:"overrides"`
}

func Default() *Config {
	return &Config{
		Provider: ProviderOpenAI,
		OpenAI: OpenAIConfig{
			Model: "gpt-4o-mini",
		},
		Ollama: OllamaConfig{
			Host: completion.DefaultOllamaHost,
		},
		Generation: GenerationConfig{
			Options:     completion.DefaultOptions(),
			TurnTimeout: 2 * time.Minute,
		},
		Cache: CacheConfig{
			Size: 256,
			TTL:  time.Hour,
		},
		LogLevel: "info",
	}
}

// Load reads path over the defaults, then applies .env and environment
// overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
		slog.Debug("Loaded config file", "path", path)
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env", "err", err)
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment. lookup is os.LookupEnv
// outside tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set("SOLID_PROVIDER", &c.Provider)
	set("OPENAI_API_KEY", &c.OpenAI.APIKey)
	set("OPENAI_BASE_URL", &c.OpenAI.BaseURL)
	set("OPENAI_MODEL", &c.OpenAI.Model)
	set("OLLAMA_HOST", &c.Ollama.Host)
	set("OLLAMA_MODEL", &c.Ollama.Model)
	set("SOLID_LOG_LEVEL", &c.LogLevel)
}

func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Provider) {
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			errs = append(errs, errors.New("openai.api_key is required"))
		}
		if c.OpenAI.Model == "" {
			errs = append(errs, errors.New("openai.model is required"))
		}
	case ProviderOllama:
		if c.Ollama.Model == "" {
			errs = append(errs, errors.New("ollama.model is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q", c.Provider))
	}
	g := c.Generation
	if g.MaxNewTokens < 0 || g.MinNewTokens < 0 || g.NoRepeatNGramSize < 0 {
		errs = append(errs, errors.New("generation token settings must not be negative"))
	}
	if g.MinNewTokens > 0 && g.MaxNewTokens > 0 && g.MinNewTokens > g.MaxNewTokens {
		errs = append(errs, errors.New("generation.min_new_tokens exceeds max_new_tokens"))
	}
	if g.TurnTimeout < 0 || g.HistoryTurns < 0 {
		errs = append(errs, errors.New("generation.turn_timeout and history_turns must not be negative"))
	}
	if c.Cache.Size < 0 || c.Cache.TTL < 0 {
		errs = append(errs, errors.New("cache size and ttl must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
