// Package soliddialog builds a ready dialogue generator from configuration.
package soliddialog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/tbxark/soliddialog/cache"
	"github.com/tbxark/soliddialog/catalog"
	"github.com/tbxark/soliddialog/combiner"
	"github.com/tbxark/soliddialog/completion"
	"github.com/tbxark/soliddialog/config"
	"github.com/tbxark/soliddialog/dialogue"
)

// Backend is the model a generator talks to. ChatModel is nil for the
// Ollama provider.
type Backend struct {
	Completer completion.Completer
	ChatModel model.ToolCallingChatModel
}

// New wires a generator for cfg. Extra options are applied after the ones
// derived from cfg.
func New(ctx context.Context, cfg *config.Config, opts ...dialogue.Option) (*dialogue.Generator, error) {
	backend, err := NewBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewWithBackend(cfg, backend, opts...)
}

// NewWithBackend wires a generator around an existing backend.
func NewWithBackend(cfg *config.Config, backend *Backend, opts ...dialogue.Option) (*dialogue.Generator, error) {
	cat, err := LoadCatalog(cfg.Catalog)
	if err != nil {
		return nil, err
	}
	completer := newCompleter(cfg, backend)

	combiners := make([]combiner.Combiner, 0, 3)
	if backend.ChatModel != nil {
		tool, err := combiner.NewToolBasedCombiner(backend.ChatModel)
		if err != nil {
			return nil, err
		}
		combiners = append(combiners, tool)
	}
	combiners = append(combiners, combiner.NewCompletionCombiner(completer), combiner.LocalCombiner{})

	base := []dialogue.Option{
		dialogue.WithCatalog(cat),
		dialogue.WithTurnTimeout(cfg.Generation.TurnTimeout),
	}
	if cfg.Generation.HistoryTurns > 0 {
		base = append(base, dialogue.WithTrimmer(dialogue.KeepLastNTrimmer{N: cfg.Generation.HistoryTurns}))
	}
	return dialogue.NewGenerator(completer, combiner.NewFailbackCombiner(combiners...), append(base, opts...)...)
}

func NewBackend(ctx context.Context, cfg *config.Config) (*Backend, error) {
	switch strings.ToLower(cfg.Provider) {
	case config.ProviderOpenAI:
		cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:  cfg.OpenAI.APIKey,
			Model:   cfg.OpenAI.Model,
			BaseURL: cfg.OpenAI.BaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("create openai chat model: %w", err)
		}
		return &Backend{
			Completer: completion.NewChatModelCompleter(cm, cfg.Generation.Options),
			ChatModel: cm,
		}, nil
	case config.ProviderOllama:
		oc, err := completion.NewOllamaCompleter(cfg.Ollama.Host, cfg.Ollama.Model, cfg.Generation.Options)
		if err != nil {
			return nil, err
		}
		return &Backend{Completer: oc}, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// LoadCatalog reads the configured catalog file, or the built-in catalog,
// and applies the configured overrides.
func LoadCatalog(cfg config.CatalogConfig) (catalog.Catalog, error) {
	cat := catalog.Default()
	if cfg.Path != "" {
		loaded, err := catalog.LoadFile(cfg.Path)
		if err != nil {
			return nil, err
		}
		cat = loaded
	}
	if strings.TrimSpace(cfg.Overrides) == "" {
		return cat, nil
	}
	merged, err := catalog.Merge(cat, []byte(cfg.Overrides))
	if err != nil {
		return nil, fmt.Errorf("apply catalog overrides: %w", err)
	}
	return merged, nil
}

// newCompleter decorates the backend shared by turn generation and the
// completion combiner. Cache hits skip the timeout.
func newCompleter(cfg *config.Config, backend *Backend) completion.Completer {
	return completion.Wrap(backend.Completer,
		completion.WithLogging(slog.Default()),
		completion.WithCache(newCompletionCache(cfg)),
		completion.WithTimeout(cfg.Generation.TurnTimeout),
	)
}

// newCompletionCache keys completions by provider and model so a shared
// backing cache never serves one model's output for another.
func newCompletionCache(cfg *config.Config) cache.Cache[string] {
	if cfg.Cache.Size <= 0 {
		return nil
	}
	modelName := cfg.OpenAI.Model
	if strings.EqualFold(cfg.Provider, config.ProviderOllama) {
		modelName = cfg.Ollama.Model
	}
	lru := cache.NewLRU[string](cfg.Cache.Size, cfg.Cache.TTL)
	return cache.NewNamespaced[string](lru, strings.ToLower(cfg.Provider)+"/"+modelName)
}
