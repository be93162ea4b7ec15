// Package completion wraps a language model behind a plain text-completion
// contract: prompt text in, raw continuation out.
package completion

import (
	"context"
)

// Completer returns the raw completion for prompt. The completion may start
// with an echo of the prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type Func func(ctx context.Context, prompt string) (string, error)

func (f Func) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Options bound the continuation requested from the model.
type Options struct {
	MinNewTokens      int `yaml:"min_new_tokens" json:"min_new_tokens"`
	MaxNewTokens      int `yaml:"max_new_tokens" json:"max_new_tokens"`
	NoRepeatNGramSize int `yaml:"no_repeat_ngram_size" json:"no_repeat_ngram_size"`
}

const (
	DefaultMinNewTokens      = 200
	DefaultMaxNewTokens      = 200
	DefaultNoRepeatNGramSize = 2
)

func DefaultOptions() Options {
	return Options{
		MinNewTokens:      DefaultMinNewTokens,
		MaxNewTokens:      DefaultMaxNewTokens,
		NoRepeatNGramSize: DefaultNoRepeatNGramSize,
	}
}

// withDefaults fills zero fields and keeps MinNewTokens <= MaxNewTokens.
func (o Options) withDefaults() Options {
	if o.MaxNewTokens <= 0 {
		o.MaxNewTokens = DefaultMaxNewTokens
	}
	if o.MinNewTokens <= 0 || o.MinNewTokens > o.MaxNewTokens {
		o.MinNewTokens = o.MaxNewTokens
	}
	if o.NoRepeatNGramSize < 0 {
		o.NoRepeatNGramSize = 0
	}
	return o
}
