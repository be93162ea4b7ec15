package completion

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"
)

const DefaultOllamaHost = "http://localhost:11434"

// OllamaCompleter sends raw prompts to Ollama's generate endpoint, bypassing
// the model's chat template.
//
// Ollama has no minimum-length or n-gram blocking controls; MaxNewTokens maps
// to num_predict and a positive NoRepeatNGramSize enables a repeat penalty of
// OllamaRepeatPenalty over the last OllamaRepeatWindow tokens.
type OllamaCompleter struct {
	client *ollama.Client
	model  string
	opts   Options
}

const (
	OllamaRepeatPenalty = 1.3
	OllamaRepeatWindow  = 64
)

func NewOllamaCompleter(host, model string, opts Options) (*OllamaCompleter, error) {
	if host == "" {
		host = DefaultOllamaHost
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	if model == "" {
		return nil, fmt.Errorf("ollama model is required")
	}
	httpClient := &http.Client{Timeout: 5 * time.Minute}
	return &OllamaCompleter{
		client: ollama.NewClient(u, httpClient),
		model:  model,
		opts:   opts.withDefaults(),
	}, nil
}

func (o *OllamaCompleter) requestOptions() map[string]any {
	opts := map[string]any{
		"num_predict": o.opts.MaxNewTokens,
		"temperature": 0,
	}
	if o.opts.NoRepeatNGramSize > 0 {
		opts["repeat_penalty"] = OllamaRepeatPenalty
		opts["repeat_last_n"] = OllamaRepeatWindow
	}
	return opts
}

func (o *OllamaCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	stream := false
	req := &ollama.GenerateRequest{
		Model:   o.model,
		Prompt:  prompt,
		Raw:     true,
		Stream:  &stream,
		Options: o.requestOptions(),
	}
	var text strings.Builder
	err := o.client.Generate(ctx, req, func(gr ollama.GenerateResponse) error {
		text.WriteString(gr.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return prompt + text.String(), nil
}

var _ Completer = (*OllamaCompleter)(nil)
