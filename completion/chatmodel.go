package completion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// DefaultContinuationSystemPrompt asks a chat model to behave like a plain
// text-completion model.
const DefaultContinuationSystemPrompt = `You continue documents. The user message is the beginning of a document that ends with a speaker label.
Write only the text that follows the last speaker label: one turn, plain prose, no new speaker labels, no commentary.`

// ChatModelCompleter drives an eino chat model as a text-completion service.
// The returned completion is the prompt followed by the model's reply, the
// shape a decoder-only model produces.
type ChatModelCompleter struct {
	chatModel    model.BaseChatModel
	opts         Options
	systemPrompt string
}

type ChatModelOption func(*ChatModelCompleter)

func WithSystemPrompt(systemPrompt string) ChatModelOption {
	return func(c *ChatModelCompleter) {
		c.systemPrompt = systemPrompt
	}
}

func NewChatModelCompleter(chatModel model.BaseChatModel, opts Options, options ...ChatModelOption) *ChatModelCompleter {
	c := &ChatModelCompleter{
		chatModel:    chatModel,
		opts:         opts.withDefaults(),
		systemPrompt: DefaultContinuationSystemPrompt,
	}
	for _, o := range options {
		if o != nil {
			o(c)
		}
	}
	return c
}

func (c *ChatModelCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	messages := make([]*schema.Message, 0, 2)
	if c.systemPrompt != "" {
		messages = append(messages, schema.SystemMessage(c.systemPrompt))
	}
	messages = append(messages, schema.UserMessage(prompt))

	resp, err := c.chatModel.Generate(ctx, messages, model.WithMaxTokens(c.opts.MaxNewTokens))
	if err != nil {
		return "", fmt.Errorf("LLM call failed: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("LLM call failed: empty response")
	}
	slog.Debug("chat completion", "prompt_len", len(prompt), "content_len", len(resp.Content))
	return prompt + " " + resp.Content, nil
}

var _ Completer = (*ChatModelCompleter)(nil)
