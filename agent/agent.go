// Package agent exposes the dialogue generator as an eino ADK agent. The last
// input message carries a JSON job; the agent answers with one event per
// generated utterance and a final message holding the result JSON.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/soliddialog/dialogue"
	"github.com/tbxark/soliddialog/types"
)

var _ adk.Agent = (*Agent)(nil)

var ErrNoInput = errors.New("no messages in input")

type Generator interface {
	GenerateDialogue(ctx context.Context, req *dialogue.Request) (*types.Result, error)
}

type Agent struct {
	name        string
	description string
	gen         Generator
	streamTurns bool
}

type Option func(*Agent)

// WithTurnEvents sends every utterance as its own event before the result.
func WithTurnEvents(enabled bool) Option {
	return func(a *Agent) {
		a.streamTurns = enabled
	}
}

func NewAgent(name, description string, gen Generator, opts ...Option) *Agent {
	a := &Agent{
		name:        name,
		description: description,
		gen:         gen,
		streamTurns: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

func (a *Agent) Name(ctx context.Context) string {
	return a.name
}

func (a *Agent) Description(ctx context.Context) string {
	return a.description
}

func (a *Agent) Run(ctx context.Context, input *adk.AgentInput, options ...adk.AgentRunOption) *adk.AsyncIterator[*adk.AgentEvent] {
	iter, gen := adk.NewAsyncIteratorPair[*adk.AgentEvent]()
	go func() {
		defer func() {
			if e := recover(); e != nil {
				gen.Send(a.errorEvent(fmt.Errorf("recover from panic: %v", e)))
			}
			gen.Close()
		}()
		if input == nil || len(input.Messages) == 0 {
			gen.Send(a.errorEvent(ErrNoInput))
			return
		}
		req, err := DecodeJob(input.Messages[len(input.Messages)-1].Content)
		if err != nil {
			gen.Send(a.errorEvent(err))
			return
		}
		if a.streamTurns {
			req.OnTurn = func(ctx context.Context, index int, u types.Utterance) {
				gen.Send(a.messageEvent(UtteranceMessage(index, u)))
			}
		}
		res, err := a.gen.GenerateDialogue(ctx, req)
		if err != nil {
			gen.Send(a.errorEvent(fmt.Errorf("generate dialogue failed: %w", err)))
			return
		}
		body, err := sonic.MarshalString(res)
		if err != nil {
			gen.Send(a.errorEvent(fmt.Errorf("encode result failed: %w", err)))
			return
		}
		gen.Send(a.messageEvent(schema.AssistantMessage(body, nil)))
	}()
	return iter
}

func (a *Agent) messageEvent(msg *schema.Message) *adk.AgentEvent {
	return &adk.AgentEvent{
		AgentName: a.name,
		Output: &adk.AgentOutput{
			MessageOutput: &adk.MessageVariant{
				IsStreaming: false,
				Message:     msg,
				Role:        schema.Assistant,
			},
		},
	}
}

func (a *Agent) errorEvent(err error) *adk.AgentEvent {
	return &adk.AgentEvent{AgentName: a.name, Err: err}
}

// DecodeJob reads a dialogue request from JSON. The content may be wrapped in
// a fenced code block.
func DecodeJob(content string) (*dialogue.Request, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	var req dialogue.Request
	if err := sonic.UnmarshalString(strings.TrimSpace(content), &req); err != nil {
		return nil, fmt.Errorf("decode dialogue job: %w", err)
	}
	return &req, nil
}

// UtteranceMessage renders one produced utterance; Name carries the role and
// Extra the intent and position.
func UtteranceMessage(index int, u types.Utterance) *schema.Message {
	msg := schema.AssistantMessage(u.Text, nil)
	msg.Name = string(u.Role)
	msg.Extra = map[string]any{
		"intent": u.Intent,
		"turn":   index,
	}
	return msg
}
