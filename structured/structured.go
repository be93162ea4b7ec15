// Package structured forces a tool-calling chat model to answer through a
// single tool and decodes the tool arguments into a Go value.
package structured

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
)

var ErrNoToolCall = errors.New("no tool call in model response")

type PromptBuilder[TInput any] func(ctx context.Context, input TInput) ([]*schema.Message, error)

// Chain turns one input into one decoded TOutput via a forced tool call.
type Chain[TInput, TOutput any] struct {
	build     PromptBuilder[TInput]
	chatModel model.ToolCallingChatModel
	tool      *schema.ToolInfo
}

func NewChain[TInput, TOutput any](
	chatModel model.ToolCallingChatModel,
	build PromptBuilder[TInput],
	toolName string,
	toolDesc string,
) (*Chain[TInput, TOutput], error) {
	if chatModel == nil {
		return nil, fmt.Errorf("structured chain %q: chat model is nil", toolName)
	}
	if build == nil {
		return nil, fmt.Errorf("structured chain %q: prompt builder is nil", toolName)
	}
	tool, err := utils.GoStruct2ToolInfo[TOutput](toolName, toolDesc)
	if err != nil {
		return nil, fmt.Errorf("convert tool info failed: %w", err)
	}
	return &Chain[TInput, TOutput]{
		build:     build,
		chatModel: chatModel,
		tool:      tool,
	}, nil
}

func (c *Chain[TInput, TOutput]) Invoke(ctx context.Context, input TInput, opts ...model.Option) (*TOutput, error) {
	messages, err := c.build(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("build prompt failed: %w", err)
	}
	opts = append([]model.Option{
		model.WithTools([]*schema.ToolInfo{c.tool}),
		model.WithToolChoice(schema.ToolChoiceForced, c.tool.Name),
	}, opts...)

	resp, err := c.chatModel.Generate(ctx, messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("call model failed: %w", err)
	}
	return Decode[TOutput](resp, c.tool.Name)
}

func (c *Chain[TInput, TOutput]) ToolInfo() *schema.ToolInfo {
	return c.tool
}

// Decode reads the arguments of the first tool call named name. An empty name
// accepts the first tool call of any name.
func Decode[TOutput any](msg *schema.Message, name string) (*TOutput, error) {
	if msg == nil {
		return nil, ErrNoToolCall
	}
	for _, call := range msg.ToolCalls {
		if name != "" && call.Function.Name != "" && call.Function.Name != name {
			continue
		}
		var out TOutput
		if err := sonic.UnmarshalString(call.Function.Arguments, &out); err != nil {
			return nil, fmt.Errorf("parse tool call arguments failed: %w", err)
		}
		return &out, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoToolCall, msg.Content)
}
