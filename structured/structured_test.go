package structured

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type merged struct {
	Instruction string `json:"instruction" jsonschema:"required,description=merged instruction"`
}

type toolModel struct {
	resp     *schema.Message
	err      error
	lastOpts *model.Options
	tools    []*schema.ToolInfo
}

func (m *toolModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.lastOpts = model.GetCommonOptions(&model.Options{}, opts...)
	return m.resp, m.err
}

func (m *toolModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

func (m *toolModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	m.tools = tools
	return m, nil
}

func toolCall(name, args string) *schema.Message {
	return &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{{
			ID:       "call_1",
			Function: schema.FunctionCall{Name: name, Arguments: args},
		}},
	}
}

func prompt(ctx context.Context, in string) ([]*schema.Message, error) {
	return []*schema.Message{schema.UserMessage(in)}, nil
}

func TestChainInvoke(t *testing.T) {
	m := &toolModel{resp: toolCall("merge", `{"instruction":"Answer and ask."}`)}
	chain, err := NewChain[string, merged](m, prompt, "merge", "merge two instructions")
	require.NoError(t, err)
	assert.Equal(t, "merge", chain.ToolInfo().Name)

	out, err := chain.Invoke(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "Answer and ask.", out.Instruction)

	require.NotNil(t, m.lastOpts.ToolChoice)
	assert.Equal(t, schema.ToolChoiceForced, *m.lastOpts.ToolChoice)
	require.Len(t, m.lastOpts.Tools, 1)
}

func TestChainInvokeErrors(t *testing.T) {
	_, err := NewChain[string, merged](nil, prompt, "merge", "")
	assert.Error(t, err)

	chain, err := NewChain[string, merged](&toolModel{resp: schema.AssistantMessage("plain text", nil)}, prompt, "merge", "")
	require.NoError(t, err)
	_, err = chain.Invoke(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoToolCall)

	chain, err = NewChain[string, merged](&toolModel{err: errors.New("down")}, prompt, "merge", "")
	require.NoError(t, err)
	_, err = chain.Invoke(context.Background(), "x")
	assert.ErrorContains(t, err, "down")

	chain, err = NewChain[string, merged](&toolModel{resp: toolCall("merge", `{not json`)}, prompt, "merge", "")
	require.NoError(t, err)
	_, err = chain.Invoke(context.Background(), "x")
	assert.ErrorContains(t, err, "parse tool call arguments")
}

func TestDecodeSkipsOtherTools(t *testing.T) {
	msg := toolCall("other", `{"instruction":"wrong"}`)
	msg.ToolCalls = append(msg.ToolCalls, schema.ToolCall{
		Function: schema.FunctionCall{Name: "merge", Arguments: `{"instruction":"right"}`},
	})
	out, err := Decode[merged](msg, "merge")
	require.NoError(t, err)
	assert.Equal(t, "right", out.Instruction)

	_, err = Decode[merged](nil, "merge")
	assert.ErrorIs(t, err, ErrNoToolCall)
}
