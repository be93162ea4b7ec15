package combiner

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/soliddialog/catalog"
	"github.com/tbxark/soliddialog/structured"
	"github.com/tbxark/soliddialog/types"
)

type MergedInstruction struct {
	Instruction string `json:"instruction" jsonschema:"required,description=One instruction that asks for both original instructions in a single turn"`
}

const DefaultCombineSystemPrompt = `You write instructions for a dialogue-writing model.
Merge the two instructions you are given into one coherent instruction for a single conversational turn.
Keep the role and the intent of both. Answer with one or two sentences and call the tool.`

// ToolBasedCombiner merges instructions through a forced tool call on a chat
// model.
type ToolBasedCombiner struct {
	chain *structured.Chain[Pair, MergedInstruction]
}

func NewToolBasedCombiner(chatModel model.ToolCallingChatModel) (*ToolBasedCombiner, error) {
	chain, err := structured.NewChain[Pair, MergedInstruction](
		chatModel,
		buildCombinePrompt,
		"combine_instructions",
		"Submit the merged instruction",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create combine chain: %w", err)
	}
	return &ToolBasedCombiner{chain: chain}, nil
}

func buildCombinePrompt(ctx context.Context, p Pair) ([]*schema.Message, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Role\n%s\n", p.Role)
	fmt.Fprintf(&sb, "# Instruction 1\n%s\n", p.First)
	fmt.Fprintf(&sb, "# Instruction 2\n%s", p.Second)
	return []*schema.Message{
		schema.SystemMessage(DefaultCombineSystemPrompt),
		schema.UserMessage(sb.String()),
	}, nil
}

func (c *ToolBasedCombiner) Combine(ctx context.Context, intent types.Intent, cat catalog.Catalog, role types.Role) (string, error) {
	pair, err := Instructions(intent, cat, role)
	if err != nil {
		return "", err
	}
	out, err := c.chain.Invoke(ctx, pair)
	if err != nil {
		return "", fmt.Errorf("combine %s for %s: %w", intent.Code(), role, err)
	}
	merged := strings.TrimSpace(out.Instruction)
	if merged == "" {
		return "", fmt.Errorf("%w: %s for %s", ErrEmptyInstruction, intent.Code(), role)
	}
	return merged, nil
}

var _ Combiner = (*ToolBasedCombiner)(nil)
