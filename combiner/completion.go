package combiner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tbxark/soliddialog/catalog"
	"github.com/tbxark/soliddialog/completion"
	"github.com/tbxark/soliddialog/extract"
	"github.com/tbxark/soliddialog/types"
)

// CompletionCombiner asks a text-completion model to write the merged
// instruction and keeps the first clean sentence run of its continuation.
type CompletionCombiner struct {
	completer completion.Completer
}

func NewCompletionCombiner(completer completion.Completer) *CompletionCombiner {
	return &CompletionCombiner{completer: completer}
}

func MergePrompt(p Pair) string {
	return fmt.Sprintf("Combine the following two instructions into one coherent instruction that asks for both.\n"+
		"Instruction 1: %s\n"+
		"Instruction 2: %s\n"+
		"Combined instruction:", p.First, p.Second)
}

func (c *CompletionCombiner) Combine(ctx context.Context, intent types.Intent, cat catalog.Catalog, role types.Role) (string, error) {
	pair, err := Instructions(intent, cat, role)
	if err != nil {
		return "", err
	}
	prompt := MergePrompt(pair)
	out, err := c.completer.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("combine %s for %s: %w", intent.Code(), role, err)
	}
	merged := extract.TrimToLastPunctuation(extract.FirstLine(extract.FilterNewTurn(out, prompt)))
	if merged == "" {
		return "", fmt.Errorf("%w: %s for %s", ErrEmptyInstruction, intent.Code(), role)
	}
	slog.Debug("Combined instruction", "intent", intent.Code(), "role", role, "instruction", merged)
	return merged, nil
}

var _ Combiner = (*CompletionCombiner)(nil)
