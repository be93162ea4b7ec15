package combiner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tbxark/soliddialog/catalog"
	"github.com/tbxark/soliddialog/types"
)

// LocalCombiner joins both instructions without a model call.
type LocalCombiner struct {
	// Joiner goes between the two instructions. Defaults to " Then, ".
	Joiner string
}

func (c LocalCombiner) Combine(ctx context.Context, intent types.Intent, cat catalog.Catalog, role types.Role) (string, error) {
	pair, err := Instructions(intent, cat, role)
	if err != nil {
		return "", err
	}
	joiner := c.Joiner
	if joiner == "" {
		joiner = " Then, "
	}
	first := strings.TrimRight(pair.First, " .")
	if first == "" || pair.Second == "" {
		return "", fmt.Errorf("%w: %s for %s", ErrEmptyInstruction, intent.Code(), role)
	}
	second := pair.Second
	if c.Joiner == "" {
		r, size := utf8.DecodeRuneInString(second)
		second = string(unicode.ToLower(r)) + second[size:]
	}
	return first + "." + joiner + second, nil
}

// FailbackCombiner tries each combiner in order and returns the first
// success. Catalog errors stop the chain since no combiner can recover them.
type FailbackCombiner struct {
	combiners []Combiner
}

func NewFailbackCombiner(combiners ...Combiner) *FailbackCombiner {
	return &FailbackCombiner{combiners: combiners}
}

func (c *FailbackCombiner) Combine(ctx context.Context, intent types.Intent, cat catalog.Catalog, role types.Role) (string, error) {
	lastErr := ErrNoCombiners
	for i, combiner := range c.combiners {
		if combiner == nil {
			continue
		}
		merged, err := combiner.Combine(ctx, intent, cat, role)
		if err == nil {
			return merged, nil
		}
		if isFinal(err) || ctx.Err() != nil {
			return "", err
		}
		slog.Warn("Combiner failed, trying next", "index", i, "intent", intent.Code(), "err", err)
		lastErr = err
	}
	return "", fmt.Errorf("all combiners failed: %w", lastErr)
}

var (
	_ Combiner = LocalCombiner{}
	_ Combiner = (*FailbackCombiner)(nil)
)
