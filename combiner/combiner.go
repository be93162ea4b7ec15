// Package combiner merges the instructions of a composite intent's two
// components into a single instruction for one role.
package combiner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tbxark/soliddialog/catalog"
	"github.com/tbxark/soliddialog/types"
)

var (
	ErrNotComposite     = errors.New("intent is not composite")
	ErrEmptyInstruction = errors.New("combined instruction is empty")
	ErrNoCombiners      = errors.New("no combiners configured")
)

type Combiner interface {
	Combine(ctx context.Context, intent types.Intent, cat catalog.Catalog, role types.Role) (string, error)
}

type Func func(ctx context.Context, intent types.Intent, cat catalog.Catalog, role types.Role) (string, error)

func (f Func) Combine(ctx context.Context, intent types.Intent, cat catalog.Catalog, role types.Role) (string, error) {
	return f(ctx, intent, cat, role)
}

// Pair holds the two instructions to merge, in component order.
type Pair struct {
	Code   string     `json:"code"`
	Role   types.Role `json:"role"`
	First  string     `json:"first"`
	Second string     `json:"second"`
}

// Instructions fetches the role instruction of both components of intent.
func Instructions(intent types.Intent, cat catalog.Catalog, role types.Role) (Pair, error) {
	if !intent.IsComposite() {
		return Pair{}, fmt.Errorf("%w: %q", ErrNotComposite, intent.Code())
	}
	firstCode, secondCode := intent.Components()
	first, err := cat.Instruction(firstCode, role)
	if err != nil {
		return Pair{}, err
	}
	second, err := cat.Instruction(secondCode, role)
	if err != nil {
		return Pair{}, err
	}
	return Pair{
		Code:   intent.Code(),
		Role:   role,
		First:  strings.TrimSpace(first),
		Second: strings.TrimSpace(second),
	}, nil
}

// isFinal reports errors that every combiner would hit the same way.
func isFinal(err error) bool {
	return errors.Is(err, ErrNotComposite) || errors.Is(err, types.ErrMissingDefinition)
}
