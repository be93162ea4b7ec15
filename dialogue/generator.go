// Package dialogue walks an intent sequence and produces one labeled
// utterance per intent.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/google/uuid"
	"github.com/tbxark/soliddialog/catalog"
	"github.com/tbxark/soliddialog/combiner"
	"github.com/tbxark/soliddialog/completion"
	"github.com/tbxark/soliddialog/extract"
	"github.com/tbxark/soliddialog/types"
)

// Generator holds no per-dialogue state and is safe to share when its
// completer and combiner are.
type Generator struct {
	completer   completion.Completer
	combiner    combiner.Combiner
	catalog     catalog.Catalog
	turnTimeout time.Duration
	trimmer     Trimmer
	hook        TurnHook
	logger      *slog.Logger
}

type Option func(*Generator)

// WithCatalog sets the catalog used by requests that carry none.
func WithCatalog(c catalog.Catalog) Option {
	return func(g *Generator) {
		g.catalog = c
	}
}

// WithTurnTimeout bounds each turn, the composite merge included. A call
// still running at the deadline fails the turn at the generate stage.
func WithTurnTimeout(d time.Duration) Option {
	return func(g *Generator) {
		g.turnTimeout = d
	}
}

func WithTrimmer(t Trimmer) Option {
	return func(g *Generator) {
		g.trimmer = t
	}
}

func WithTurnHook(h TurnHook) Option {
	return func(g *Generator) {
		g.hook = h
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = l
	}
}

// NewGenerator builds a generator. A nil combiner merges composite
// instructions with the same completer.
func NewGenerator(completer completion.Completer, comb combiner.Combiner, opts ...Option) (*Generator, error) {
	if completer == nil {
		return nil, errors.New("dialogue generator: completer is nil")
	}
	if comb == nil {
		comb = combiner.NewCompletionCombiner(completer)
	}
	g := &Generator{
		completer: completer,
		combiner:  comb,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	if g.catalog == nil {
		g.catalog = catalog.Default()
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g, nil
}

func (g *Generator) GenerateDialogue(ctx context.Context, req *Request) (*types.Result, error) {
	ctx = callbacks.EnsureRunInfo(ctx, "SolidDialog", "Generator")
	ctx = callbacks.OnStart(ctx, req)

	result, err := g.run(ctx, req)
	if err != nil {
		callbacks.OnError(ctx, err)
		return nil, err
	}

	callbacks.OnEnd(ctx, result)
	return result, nil
}

func (g *Generator) run(ctx context.Context, req *Request) (*types.Result, error) {
	if req == nil {
		return nil, errors.New("dialogue request is nil")
	}
	if len(req.Intents) == 0 {
		return nil, types.ErrEmptyIntentSequence
	}
	intents, err := types.ParseIntents(req.Intents)
	if err != nil {
		return nil, fmt.Errorf("parse intents: %w", err)
	}
	cat := req.Catalog
	if cat == nil {
		cat = g.catalog
	}

	roles := Roles(len(intents))
	result := &types.Result{
		ID:                   uuid.NewString(),
		Dialogue:             types.Dialogue{Entity: req.Entity},
		CombinedInstructions: types.CombinedInstructions{},
	}
	history := make([]Turn, 0, len(intents))

	opening, err := g.openingTurn(cat, intents[0], req)
	if err != nil {
		return nil, err
	}
	history = append(history, opening)
	g.emit(ctx, req, result, 0, opening.Utterance)

	for i := 1; i < len(intents); i++ {
		if err := ctx.Err(); err != nil {
			return nil, &StageError{Stage: StageGenerate, Turn: i, Intent: intents[i].Code(), Err: err}
		}
		turn, err := g.nextTurn(ctx, cat, intents, i, roles[i], req.Entity, history, result.CombinedInstructions)
		if err != nil {
			return nil, err
		}
		history = append(history, turn)
		g.emit(ctx, req, result, i, turn.Utterance)
	}

	g.logger.Debug("Generated dialogue", "id", result.ID, "entity", req.Entity.Name, "turns", result.Dialogue.Len())
	return result, nil
}

// openingTurn uses the opening question itself as the completion of the
// opening prompt, so no model call is made.
func (g *Generator) openingTurn(cat catalog.Catalog, intent types.Intent, req *Request) (Turn, error) {
	cue, err := fragment(cat, intent, types.RoleUser, types.FieldGeneration)
	if err != nil {
		return Turn{}, &StageError{Stage: StageCatalog, Turn: 0, Intent: intent.Code(), Err: err}
	}
	instruction, err := fragment(cat, intent, types.RoleUser, types.FieldInstruction)
	if err != nil {
		g.logger.Debug("Opening intent has no user instruction", "intent", intent.Code())
		instruction = ""
	}
	prompt := OpeningPrompt(instruction, req.Entity, cue)
	text := extract.Utterance(prompt+req.OpeningQuestion, prompt)
	return Turn{
		Cue: cue,
		Utterance: types.Utterance{
			Text:   text,
			Intent: types.OpeningIntent,
			Role:   types.RoleUser,
		},
	}, nil
}

func (g *Generator) nextTurn(
	ctx context.Context,
	cat catalog.Catalog,
	intents []types.Intent,
	i int,
	role types.Role,
	entity types.Entity,
	history []Turn,
	combined types.CombinedInstructions,
) (Turn, error) {
	intent := intents[i]
	fail := func(stage Stage, err error) (Turn, error) {
		return Turn{}, &StageError{Stage: stage, Turn: i, Intent: intent.Code(), Err: err}
	}
	ctx, cancel := g.turnContext(ctx)
	defer cancel()

	previous, err := catalog.PreviousGeneration(cat, intents, i, role)
	if err != nil {
		return fail(StageCatalog, err)
	}

	var instruction, cue string
	if intent.IsComposite() {
		instruction, err = g.combine(ctx, cat, intent, role, combined)
		if err != nil {
			switch {
			case errors.Is(err, types.ErrMissingDefinition):
				return fail(StageCatalog, err)
			case errors.Is(err, context.DeadlineExceeded):
				return fail(StageGenerate, err)
			}
			return fail(StageCombine, err)
		}
		cue, err = cat.Generation(intent.BaseCode(), role)
	} else {
		instruction, err = cat.Instruction(intent.Code(), role)
		if err == nil {
			cue, err = cat.Generation(intent.Code(), role)
		}
	}
	if err != nil {
		return fail(StageCatalog, err)
	}

	if g.trimmer != nil {
		history = g.trimmer.Trim(history)
	}
	prompt := TurnPrompt(previous, instruction, entity, history, cue)
	g.logger.Debug("Generating turn", "turn", i, "intent", intent.Code(), "role", role, "prompt_len", len(prompt))

	output, err := g.complete(ctx, prompt)
	if err != nil {
		return fail(StageGenerate, err)
	}
	return Turn{
		Cue: cue,
		Utterance: types.Utterance{
			Text:   extract.Utterance(output, prompt),
			Intent: intent.Code(),
			Role:   role,
		},
	}, nil
}

// combine merges a composite instruction once per code and role within a
// run; combined doubles as the cache.
func (g *Generator) combine(ctx context.Context, cat catalog.Catalog, intent types.Intent, role types.Role, combined types.CombinedInstructions) (string, error) {
	if merged, ok := combined.Get(intent.Code(), role); ok {
		return merged, nil
	}
	merged, err := await(ctx, func(ctx context.Context) (string, error) {
		return g.combiner.Combine(ctx, intent, cat, role)
	})
	if err != nil {
		return "", err
	}
	combined.Set(intent.Code(), role, merged)
	return merged, nil
}

func (g *Generator) complete(ctx context.Context, prompt string) (string, error) {
	return await(ctx, func(ctx context.Context) (string, error) {
		return g.completer.Complete(ctx, prompt)
	})
}

// turnContext carries the deadline shared by every model call of one turn.
func (g *Generator) turnContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.turnTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, g.turnTimeout)
}

// await returns when call does or when ctx is done, whichever comes first.
// A call that ignores ctx is abandoned and its result dropped.
func await(ctx context.Context, call func(context.Context) (string, error)) (string, error) {
	if ctx.Done() == nil {
		return call(ctx)
	}
	type reply struct {
		text string
		err  error
	}
	done := make(chan reply, 1)
	go func() {
		text, err := call(ctx)
		done <- reply{text: text, err: err}
	}()
	select {
	case r := <-done:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (g *Generator) emit(ctx context.Context, req *Request, result *types.Result, i int, u types.Utterance) {
	result.Dialogue.Append(u)
	if g.hook != nil {
		g.hook(ctx, i, u)
	}
	if req.OnTurn != nil {
		req.OnTurn(ctx, i, u)
	}
}

// fragment resolves a fragment of intent, falling back to the first
// component of a composite code without its own entry.
func fragment(cat catalog.Catalog, intent types.Intent, role types.Role, field types.Field) (string, error) {
	frag, err := cat.Fragment(intent.Code(), role, field)
	if err != nil && intent.IsComposite() {
		return cat.Fragment(intent.BaseCode(), role, field)
	}
	return frag, err
}
