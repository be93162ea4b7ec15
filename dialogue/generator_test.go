package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbxark/soliddialog/catalog"
	"github.com/tbxark/soliddialog/combiner"
	"github.com/tbxark/soliddialog/completion"
	"github.com/tbxark/soliddialog/types"
)

var testEntity = types.Entity{
	Name:       "Vadstena Castle",
	Type:       "castle",
	Background: "Vadstena Castle is a Renaissance castle on the shore of Lake Vättern in Sweden.",
}

type scriptedCompleter struct {
	mu      sync.Mutex
	prompts []string
}

func (s *scriptedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	return fmt.Sprintf("%s Reply number %d. It was built\nUser's next question: ignored", prompt, len(s.prompts)), nil
}

type countingCombiner struct {
	calls []string
}

func (c *countingCombiner) Combine(ctx context.Context, intent types.Intent, cat catalog.Catalog, role types.Role) (string, error) {
	c.calls = append(c.calls, intent.Code()+"/"+string(role))
	return "Add details and say the reply did not help.", nil
}

func newTestGenerator(t *testing.T, c completion.Completer, comb combiner.Combiner, opts ...Option) *Generator {
	t.Helper()
	g, err := NewGenerator(c, comb, opts...)
	require.NoError(t, err)
	return g
}

func TestGenerateDialogueScenario(t *testing.T) {
	completer := &scriptedCompleter{}
	comb := &countingCombiner{}
	g := newTestGenerator(t, completer, comb)

	res, err := g.GenerateDialogue(context.Background(), &Request{
		Entity:          testEntity,
		Intents:         []string{"OQ", "RQ", "FD_NF", "PA"},
		OpeningQuestion: "Where is Vadstena Castle?",
	})
	require.NoError(t, err)
	require.Equal(t, 4, res.Dialogue.Len())
	assert.NotEmpty(t, res.ID)

	u := res.Dialogue.Utterances
	assert.Equal(t, types.Utterance{Text: "Where is Vadstena Castle?", Intent: "OQ", Role: types.RoleUser}, u[0])
	assert.Equal(t, []string{"OQ", "RQ", "FD_NF", "PA"}, []string{u[0].Intent, u[1].Intent, u[2].Intent, u[3].Intent})
	assert.Equal(t, []types.Role{types.RoleUser, types.RoleAgent, types.RoleUser, types.RoleAgent},
		[]types.Role{u[0].Role, u[1].Role, u[2].Role, u[3].Role})
	assert.Equal(t, "Reply number 1.", u[1].Text)
	assert.Equal(t, "Reply number 3.", u[3].Text)

	assert.Equal(t, []string{"FD_NF/user"}, comb.calls)
	merged, ok := res.CombinedInstructions.Get("FD_NF", types.RoleUser)
	require.True(t, ok)
	assert.Equal(t, "Add details and say the reply did not help.", merged)
	assert.Len(t, res.CombinedInstructions, 1)

	require.Len(t, completer.prompts, 3)
	composite := completer.prompts[1]
	assert.True(t, strings.HasPrefix(composite, TurnPreamble+"User's repeat question. Add details and say the reply did not help.\n"))
	assert.True(t, strings.HasSuffix(composite, "\nUser's further details:"))
	assert.Contains(t, composite, "Entity: Vadstena Castle (castle)\n")
	assert.Contains(t, composite, "User's original question: Where is Vadstena Castle?\nAgent's repeat question: Reply number 1.")
}

func TestCompositeCueIsFirstComponentGeneration(t *testing.T) {
	completer := &scriptedCompleter{}
	g := newTestGenerator(t, completer, &countingCombiner{})
	cat := catalog.Default()

	_, err := g.GenerateDialogue(context.Background(), &Request{
		Entity:          testEntity,
		Intents:         []string{"OQ", "FD_NF"},
		OpeningQuestion: "Where is it?",
		Catalog:         cat,
	})
	require.NoError(t, err)
	want, err := cat.Generation("FD", types.RoleAgent)
	require.NoError(t, err)
	require.Len(t, completer.prompts, 1)
	assert.True(t, strings.HasSuffix(completer.prompts[0], "\n"+want))
}

func TestCombinedInstructionCachedPerRun(t *testing.T) {
	comb := &countingCombiner{}
	g := newTestGenerator(t, &scriptedCompleter{}, comb)
	req := &Request{
		Entity:          testEntity,
		Intents:         []string{"OQ", "FD_NF", "PA", "FD_NF", "FD_NF"},
		OpeningQuestion: "Where is it?",
	}
	_, err := g.GenerateDialogue(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"FD_NF/agent", "FD_NF/user"}, comb.calls)

	_, err = g.GenerateDialogue(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, comb.calls, 4)
}

func TestPreviousReplyFallsBack(t *testing.T) {
	cat := catalog.Catalog{
		"A": {UserInstruction: "Ask.", UserGeneration: "User asks:", AgentGeneration: "Agent replies:"},
		"B": {AgentInstruction: "Reply.", AgentGeneration: "Agent answers:"},
		"C": {UserInstruction: "Follow up.", UserGeneration: "User follows up:"},
	}
	completer := &scriptedCompleter{}
	g := newTestGenerator(t, completer, nil, WithCatalog(cat))

	res, err := g.GenerateDialogue(context.Background(), &Request{
		Entity:          testEntity,
		Intents:         []string{"A", "B", "C"},
		OpeningQuestion: "What is it?",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Dialogue.Len())
	require.Len(t, completer.prompts, 2)
	assert.True(t, strings.HasPrefix(completer.prompts[0], TurnPreamble+"Agent replies. Reply.\n"))
	assert.True(t, strings.HasPrefix(completer.prompts[1], TurnPreamble+"User asks. Follow up.\n"))
}

func TestSingleTurnWithEmptyBackground(t *testing.T) {
	completer := &scriptedCompleter{}
	g := newTestGenerator(t, completer, nil)
	res, err := g.GenerateDialogue(context.Background(), &Request{
		Entity:          types.Entity{Name: "Thing"},
		Intents:         []string{"OQ"},
		OpeningQuestion: "What is this thing?",
		Catalog:         catalog.Catalog{"OQ": {UserGeneration: "User's question:"}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Dialogue.Len())
	assert.Equal(t, "What is this thing?", res.Dialogue.Utterances[0].Text)
	assert.Empty(t, res.CombinedInstructions)
	assert.Empty(t, completer.prompts)
}

func TestOpeningLabelIsCanonical(t *testing.T) {
	g := newTestGenerator(t, &scriptedCompleter{}, nil)
	res, err := g.GenerateDialogue(context.Background(), &Request{
		Entity:          testEntity,
		Intents:         []string{"IR", "PA"},
		OpeningQuestion: "  When was it built? It was",
	})
	require.NoError(t, err)
	assert.Equal(t, types.OpeningIntent, res.Dialogue.Utterances[0].Intent)
	assert.Equal(t, "When was it built?", res.Dialogue.Utterances[0].Text)
}

func TestRolesDependOnlyOnPosition(t *testing.T) {
	assert.Nil(t, Roles(0))
	assert.Equal(t, []types.Role{types.RoleUser, types.RoleAgent, types.RoleUser}, Roles(3))
	assert.Equal(t, Roles(7), Roles(7))
}

func TestGenerateDialogueInputErrors(t *testing.T) {
	g := newTestGenerator(t, &scriptedCompleter{}, nil)
	ctx := context.Background()

	_, err := g.GenerateDialogue(ctx, &Request{})
	assert.ErrorIs(t, err, types.ErrEmptyIntentSequence)

	_, err = g.GenerateDialogue(ctx, &Request{Intents: []string{"OQ", "A_B_C"}})
	assert.ErrorIs(t, err, types.ErrInvalidIntent)

	_, err = g.GenerateDialogue(ctx, nil)
	assert.Error(t, err)

	_, err = NewGenerator(nil, nil)
	assert.Error(t, err)
}

func TestGenerateDialogueStageErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("opening intent missing", func(t *testing.T) {
		g := newTestGenerator(t, &scriptedCompleter{}, nil)
		_, err := g.GenerateDialogue(ctx, &Request{Intents: []string{"ZZ"}})
		var se *StageError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, StageCatalog, se.Stage)
		assert.Equal(t, 0, se.Turn)
		assert.ErrorIs(t, err, types.ErrMissingDefinition)
	})

	t.Run("turn intent missing", func(t *testing.T) {
		g := newTestGenerator(t, &scriptedCompleter{}, nil)
		_, err := g.GenerateDialogue(ctx, &Request{Intents: []string{"OQ", "ZZ"}, OpeningQuestion: "Why?"})
		var se *StageError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, StageCatalog, se.Stage)
		assert.Equal(t, 1, se.Turn)
		assert.Equal(t, "ZZ", se.Intent)
	})

	t.Run("combine fails", func(t *testing.T) {
		failing := combiner.Func(func(ctx context.Context, intent types.Intent, cat catalog.Catalog, role types.Role) (string, error) {
			return "", combiner.ErrEmptyInstruction
		})
		g := newTestGenerator(t, &scriptedCompleter{}, failing)
		_, err := g.GenerateDialogue(ctx, &Request{Intents: []string{"OQ", "FD_NF"}, OpeningQuestion: "Why?"})
		var se *StageError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, StageCombine, se.Stage)
		assert.ErrorIs(t, err, combiner.ErrEmptyInstruction)
	})

	t.Run("generation fails", func(t *testing.T) {
		boom := errors.New("endpoint unavailable")
		g := newTestGenerator(t, completion.Func(func(ctx context.Context, prompt string) (string, error) {
			return "", boom
		}), nil)
		_, err := g.GenerateDialogue(ctx, &Request{Intents: []string{"OQ", "PA"}, OpeningQuestion: "Why?"})
		var se *StageError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, StageGenerate, se.Stage)
		assert.ErrorIs(t, err, boom)
	})
}

func TestTurnTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	blocking := completion.Func(func(ctx context.Context, prompt string) (string, error) {
		<-release
		return prompt, nil
	})
	g := newTestGenerator(t, blocking, nil, WithTurnTimeout(20*time.Millisecond))
	_, err := g.GenerateDialogue(context.Background(), &Request{Intents: []string{"OQ", "PA"}, OpeningQuestion: "Why?"})
	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageGenerate, se.Stage)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTurnTimeoutCoversCombine(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	slow := combiner.Func(func(ctx context.Context, intent types.Intent, cat catalog.Catalog, role types.Role) (string, error) {
		select {
		case <-release:
		case <-time.After(500 * time.Millisecond):
		}
		return "Merged too late.", nil
	})
	completer := &scriptedCompleter{}
	g := newTestGenerator(t, completer, slow, WithTurnTimeout(20*time.Millisecond))

	start := time.Now()
	res, err := g.GenerateDialogue(context.Background(), &Request{Intents: []string{"OQ", "FD_NF"}, OpeningQuestion: "Why?"})
	assert.Less(t, time.Since(start), 400*time.Millisecond)
	assert.Nil(t, res)
	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageGenerate, se.Stage)
	assert.Equal(t, "FD_NF", se.Intent)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, completer.prompts)
}

func TestTurnHookAndTrimmer(t *testing.T) {
	var seen []string
	completer := &scriptedCompleter{}
	g := newTestGenerator(t, completer, nil,
		WithTrimmer(KeepLastNTrimmer{N: 1}),
		WithTurnHook(func(ctx context.Context, index int, u types.Utterance) {
			seen = append(seen, fmt.Sprintf("%d:%s", index, u.Intent))
		}),
	)
	_, err := g.GenerateDialogue(context.Background(), &Request{
		Entity:          testEntity,
		Intents:         []string{"OQ", "PA", "FQ", "PA"},
		OpeningQuestion: "Where is it?",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"0:OQ", "1:PA", "2:FQ", "3:PA"}, seen)

	last := completer.prompts[2]
	assert.Contains(t, last, "Where is it?")
	assert.NotContains(t, last, "Reply number 1.")
	assert.Contains(t, last, "Reply number 2.")
}

func TestKeepLastNTrimmer(t *testing.T) {
	turns := make([]Turn, 5)
	for i := range turns {
		turns[i] = Turn{Cue: fmt.Sprintf("c%d", i)}
	}
	cues := func(ts []Turn) []string {
		out := make([]string, 0, len(ts))
		for _, t := range ts {
			out = append(out, t.Cue)
		}
		return out
	}
	assert.Equal(t, []string{"c0", "c3", "c4"}, cues(KeepLastNTrimmer{N: 2}.Trim(turns)))
	assert.Equal(t, []string{"c0"}, cues(KeepLastNTrimmer{}.Trim(turns)))
	assert.Len(t, KeepLastNTrimmer{N: 10}.Trim(turns), 5)
	assert.Empty(t, KeepLastNTrimmer{N: 1}.Trim(nil))
}

func TestGenerateBatch(t *testing.T) {
	g := newTestGenerator(t, &scriptedCompleter{}, nil)
	reqs := []*Request{
		{Entity: types.Entity{Name: "a"}, Intents: []string{"OQ"}, OpeningQuestion: "First?"},
		{Entity: types.Entity{Name: "b"}, Intents: []string{"OQ", "PA"}, OpeningQuestion: "Second?"},
		{Entity: types.Entity{Name: "c"}, Intents: []string{"OQ"}, OpeningQuestion: "Third?"},
	}
	results, err := GenerateBatch(context.Background(), g, reqs, 2)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, res := range results {
		assert.Equal(t, reqs[i].Entity.Name, res.Dialogue.Entity.Name)
		assert.Equal(t, reqs[i].OpeningQuestion, res.Dialogue.Utterances[0].Text)
	}

	reqs = append(reqs, &Request{})
	_, err = GenerateBatch(context.Background(), g, reqs, 0)
	assert.ErrorIs(t, err, types.ErrEmptyIntentSequence)
}
