package dialogue

import (
	"context"
	"fmt"

	"github.com/tbxark/soliddialog/catalog"
	"github.com/tbxark/soliddialog/types"
)

// Request describes one dialogue to generate. A nil Catalog selects the
// generator's default catalog. OnTurn runs after the generator's own hook.
type Request struct {
	Entity          types.Entity    `json:"entity"`
	Intents         []string        `json:"intents"`
	OpeningQuestion string          `json:"opening_question"`
	Catalog         catalog.Catalog `json:"catalog,omitempty"`
	OnTurn          TurnHook        `json:"-"`
}

type Stage string

const (
	StageCatalog  Stage = "catalog"
	StageCombine  Stage = "combine"
	StageGenerate Stage = "generate"
)

// StageError reports which stage of which turn aborted a generation.
type StageError struct {
	Stage  Stage
	Turn   int
	Intent string
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed at turn %d (%s): %v", e.Stage, e.Turn, e.Intent, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Turn is one produced utterance together with the cue that introduced it.
type Turn struct {
	Cue       string
	Utterance types.Utterance
}

// TurnHook observes every utterance as soon as it is produced.
type TurnHook func(ctx context.Context, index int, u types.Utterance)
