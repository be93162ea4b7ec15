package types

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// OpeningIntent labels the first utterance of every dialogue.
const OpeningIntent = "OQ"

// IntentSeparator joins the two base codes of a composite intent.
const IntentSeparator = "_"

type IntentKind int

const (
	IntentBase IntentKind = iota
	IntentComposite
)

// Intent is a parsed dialogue-act code. Composite intents carry both base
// components; base intents only carry their own code.
type Intent struct {
	code   string
	kind   IntentKind
	first  string
	second string
}

func BaseIntent(code string) Intent {
	return Intent{code: code, kind: IntentBase, first: code}
}

func CompositeIntent(first, second string) Intent {
	return Intent{
		code:   first + IntentSeparator + second,
		kind:   IntentComposite,
		first:  first,
		second: second,
	}
}

// ParseIntent decides once whether code is a base or composite intent. The
// code is kept verbatim as the utterance label, so whitespace is rejected.
func ParseIntent(code string) (Intent, error) {
	if strings.TrimSpace(code) == "" {
		return Intent{}, fmt.Errorf("%w: empty code", ErrInvalidIntent)
	}
	if strings.ContainsFunc(code, unicode.IsSpace) {
		return Intent{}, fmt.Errorf("%w: %q contains whitespace", ErrInvalidIntent, code)
	}
	if !strings.Contains(code, IntentSeparator) {
		return BaseIntent(code), nil
	}
	parts := strings.Split(code, IntentSeparator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Intent{}, fmt.Errorf("%w: %q must join exactly two base codes", ErrInvalidIntent, code)
	}
	return CompositeIntent(parts[0], parts[1]), nil
}

func ParseIntents(codes []string) ([]Intent, error) {
	out := make([]Intent, 0, len(codes))
	for i, code := range codes {
		intent, err := ParseIntent(code)
		if err != nil {
			return nil, fmt.Errorf("intent %d: %w", i, err)
		}
		out = append(out, intent)
	}
	return out, nil
}

func (i Intent) Code() string      { return i.code }
func (i Intent) Kind() IntentKind  { return i.kind }
func (i Intent) IsComposite() bool { return i.kind == IntentComposite }

// BaseCode is the code itself for a base intent and the first component for a
// composite one.
func (i Intent) BaseCode() string { return i.first }

// Components returns both base codes of a composite intent.
func (i Intent) Components() (string, string) { return i.first, i.second }

func (i Intent) String() string { return i.code }

type Entity struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Background string `json:"background"`
}

type Utterance struct {
	Text   string `json:"utterance"`
	Intent string `json:"intent"`
	Role   Role   `json:"role"`
}

type Dialogue struct {
	Entity     Entity      `json:"entity"`
	Utterances []Utterance `json:"utterances"`
}

func (d *Dialogue) Append(u Utterance) {
	d.Utterances = append(d.Utterances, u)
}

func (d *Dialogue) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Utterances)
}

// CombinedInstructions records the merged instruction used for every composite
// intent, keyed by composite code and role.
type CombinedInstructions map[string]map[Role]string

func (c CombinedInstructions) Set(code string, role Role, instruction string) {
	if c[code] == nil {
		c[code] = map[Role]string{}
	}
	c[code][role] = instruction
}

func (c CombinedInstructions) Get(code string, role Role) (string, bool) {
	byRole, ok := c[code]
	if !ok {
		return "", false
	}
	v, ok := byRole[role]
	return v, ok
}

type Result struct {
	ID                   string               `json:"id"`
	Dialogue             Dialogue             `json:"-"`
	CombinedInstructions CombinedInstructions `json:"combined_instructions"`
}

var (
	ErrInvalidIntent       = errors.New("invalid intent code")
	ErrEmptyIntentSequence = errors.New("intent sequence is empty")
	ErrMissingDefinition   = errors.New("missing intent definition")
)

type Field string

const (
	FieldInstruction Field = "instruction"
	FieldGeneration  Field = "generation"
)

// CatalogError reports an intent whose fragment for a role is not defined.
type CatalogError struct {
	Code  string
	Role  Role
	Field Field
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("%s: %q has no %s %s", ErrMissingDefinition, e.Code, e.Role, e.Field)
}

func (e *CatalogError) Unwrap() error { return ErrMissingDefinition }
