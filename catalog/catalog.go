// Package catalog maps intent codes to the instruction and generation
// fragments used to prompt each role.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tbxark/soliddialog/types"
)

// Definition holds the four prompt fragments of one intent. A fragment is
// defined when it is non-empty.
type Definition struct {
	UserInstruction  string `yaml:"user instruction,omitempty" json:"user instruction,omitempty"`
	UserGeneration   string `yaml:"user generation,omitempty" json:"user generation,omitempty"`
	AgentInstruction string `yaml:"agent instruction,omitempty" json:"agent instruction,omitempty"`
	AgentGeneration  string `yaml:"agent generation,omitempty" json:"agent generation,omitempty"`
}

func (d Definition) Fragment(role types.Role, field types.Field) string {
	switch {
	case role == types.RoleUser && field == types.FieldInstruction:
		return d.UserInstruction
	case role == types.RoleUser && field == types.FieldGeneration:
		return d.UserGeneration
	case role == types.RoleAgent && field == types.FieldInstruction:
		return d.AgentInstruction
	case role == types.RoleAgent && field == types.FieldGeneration:
		return d.AgentGeneration
	}
	return ""
}

type Catalog map[string]Definition

func (c Catalog) Lookup(code string) (Definition, bool) {
	def, ok := c[code]
	return def, ok
}

// Fragment returns the fragment of code for role, or a *types.CatalogError
// when the intent or the fragment is missing.
func (c Catalog) Fragment(code string, role types.Role, field types.Field) (string, error) {
	def, ok := c[code]
	if !ok {
		return "", &types.CatalogError{Code: code, Role: role, Field: field}
	}
	frag := def.Fragment(role, field)
	if frag == "" {
		return "", &types.CatalogError{Code: code, Role: role, Field: field}
	}
	return frag, nil
}

func (c Catalog) Instruction(code string, role types.Role) (string, error) {
	return c.Fragment(code, role, types.FieldInstruction)
}

func (c Catalog) Generation(code string, role types.Role) (string, error) {
	return c.Fragment(code, role, types.FieldGeneration)
}

// Codes lists the intent codes in sorted order.
func (c Catalog) Codes() []string {
	codes := make([]string, 0, len(c))
	for code := range c {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func (c Catalog) Clone() Catalog {
	out := make(Catalog, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// PreviousGeneration resolves the phrase describing the reply that precedes
// turn i. It walks back from turn i-1 to the first turn and returns the first
// generation fragment defined for role; a composite intent without its own
// entry resolves through its first component. Colons are replaced by periods
// because they delimit speaker turns in the transcript.
func PreviousGeneration(c Catalog, intents []types.Intent, i int, role types.Role) (string, error) {
	if i <= 0 || i > len(intents) {
		return "", fmt.Errorf("previous generation for turn %d: out of range", i)
	}
	for j := i - 1; j >= 0; j-- {
		if frag, ok := generationFor(c, intents[j], role); ok {
			return NormalizeReply(frag), nil
		}
	}
	return "", fmt.Errorf("no turn before %d defines it: %w", i, &types.CatalogError{
		Code:  intents[i-1].Code(),
		Role:  role,
		Field: types.FieldGeneration,
	})
}

// generationFor falls back to the first component when a composite code has
// no entry of its own.
func generationFor(c Catalog, intent types.Intent, role types.Role) (string, bool) {
	if frag, err := c.Generation(intent.Code(), role); err == nil {
		return frag, true
	}
	if intent.IsComposite() {
		if frag, err := c.Generation(intent.BaseCode(), role); err == nil {
			return frag, true
		}
	}
	return "", false
}

func NormalizeReply(fragment string) string {
	return strings.ReplaceAll(fragment, ":", ".")
}
