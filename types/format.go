package types

import (
	"strings"

	"github.com/bytedance/sonic"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
)

// FormatDialogueTable renders a dialogue as a markdown table, one row per turn.
func FormatDialogueTable(d *Dialogue) string {
	var buf strings.Builder
	if d.Entity.Name != "" {
		buf.WriteString("# ")
		buf.WriteString(d.Entity.Name)
		if d.Entity.Type != "" {
			buf.WriteString(" (")
			buf.WriteString(d.Entity.Type)
			buf.WriteString(")")
		}
		buf.WriteString("\n")
	}
	table := tablewriter.NewTable(&buf, tablewriter.WithRenderer(renderer.NewMarkdown()))
	table.Header("#", "Role", "Intent", "Utterance")
	for i, u := range d.Utterances {
		_ = table.Append(i, string(u.Role), u.Intent, u.Text)
	}
	_ = table.Render()
	return buf.String()
}

type resultJSON struct {
	ID                   string               `json:"id"`
	Entity               Entity               `json:"entity"`
	GeneratedDialogue    []Utterance          `json:"generated_dialogue"`
	EntityCardObj        any                  `json:"entity_card_obj"`
	CombinedInstructions CombinedInstructions `json:"combined_instructions"`
}

func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{
		ID:                   r.ID,
		Entity:               r.Dialogue.Entity,
		GeneratedDialogue:    r.Dialogue.Utterances,
		CombinedInstructions: r.CombinedInstructions,
	}
	if out.GeneratedDialogue == nil {
		out.GeneratedDialogue = []Utterance{}
	}
	if out.CombinedInstructions == nil {
		out.CombinedInstructions = CombinedInstructions{}
	}
	return sonic.Marshal(out)
}

func (r *Result) UnmarshalJSON(data []byte) error {
	var in resultJSON
	if err := sonic.Unmarshal(data, &in); err != nil {
		return err
	}
	r.ID = in.ID
	r.Dialogue = Dialogue{Entity: in.Entity, Utterances: in.GeneratedDialogue}
	r.CombinedInstructions = in.CombinedInstructions
	return nil
}
