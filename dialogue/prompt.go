package dialogue

import (
	"strings"

	"github.com/tbxark/soliddialog/types"
)

const (
	OpeningPreamble = "I will give you an entity, its type, and a background document, along with the user's first question to start a QA dialogue."
	TurnPreamble    = "I will give you an entity, its type, and a background document, and a conversation history that ends in a "
)

// Roles assigns user to even positions and agent to odd ones.
func Roles(n int) []types.Role {
	if n <= 0 {
		return nil
	}
	roles := make([]types.Role, n)
	for i := range roles {
		if i%2 == 0 {
			roles[i] = types.RoleUser
		} else {
			roles[i] = types.RoleAgent
		}
	}
	return roles
}

// OpeningPrompt builds the first-turn prompt up to and including the cue. The
// opening question is appended to it as the turn's completion.
func OpeningPrompt(instruction string, entity types.Entity, cue string) string {
	var sb strings.Builder
	sb.WriteString(OpeningPreamble)
	sb.WriteString(instruction)
	sb.WriteString("\n")
	sb.WriteString(entity.Name)
	sb.WriteString("\n")
	sb.WriteString(entity.Background)
	sb.WriteString("\n")
	sb.WriteString(cue)
	return sb.String()
}

func TurnPrompt(previousReply, instruction string, entity types.Entity, history []Turn, cue string) string {
	var sb strings.Builder
	sb.WriteString(TurnPreamble)
	sb.WriteString(previousReply)
	sb.WriteString(" ")
	sb.WriteString(instruction)
	sb.WriteString("\n")
	sb.WriteString(entityBlock(entity))
	sb.WriteString(Transcript(history))
	sb.WriteString("\n")
	sb.WriteString(cue)
	return sb.String()
}

func entityBlock(e types.Entity) string {
	if e.Name == "" && e.Type == "" && e.Background == "" {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Entity: ")
	sb.WriteString(e.Name)
	if e.Type != "" {
		sb.WriteString(" (")
		sb.WriteString(e.Type)
		sb.WriteString(")")
	}
	sb.WriteString("\n")
	if bg := strings.TrimSpace(e.Background); bg != "" {
		sb.WriteString(bg)
		sb.WriteString("\n")
	}
	return sb.String()
}

// Transcript renders each turn as "<cue> <utterance>", one per line.
func Transcript(history []Turn) string {
	lines := make([]string, 0, len(history))
	for _, t := range history {
		lines = append(lines, strings.TrimSpace(t.Cue+" "+t.Utterance.Text))
	}
	return strings.Join(lines, "\n")
}
