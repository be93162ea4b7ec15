// Package extract isolates the newly generated turn from a raw completion and
// trims it to a sentence boundary.
package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// speakerLabel matches a speaker prefix at the start of a line: a bare
// speaker word ("User:", "Assistant:") or a possessive cue of a few words
// ("Agent's potential answer:"). Sentences that merely open with a speaker
// word, such as "User reviews are mixed:", are not labels.
var speakerLabel = regexp.MustCompile(`(?mi)^[ \t]*(?:user|agent|assistant|human|system|bot|customer)(?:(?:'s|’s)(?:[ \t]+[\p{L}-]+){0,5})?[ \t]*:`)

const sentenceEnders = ".!?…。！？"

// FilterNewTurn returns the first turn written after prompt in output. The
// prompt is removed when the model echoed it (any number of times), a leading
// speaker label is dropped and everything from the next speaker label on is
// discarded. The result never starts with prompt.
func FilterNewTurn(output, prompt string) string {
	text := strings.TrimLeft(stripPrompt(output, prompt), " \t\r\n")

	if loc := speakerLabel.FindStringIndex(text); loc != nil && loc[0] == 0 {
		text = text[loc[1]:]
	}
	for _, loc := range speakerLabel.FindAllStringIndex(text, -1) {
		if loc[0] > 0 {
			text = text[:loc[0]]
			break
		}
	}
	return strings.TrimSpace(stripPrompt(strings.TrimSpace(text), prompt))
}

func stripPrompt(text, prompt string) string {
	if prompt == "" {
		return text
	}
	trimmedPrompt := strings.TrimSpace(prompt)
	for {
		lead := strings.TrimLeft(text, " \t\r\n")
		switch {
		case strings.HasPrefix(text, prompt):
			text = text[len(prompt):]
		case trimmedPrompt != "" && strings.HasPrefix(lead, trimmedPrompt):
			text = lead[len(trimmedPrompt):]
		default:
			idx := strings.Index(text, prompt)
			if idx < 0 {
				return text
			}
			text = text[idx+len(prompt):]
		}
	}
}

// TrimToLastPunctuation cuts text after its last sentence-ending mark. Text
// without such a mark is returned unchanged.
func TrimToLastPunctuation(text string) string {
	idx := strings.LastIndexAny(text, sentenceEnders)
	if idx < 0 {
		return text
	}
	_, size := utf8.DecodeRuneInString(text[idx:])
	return text[:idx+size]
}

// FirstLine returns the first non-blank line of text, trimmed.
func FirstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// Utterance runs the extraction pipeline for one dialogue turn.
func Utterance(output, prompt string) string {
	return strings.TrimSpace(TrimToLastPunctuation(FilterNewTurn(output, prompt)))
}
