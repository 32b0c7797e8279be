// Package ai defines the optional text-understanding capability used to
// enrich structurally extracted bid fields, plus the parser for its
// free-text responses.
package ai

import (
	"context"
	"fmt"
	"strings"
)

// Extractor submits page text with a field checklist to an external model and
// returns its free-text response. Implementations are assumed unreliable;
// callers must degrade to structured-only extraction on any error.
type Extractor interface {
	Extract(ctx context.Context, text string, checklist []string) (string, error)
}

// BuildPrompt renders the fixed extraction prompt: the page text followed by
// a numbered field checklist. The model is asked for plain text, one numbered
// line per field, so the response stays parseable by ParseFields.
func BuildPrompt(text string, checklist []string) string {
	var b strings.Builder
	b.WriteString("The following is table data from a procurement bid notice detail page:\n\n")
	b.WriteString(text)
	b.WriteString("\n\nExtract the following fields. Respond in plain text, not JSON, ")
	b.WriteString("one numbered line per field in the form \"N. field: value\". ")
	b.WriteString("Write \"no data\" when the page has no information for a field.\n")
	for i, field := range checklist {
		fmt.Fprintf(&b, "%d. %s\n", i+1, field)
	}
	return b.String()
}

// TruncateMiddle bounds s to max runes by keeping the head and tail and
// dropping the middle. Table text front-loads identity fields and ends with
// contacts and attachments, so both ends carry signal.
func TruncateMiddle(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	const marker = "\n...\n"
	keep := max - len([]rune(marker))
	if keep <= 0 {
		return string(runes[:max])
	}
	head := keep / 2
	tail := keep - head
	return string(runes[:head]) + marker + string(runes[len(runes)-tail:])
}
