package ai

import (
	"strings"
	"unicode"
)

// ParseFields converts a free-text model response into a field/value mapping.
//
// Grammar: a line whose first token is digits followed by ". " starts a new
// field; the remainder is either "name: value" or just "name". Every later
// line that does not start a field continues the current value, joined with
// newlines. Leading list bullets ("-", "*") on continuation lines are kept
// as written.
//
// The second return value reports parse confidence: true when at least one
// ordinal-marked field was found and the marked lines account for the
// majority of non-empty input lines' structure (i.e. the response actually
// followed the checklist format).
func ParseFields(text string) (map[string]string, bool) {
	fields := map[string]string{}
	var (
		currentKey   string
		currentValue []string
		marked       int
		nonEmpty     int
	)

	flush := func() {
		if currentKey == "" {
			return
		}
		value := strings.TrimSpace(strings.Join(currentValue, "\n"))
		if value != "" {
			fields[currentKey] = value
		}
		currentKey = ""
		currentValue = nil
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		nonEmpty++

		rest, ok := stripOrdinal(line)
		if !ok {
			if currentKey != "" {
				currentValue = append(currentValue, line)
			}
			continue
		}
		marked++
		flush()

		if name, value, found := strings.Cut(rest, ":"); found {
			currentKey = strings.TrimSpace(name)
			if v := strings.TrimSpace(value); v != "" {
				currentValue = append(currentValue, v)
			}
		} else {
			currentKey = strings.TrimSpace(rest)
		}
	}
	flush()

	confident := marked > 0 && marked*2 >= nonEmpty
	return fields, confident
}

// stripOrdinal removes a leading "N. " marker, reporting whether one existed.
func stripOrdinal(line string) (string, bool) {
	i := 0
	for i < len(line) && unicode.IsDigit(rune(line[i])) {
		i++
	}
	if i == 0 {
		return line, false
	}
	rest := line[i:]
	if !strings.HasPrefix(rest, ". ") {
		return line, false
	}
	return strings.TrimSpace(rest[2:]), true
}
