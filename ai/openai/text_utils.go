package openai

import "strings"

// cleanAnswer trims whitespace, surrounding quotes and a leading "Answer:"
// label that small models like to emit.
func cleanAnswer(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 6 && strings.EqualFold(s[:6], "answer") {
		rest := strings.TrimLeft(s[6:], " ")
		if strings.HasPrefix(rest, ":") {
			s = strings.TrimSpace(rest[1:])
		}
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}
