package ui

import (
	"strings"
	"unicode/utf8"
)

// DefaultCommentWidth caps the comment column in tables.
const DefaultCommentWidth = 60

// TruncateSimple cuts text to maxLen runes, ending in "...".
func TruncateSimple(text string, maxLen int) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return "..."
	}
	runes := []rune(text)
	return string(runes[:maxLen-3]) + "..."
}

// OneLine collapses all runs of whitespace, newlines included, to a single
// space.
func OneLine(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// WrapText wraps each line of text at word boundaries to maxWidth runes.
// Words longer than maxWidth are left whole on their own line.
func WrapText(text string, maxWidth int) string {
	if maxWidth <= 0 {
		maxWidth = 80
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = wrapLine(line, maxWidth)
	}
	return strings.Join(lines, "\n")
}

func wrapLine(line string, maxWidth int) string {
	if utf8.RuneCountInString(line) <= maxWidth {
		return line
	}
	var b strings.Builder
	n := 0
	for _, word := range strings.Fields(line) {
		w := utf8.RuneCountInString(word)
		switch {
		case n == 0:
			n = w
		case n+1+w <= maxWidth:
			b.WriteByte(' ')
			n += 1 + w
		default:
			b.WriteByte('\n')
			n = w
		}
		b.WriteString(word)
	}
	return b.String()
}
