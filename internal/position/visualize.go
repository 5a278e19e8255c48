package position

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Line returns the text of the 1-based line n without its line break.
func (sf *SourceFile) Line(n int) string {
	if n < 1 || n > len(sf.lineStarts) {
		return ""
	}
	start := sf.lineStarts[n-1]
	end := len(sf.Content)
	if n < len(sf.lineStarts) {
		end = sf.lineStarts[n] - 1
	}
	return strings.TrimSuffix(string(sf.Content[start:end]), "\r")
}

// Highlight renders the line holding pos with width carets under it:
//
//	   2 |     let x = 1.5;
//	     |             ^^^
//
// Tabs before the column are kept so the carets line up. width is clamped to
// the rest of the line and is at least one.
func (sf *SourceFile) Highlight(pos Position, width int) string {
	if !pos.IsValid() || pos.Line > len(sf.lineStarts) {
		return ""
	}
	line := sf.Line(pos.Line)

	var result strings.Builder
	result.WriteString(fmt.Sprintf("%4d | %s\n", pos.Line, line))
	result.WriteString("     | ")

	// columns count bytes; the padding walks runes
	prefix := line
	if pos.Column-1 < len(line) {
		prefix = line[:pos.Column-1]
	}
	for _, r := range prefix {
		if r == '\t' {
			result.WriteByte('\t')
		} else {
			result.WriteByte(' ')
		}
	}

	rest := utf8.RuneCountInString(line) - utf8.RuneCountInString(prefix)
	width = min(width, rest)
	result.WriteString(strings.Repeat("^", max(width, 1)))
	result.WriteByte('\n')
	return result.String()
}
