// Package position provides source code position tracking for the Raven
// compiler. Tokens only carry byte offsets; this package turns those offsets
// into file/line/column positions when an error has to be reported.
package position

import (
	"fmt"
	"path/filepath"
	"sort"
)

// Position represents a single point in source code
type Position struct {
	Filename string // Source file name
	Line     int    // 1-based line number
	Column   int    // 1-based column number
	Offset   int    // 0-based byte offset in source
}

// IsValid returns true if the position is valid
func (p Position) IsValid() bool {
	return p.Line > 0 && p.Column > 0 && p.Offset >= 0
}

// String returns a string representation of the position
func (p Position) String() string {
	if p.Filename != "" {
		return fmt.Sprintf("%s:%d:%d", filepath.Base(p.Filename), p.Line, p.Column)
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Before returns true if this position comes before other
func (p Position) Before(other Position) bool {
	if p.Filename != other.Filename {
		return p.Filename < other.Filename
	}
	return p.Offset < other.Offset
}

// Span is a half-open byte range [Start, End) into a source buffer.
type Span struct {
	Start int
	End   int
}

// Len returns the length of the span in bytes
func (s Span) Len() int {
	return s.End - s.Start
}

// Text returns the bytes of buffer covered by the span as a string.
func (s Span) Text(buffer []byte) string {
	if s.Start < 0 || s.End > len(buffer) || s.Start > s.End {
		return ""
	}
	return string(buffer[s.Start:s.End])
}

// SourceFile represents a source file with its line table
type SourceFile struct {
	Filename   string // File path
	Content    []byte // Source code content
	lineStarts []int
}

// NewSourceFile creates a new source file from content
func NewSourceFile(filename string, content []byte) *SourceFile {
	starts := []int{0}
	for i, b := range content {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &SourceFile{
		Filename:   filename,
		Content:    content,
		lineStarts: starts,
	}
}

// LineCount returns the number of lines in the file
func (sf *SourceFile) LineCount() int {
	return len(sf.lineStarts)
}

// PositionFromOffset converts a byte offset to a Position
func (sf *SourceFile) PositionFromOffset(offset int) Position {
	if offset < 0 || offset > len(sf.Content) {
		return Position{Filename: sf.Filename}
	}

	// index of the last line start <= offset
	line := sort.Search(len(sf.lineStarts), func(i int) bool {
		return sf.lineStarts[i] > offset
	})

	return Position{
		Filename: sf.Filename,
		Line:     line,
		Column:   offset - sf.lineStarts[line-1] + 1,
		Offset:   offset,
	}
}
