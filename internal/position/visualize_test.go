package position

import "testing"

func TestLine(t *testing.T) {
	sf := NewSourceFile("main.rv", []byte("fn main() {\r\n\tlet x = 1;\n}"))
	tests := []struct {
		n        int
		expected string
	}{
		{1, "fn main() {"},
		{2, "\tlet x = 1;"},
		{3, "}"},
		{0, ""},
		{4, ""},
	}
	for i, tt := range tests {
		if got := sf.Line(tt.n); got != tt.expected {
			t.Fatalf("tests[%d] - expected=%q, got=%q", i, tt.expected, got)
		}
	}
}

func TestHighlight(t *testing.T) {
	sf := NewSourceFile("main.rv", []byte("fn main() {\n\tlet x = 1.5;\n}\n"))
	tests := []struct {
		offset   int
		width    int
		expected string
	}{
		{3, 4, "   1 | fn main() {\n     |    ^^^^\n"},
		{21, 3, "   2 | \tlet x = 1.5;\n     | \t        ^^^\n"},
		{21, 50, "   2 | \tlet x = 1.5;\n     | \t        ^^^^\n"},
		{0, 0, "   1 | fn main() {\n     | ^\n"},
	}
	for i, tt := range tests {
		got := sf.Highlight(sf.PositionFromOffset(tt.offset), tt.width)
		if got != tt.expected {
			t.Fatalf("tests[%d] - expected=%q, got=%q", i, tt.expected, got)
		}
	}
	if got := sf.Highlight(Position{}, 1); got != "" {
		t.Fatalf("an invalid position renders nothing, got %q", got)
	}
}
