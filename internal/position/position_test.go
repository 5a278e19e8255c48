package position

import "testing"

func TestPositionFromOffset(t *testing.T) {
	sf := NewSourceFile("main.rv", []byte("fn main() {\n    let x = 5;\n}\n"))

	tests := []struct {
		offset int
		line   int
		column int
	}{
		{0, 1, 1},
		{3, 1, 4},
		{11, 1, 12},
		{12, 2, 1},
		{16, 2, 5},
		{27, 3, 1},
		{28, 3, 2},
	}

	for i, tt := range tests {
		pos := sf.PositionFromOffset(tt.offset)
		if pos.Line != tt.line || pos.Column != tt.column {
			t.Fatalf("tests[%d] - offset %d: expected=%d:%d, got=%d:%d",
				i, tt.offset, tt.line, tt.column, pos.Line, pos.Column)
		}
		if pos.Offset != tt.offset {
			t.Fatalf("tests[%d] - offset not preserved: %d", i, pos.Offset)
		}
	}
}

func TestPositionFromOffsetOutOfRange(t *testing.T) {
	sf := NewSourceFile("a.rv", []byte("abc"))

	if pos := sf.PositionFromOffset(-1); pos.IsValid() {
		t.Errorf("negative offset should be invalid, got %v", pos)
	}
	if pos := sf.PositionFromOffset(4); pos.IsValid() {
		t.Errorf("offset past the end should be invalid, got %v", pos)
	}
	if pos := sf.PositionFromOffset(3); !pos.IsValid() {
		t.Errorf("end-of-file offset should be valid")
	}
}

func TestPositionString(t *testing.T) {
	p := Position{Filename: "dir/main.rv", Line: 3, Column: 7, Offset: 20}
	if got := p.String(); got != "main.rv:3:7" {
		t.Errorf("expected main.rv:3:7, got %s", got)
	}

	p.Filename = ""
	if got := p.String(); got != "3:7" {
		t.Errorf("expected 3:7, got %s", got)
	}
}

func TestSpanText(t *testing.T) {
	buf := []byte("let value = 5;")
	s := Span{Start: 4, End: 9}

	if got := s.Text(buf); got != "value" {
		t.Errorf("expected value, got %q", got)
	}
	if s.Len() != 5 {
		t.Errorf("expected length 5, got %d", s.Len())
	}
	if got := (Span{Start: 10, End: 40}).Text(buf); got != "" {
		t.Errorf("out of range span should be empty, got %q", got)
	}
}
