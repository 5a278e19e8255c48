package lexer

import (
	"fmt"
	"strings"
	"testing"
)

// generateSource creates Raven source with the given shape for benchmarks.
func generateSource(functions int, linesPerFunction int) string {
	var builder strings.Builder

	builder.WriteString("import std::math;\n\n")
	builder.WriteString("struct Point {\n")
	builder.WriteString("    x: f64;\n")
	builder.WriteString("    y: f64;\n")
	builder.WriteString("}\n\n")

	for i := 0; i < functions; i++ {
		builder.WriteString(fmt.Sprintf("fn distance_%d(p1: Point, p2: Point) -> f64 {\n", i))
		for j := 0; j < linesPerFunction; j++ {
			switch j % 6 {
			case 0:
				builder.WriteString(fmt.Sprintf("    let dx_%d = p2.x - p1.x;\n", j))
			case 1:
				builder.WriteString(fmt.Sprintf("    let dy_%d = p2.y - p1.y;\n", j))
			case 2:
				builder.WriteString(fmt.Sprintf("    let sq_%d = dx_%d * dx_%d + dy_%d * dy_%d;\n", j, j-2, j-2, j-1, j-1))
			case 3:
				builder.WriteString(fmt.Sprintf("    if sq_%d > 0.0 { print(\"distance %d\"); }\n", j-1, i))
			case 4:
				builder.WriteString(fmt.Sprintf("    // comment %d\n", j))
			case 5:
				builder.WriteString(fmt.Sprintf("    while dx_%d < 1.0 { break; }\n", j-5))
			}
		}
		builder.WriteString("    return 0.0;\n")
		builder.WriteString("}\n\n")
	}
	return builder.String()
}

func benchmarkTokenize(b *testing.B, functions, lines int) {
	source := []byte(generateSource(functions, lines))
	b.SetBytes(int64(len(source)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tokens := Tokenize(source)
		if tokens[len(tokens)-1].Type != TokenEOF {
			b.Fatal("missing EOF")
		}
	}
}

func BenchmarkTokenize_SmallFile(b *testing.B)  { benchmarkTokenize(b, 5, 12) }
func BenchmarkTokenize_MediumFile(b *testing.B) { benchmarkTokenize(b, 50, 24) }
func BenchmarkTokenize_LargeFile(b *testing.B)  { benchmarkTokenize(b, 400, 36) }

func BenchmarkTokenize_Parallel(b *testing.B) {
	source := []byte(generateSource(50, 24))
	b.SetBytes(int64(len(source)))
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			Tokenize(source)
		}
	})
}

func TestGeneratedSourceHasNoInvalidTokens(t *testing.T) {
	source := []byte(generateSource(3, 12))
	for i, tok := range Tokenize(source) {
		if tok.Type == TokenInvalidCharacters {
			t.Fatalf("tokens[%d] - invalid characters %q", i, tok.Text(source))
		}
	}
}
