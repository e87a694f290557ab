package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/mgrep/internal/parser"
	"github.com/dshills/mgrep/pkg/types"
)

func numberedLines(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d", i)
	}
	return lines
}

func TestNew(t *testing.T) {
	assert.Equal(t, ChunkSize, New().size)
}

func TestChunkDefinitions_FunctionWindows(t *testing.T) {
	def := types.Definition{
		Name:      "process",
		Kind:      types.KindFunction,
		Content:   strings.Join(numberedLines(45), "\n"),
		StartLine: 10,
		EndLine:   54,
	}

	chunks := New().ChunkDefinitions([]types.Definition{def}, "python")
	require.Len(t, chunks, 3)

	wantRanges := [][2]int{{10, 29}, {30, 49}, {50, 54}}
	for i, c := range chunks {
		assert.Equal(t, wantRanges[i][0], c.StartLine, "chunk %d start", i)
		assert.Equal(t, wantRanges[i][1], c.EndLine, "chunk %d end", i)
		assert.Equal(t, "process", c.FunctionName)
		assert.Empty(t, c.ClassName)
		assert.Equal(t, "python", c.Language)
		assert.True(t, c.HasLines)
		assert.LessOrEqual(t, c.LineCount(), ChunkSize)
	}
	assert.True(t, strings.HasPrefix(chunks[1].Content, "line 20\n"))
	assert.True(t, strings.HasSuffix(chunks[2].Content, "line 44"))
}

func TestChunkDefinitions_ClassTagging(t *testing.T) {
	defs := []types.Definition{
		{Name: "Widget", Kind: types.KindClass, Content: "class Widget:\n    pass", StartLine: 0, EndLine: 1},
		{Name: "", Kind: types.KindFunction, Content: "def (): pass", StartLine: 3, EndLine: 3},
	}

	chunks := New().ChunkDefinitions(defs, "python")
	require.Len(t, chunks, 2)

	assert.Equal(t, "Widget", chunks[0].ClassName)
	assert.Empty(t, chunks[0].FunctionName)
	assert.Equal(t, 0, chunks[0].StartLine)
	assert.Equal(t, 1, chunks[0].EndLine)

	assert.Equal(t, types.UnnamedDefinition, chunks[1].FunctionName)
	assert.Equal(t, 3, chunks[1].StartLine)
	assert.Equal(t, 3, chunks[1].EndLine)
}

func TestChunkDefinitions_BlankWindowSkippedKeepsOffsets(t *testing.T) {
	lines := numberedLines(60)
	for i := 20; i < 40; i++ {
		lines[i] = "   "
	}
	def := types.Definition{Name: "f", Kind: types.KindFunction, Content: strings.Join(lines, "\n"), StartLine: 100}

	chunks := New().ChunkDefinitions([]types.Definition{def}, "go")
	require.Len(t, chunks, 2)
	assert.Equal(t, 100, chunks[0].StartLine)
	assert.Equal(t, 140, chunks[1].StartLine)
	assert.Equal(t, 159, chunks[1].EndLine)
}

func TestChunkDefinitions_FromParser(t *testing.T) {
	src := "def a():\n    return 1\n\n\nclass B:\n    def c(self):\n        pass\n"
	defs, err := parser.New().Parse([]byte(src), "python")
	require.NoError(t, err)

	chunks := New().ChunkDefinitions(defs, "python")
	require.Len(t, chunks, 3)
	assert.Equal(t, "a", chunks[0].FunctionName)
	assert.Equal(t, "B", chunks[1].ClassName)
	assert.Equal(t, 4, chunks[1].StartLine)
	assert.Equal(t, 6, chunks[1].EndLine)
	assert.Equal(t, "c", chunks[2].FunctionName)
	assert.Equal(t, 5, chunks[2].StartLine)
}

func TestChunkDefinitions_Deterministic(t *testing.T) {
	def := types.Definition{Name: "f", Kind: types.KindFunction, Content: strings.Join(numberedLines(33), "\n"), StartLine: 2}
	c := New()
	assert.Equal(t, c.ChunkDefinitions([]types.Definition{def}, "go"), c.ChunkDefinitions([]types.Definition{def}, "go"))
}

func TestChunkText(t *testing.T) {
	text := strings.Join(numberedLines(50), "\n")

	chunks := New().ChunkText(text)
	require.Len(t, chunks, 3)
	assert.Equal(t, 0, chunks[0].StartLine)
	assert.Equal(t, 19, chunks[0].EndLine)
	assert.Equal(t, 40, chunks[2].StartLine)
	assert.Equal(t, 49, chunks[2].EndLine)

	for _, c := range chunks {
		assert.Empty(t, c.Language)
		assert.Empty(t, c.ClassName)
		assert.Empty(t, c.FunctionName)
	}
}

func TestChunkText_Blank(t *testing.T) {
	assert.Empty(t, New().ChunkText(""))
	assert.Empty(t, New().ChunkText("\n\n   \n\t"))
}

func TestChunkText_SplitsOnNewlineOnly(t *testing.T) {
	chunks := New().ChunkText("a\rb\nc")
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].StartLine)
	assert.Equal(t, 1, chunks[0].EndLine)
}

func TestChunkCaption(t *testing.T) {
	chunks := New().ChunkCaption("A diagram of the request flow")
	require.Len(t, chunks, 1)
	assert.False(t, chunks[0].HasLines)
	assert.Equal(t, 0, chunks[0].LineCount())
	assert.Equal(t, "A diagram of the request flow", chunks[0].Content)
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{"a\n", []string{"a"}},
		{"a\nb", []string{"a", "b"}},
		{"a\r\nb", []string{"a", "b"}},
		{"a\rb", []string{"a", "b"}},
		{"a\n\nb", []string{"a", "", "b"}},
		{"a\fb\vc", []string{"a", "b", "c"}},
		{"a\u2028b", []string{"a", "b"}},
		{"\n", []string{""}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, splitLines(tt.in))
		})
	}
}
