package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/dshills/mgrep/pkg/types"
)

// ChunkSize is the maximum number of lines per chunk
const ChunkSize = 20

// Chunker cuts definitions and extracted text into fixed line windows
type Chunker struct {
	size int
}

// New creates a Chunker using ChunkSize windows
func New() *Chunker {
	return &Chunker{size: ChunkSize}
}

// ChunkDefinitions windows each definition's content. Line numbers are
// offset by the definition's start line so they stay absolute within the
// source file. Each chunk is tagged with the definition name as either a
// class or a function name.
func (c *Chunker) ChunkDefinitions(defs []types.Definition, language string) []types.Chunk {
	chunks := make([]types.Chunk, 0, len(defs))

	for _, def := range defs {
		name := def.Name
		if strings.TrimSpace(name) == "" {
			name = types.UnnamedDefinition
		}

		for _, w := range c.windows(splitLines(def.Content)) {
			chunk := types.Chunk{
				Content:   w.text,
				Language:  language,
				HasLines:  true,
				StartLine: def.StartLine + w.offset,
				EndLine:   def.StartLine + w.offset + w.length - 1,
			}
			if def.Kind == types.KindClass {
				chunk.ClassName = name
			} else {
				chunk.FunctionName = name
			}
			chunks = append(chunks, chunk)
		}
	}

	return chunks
}

// ChunkText windows extracted document text. Lines are split on "\n" only
// and numbered from the start of the text.
func (c *Chunker) ChunkText(text string) []types.Chunk {
	windows := c.windows(strings.Split(text, "\n"))

	chunks := make([]types.Chunk, 0, len(windows))
	for _, w := range windows {
		chunks = append(chunks, types.Chunk{
			Content:   w.text,
			HasLines:  true,
			StartLine: w.offset,
			EndLine:   w.offset + w.length - 1,
		})
	}
	return chunks
}

// ChunkCaption wraps an image description as a single chunk without a line range.
func (c *Chunker) ChunkCaption(caption string) []types.Chunk {
	return []types.Chunk{{Content: caption}}
}

// window is one group of consecutive lines
type window struct {
	text   string
	offset int // index of the first line
	length int // number of lines
}

// windows groups lines into non-overlapping runs of c.size. Runs that are
// blank once joined are dropped; offsets of the remaining runs are unaffected.
func (c *Chunker) windows(lines []string) []window {
	out := make([]window, 0, (len(lines)+c.size-1)/c.size)

	for i := 0; i < len(lines); i += c.size {
		end := i + c.size
		if end > len(lines) {
			end = len(lines)
		}

		text := strings.Join(lines[i:end], "\n")
		if strings.TrimSpace(text) == "" {
			continue
		}

		out = append(out, window{text: text, offset: i, length: end - i})
	}

	return out
}

// splitLines splits on every line boundary recognised by Python's
// str.splitlines: \n, \r, \r\n, \v, \f, \x1c-\x1e, \x85, U+2028 and U+2029.
// A trailing boundary does not produce an empty final line.
func splitLines(s string) []string {
	var lines []string
	start := 0

	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch r {
		case '\r':
			lines = append(lines, s[start:i])
			if i+1 < len(s) && s[i+1] == '\n' {
				size = 2
			}
			start = i + size
		case '\n', '\v', '\f', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
			lines = append(lines, s[start:i])
			start = i + size
		}
		i += size
	}

	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
