package parser

import (
	"regexp"
	"strings"

	"github.com/dshills/mgrep/pkg/types"
)

var (
	pyFunctionHeader = regexp.MustCompile(`^(?:async\s+)?def\s+([A-Za-z_][A-Za-z0-9_]*)`)
	pyClassHeader    = regexp.MustCompile(`^class\s+([A-Za-z_][A-Za-z0-9_]*)`)
)

// pythonGrammar finds class and def blocks by indentation. Bracket
// continuations, backslash continuations and triple-quoted strings are
// tracked so only logical line starts can open or close a block.
type pythonGrammar struct{}

// pyLine describes one physical line of Python source
type pyLine struct {
	text    string
	logical bool // starts a logical line
	blank   bool // logical start holding only whitespace or a comment
	indent  int  // column width of leading whitespace, tabs to multiples of 8
	column  int  // byte offset of the first non-space character
}

func (pythonGrammar) Definitions(src []byte) ([]types.Definition, error) {
	lines := scanPythonLines(string(src))

	var defs []types.Definition
	for i, ln := range lines {
		if !ln.logical || ln.blank {
			continue
		}

		stripped := ln.text[ln.column:]
		var (
			kind types.DefinitionKind
			name string
		)
		if m := pyClassHeader.FindStringSubmatch(stripped); m != nil {
			kind, name = types.KindClass, m[1]
		} else if m := pyFunctionHeader.FindStringSubmatch(stripped); m != nil {
			kind, name = types.KindFunction, m[1]
		} else {
			continue
		}

		end := blockEnd(lines, i)
		body := make([]string, 0, end-i+1)
		body = append(body, stripped)
		for j := i + 1; j <= end; j++ {
			body = append(body, lines[j].text)
		}

		defs = append(defs, types.Definition{
			Name:      name,
			Kind:      kind,
			Content:   strings.Join(body, "\n"),
			StartLine: i,
			EndLine:   end,
		})
	}

	return defs, nil
}

// blockEnd returns the last line belonging to the block opened at header.
// Trailing blank and comment-only lines are not part of the block.
func blockEnd(lines []pyLine, header int) int {
	indent := lines[header].indent
	end := header

	for j := header + 1; j < len(lines); j++ {
		ln := lines[j]
		if !ln.logical {
			end = j
			continue
		}
		if ln.blank {
			continue
		}
		if ln.indent <= indent {
			break
		}
		end = j
	}

	return end
}

func scanPythonLines(src string) []pyLine {
	raw := strings.Split(src, "\n")
	if len(raw) > 0 && raw[len(raw)-1] == "" {
		raw = raw[:len(raw)-1]
	}

	lines := make([]pyLine, len(raw))
	var (
		depth        int
		triple       string
		continuation bool
	)

	for i, text := range raw {
		text = strings.TrimSuffix(text, "\r")
		ln := pyLine{text: text}

		if depth == 0 && triple == "" && !continuation {
			ln.logical = true
			ln.indent, ln.column = measureIndent(text)
			rest := text[ln.column:]
			ln.blank = rest == "" || strings.HasPrefix(rest, "#")
		}
		lines[i] = ln

		depth, triple, continuation = scanPythonLine(text, depth, triple)
	}

	return lines
}

func measureIndent(text string) (width, column int) {
	for column < len(text) {
		switch text[column] {
		case ' ':
			width++
		case '\t':
			width += 8 - width%8
		case '\f':
			width = 0
		default:
			return width, column
		}
		column++
	}
	return width, column
}

// scanPythonLine advances the tokenizer state across one physical line.
func scanPythonLine(text string, depth int, triple string) (int, string, bool) {
	i := 0
	for i < len(text) {
		if triple != "" {
			idx := indexUnescaped(text[i:], triple)
			if idx < 0 {
				return depth, triple, false
			}
			i += idx + len(triple)
			triple = ""
			continue
		}

		c := text[i]
		switch {
		case c == '#':
			return depth, "", false
		case c == '"' || c == '\'':
			q := text[i : i+1]
			if strings.HasPrefix(text[i:], q+q+q) {
				triple = q + q + q
				i += 3
				continue
			}
			idx := indexUnescaped(text[i+1:], q)
			if idx < 0 {
				// unterminated single-quoted string ends at the line
				return depth, "", strings.HasSuffix(text, "\\")
			}
			i += idx + 2
			continue
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			if depth > 0 {
				depth--
			}
		}
		i++
	}

	if triple != "" {
		return depth, triple, false
	}
	return depth, "", strings.HasSuffix(text, "\\")
}

// indexUnescaped finds delim in s, skipping backslash-escaped characters.
func indexUnescaped(s, delim string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' {
			i++
			continue
		}
		if strings.HasPrefix(s[i:], delim) {
			return i
		}
	}
	return -1
}
