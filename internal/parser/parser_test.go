package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/mgrep/pkg/types"
)

func TestNew(t *testing.T) {
	p := New()
	assert.Len(t, p.grammars, 2)
	assert.Contains(t, p.grammars, "go")
	assert.Contains(t, p.grammars, "python")
}

func TestParse_UnsupportedGrammar(t *testing.T) {
	p := New()
	_, err := p.Parse([]byte("fn main() {}"), "rust")
	assert.ErrorIs(t, err, ErrUnsupportedGrammar)
}

func TestParse_Go(t *testing.T) {
	src := `package testpkg

import "fmt"

// User represents a user in the system
type User struct {
	ID   int
	Name string
}

// GetName returns the user's name
func (u *User) GetName() string {
	return u.Name
}

type (
	Reader interface {
		Read() error
	}
	ID int
)

func NewUser(id int, name string) *User {
	fmt.Println(id)
	return &User{ID: id, Name: name}
}
`
	p := New()
	defs, err := p.Parse([]byte(src), "go")
	require.NoError(t, err)
	require.Len(t, defs, 4)

	assert.Equal(t, "User", defs[0].Name)
	assert.Equal(t, types.KindClass, defs[0].Kind)
	assert.Equal(t, 5, defs[0].StartLine)
	assert.Equal(t, 8, defs[0].EndLine)
	assert.True(t, strings.HasPrefix(defs[0].Content, "type User struct {"))

	assert.Equal(t, "GetName", defs[1].Name)
	assert.Equal(t, types.KindFunction, defs[1].Kind)
	assert.Equal(t, 11, defs[1].StartLine)
	assert.Equal(t, 13, defs[1].EndLine)
	assert.Equal(t, "func (u *User) GetName() string {\n\treturn u.Name\n}", defs[1].Content)

	assert.Equal(t, "Reader", defs[2].Name)
	assert.Equal(t, types.KindClass, defs[2].Kind)
	assert.True(t, strings.HasPrefix(defs[2].Content, "Reader interface {"))

	assert.Equal(t, "NewUser", defs[3].Name)
	assert.Equal(t, 22, defs[3].StartLine)
}

func TestParse_GoSyntaxErrorPartial(t *testing.T) {
	src := `package broken

func Good() int {
	return 1
}

func Bad( {
`
	p := New()
	defs, err := p.Parse([]byte(src), "go")
	require.NoError(t, err)

	names := make([]string, 0, len(defs))
	for _, d := range defs {
		names = append(names, d.Name)
	}
	assert.Contains(t, names, "Good")
}

func TestParse_GoLineDirectiveIgnored(t *testing.T) {
	src := "package p\n\n//line gen.go:500\nfunc f() {\n}\n"

	defs, err := New().Parse([]byte(src), "go")
	require.NoError(t, err)
	require.Len(t, defs, 1)

	assert.Equal(t, "f", defs[0].Name)
	assert.Equal(t, 3, defs[0].StartLine)
	assert.Equal(t, 4, defs[0].EndLine)
	assert.Equal(t, "func f() {\n}", defs[0].Content)
}

func TestParse_Python(t *testing.T) {
	src := `import os


class Greeter:
    """Says hello.

    def not_a_method(self):
    """

    def greet(self, name):
        return f"hi {name}"

    async def fetch(self,
                    url):
        return await get(url)


def main():
    g = Greeter()
    print(g.greet("x"))
    # trailing comment


x = 1
`
	p := New()
	defs, err := p.Parse([]byte(src), "python")
	require.NoError(t, err)
	require.Len(t, defs, 4)

	assert.Equal(t, types.Definition{
		Name:      "Greeter",
		Kind:      types.KindClass,
		StartLine: 3,
		EndLine:   14,
		Content:   strings.Join(strings.Split(src, "\n")[3:15], "\n"),
	}, defs[0])

	assert.Equal(t, "greet", defs[1].Name)
	assert.Equal(t, types.KindFunction, defs[1].Kind)
	assert.Equal(t, 9, defs[1].StartLine)
	assert.Equal(t, 10, defs[1].EndLine)
	assert.Equal(t, "def greet(self, name):\n        return f\"hi {name}\"", defs[1].Content)

	assert.Equal(t, "fetch", defs[2].Name)
	assert.Equal(t, 12, defs[2].StartLine)
	assert.Equal(t, 14, defs[2].EndLine)
	assert.True(t, strings.HasPrefix(defs[2].Content, "async def fetch(self,"))

	assert.Equal(t, "main", defs[3].Name)
	assert.Equal(t, 17, defs[3].StartLine)
	assert.Equal(t, 19, defs[3].EndLine)
}

func TestParse_PythonOneLiner(t *testing.T) {
	src := "def f(): return 1\ndef g():\n    pass\n"
	p := New()
	defs, err := p.Parse([]byte(src), "python")
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, 0, defs[0].StartLine)
	assert.Equal(t, 0, defs[0].EndLine)
	assert.Equal(t, 1, defs[1].StartLine)
	assert.Equal(t, 2, defs[1].EndLine)
}

func TestParse_PythonNoDefinitions(t *testing.T) {
	p := New()
	defs, err := p.Parse([]byte("x = 1\nprint(x)\n"), "python")
	require.NoError(t, err)
	assert.Empty(t, defs)
}

func TestParse_PythonBracketsAndStrings(t *testing.T) {
	src := `def f():
    data = {
'key': "value # not a comment",
    }
    return data
`
	p := New()
	defs, err := p.Parse([]byte(src), "python")
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, 4, defs[0].EndLine)
}

type stubGrammar struct{}

func (stubGrammar) Definitions([]byte) ([]types.Definition, error) {
	return []types.Definition{{Kind: types.KindFunction, Content: "x"}}, nil
}

func TestParse_UnnamedPlaceholder(t *testing.T) {
	p := New()
	p.grammars["stub"] = stubGrammar{}

	defs, err := p.Parse(nil, "stub")
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, types.UnnamedDefinition, defs[0].Name)
}
