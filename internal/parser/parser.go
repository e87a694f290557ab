package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/mgrep/pkg/types"
)

// ErrUnsupportedGrammar is returned when no grammar is registered for a language
var ErrUnsupportedGrammar = errors.New("unsupported grammar")

// Grammar extracts class and function definitions from source code
type Grammar interface {
	Definitions(src []byte) ([]types.Definition, error)
}

// Parser dispatches source code to the grammar registered for its language
type Parser struct {
	grammars map[string]Grammar
}

// New creates a Parser with the built-in go and python grammars
func New() *Parser {
	return &Parser{
		grammars: map[string]Grammar{
			"go":     goGrammar{},
			"python": pythonGrammar{},
		},
	}
}

// Parse extracts every class and function definition from src, nested ones
// included, in source order. Lines are 0-based.
func (p *Parser) Parse(src []byte, language string) ([]types.Definition, error) {
	g, ok := p.grammars[language]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedGrammar, language)
	}

	defs, err := g.Definitions(src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s source: %w", language, err)
	}

	for i := range defs {
		if strings.TrimSpace(defs[i].Name) == "" {
			defs[i].Name = types.UnnamedDefinition
		}
	}
	return defs, nil
}
