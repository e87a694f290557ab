package parser

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"

	"github.com/dshills/mgrep/pkg/types"
)

// goGrammar uses the standard library AST. Functions and methods become
// function definitions; struct and interface types become class definitions.
type goGrammar struct{}

func (goGrammar) Definitions(src []byte) ([]types.Definition, error) {
	fset := token.NewFileSet()

	file, err := parser.ParseFile(fset, "", src, parser.ParseComments)
	if file == nil {
		return nil, fmt.Errorf("syntax error: %w", err)
	}
	// Syntax errors are non-fatal when a partial AST is available

	e := &definitionExtractor{fset: fset, src: src}
	ast.Inspect(file, e.visit)
	return e.defs, nil
}

// definitionExtractor is a visitor that collects definitions in source order
type definitionExtractor struct {
	fset *token.FileSet
	src  []byte
	defs []types.Definition
}

func (e *definitionExtractor) visit(node ast.Node) bool {
	if node == nil {
		return false
	}

	switch n := node.(type) {
	case *ast.FuncDecl:
		e.add(n.Name.Name, types.KindFunction, n.Pos(), n.End())
	case *ast.GenDecl:
		if n.Tok != token.TYPE {
			return true
		}
		for _, spec := range n.Specs {
			ts, ok := spec.(*ast.TypeSpec)
			if !ok || !isClassLike(ts.Type) {
				continue
			}
			// A lone unparenthesised spec spans from the type keyword
			start, end := ts.Pos(), ts.End()
			if !n.Lparen.IsValid() && len(n.Specs) == 1 {
				start, end = n.Pos(), n.End()
			}
			e.add(ts.Name.Name, types.KindClass, start, end)
		}
	}

	return true
}

func (e *definitionExtractor) add(name string, kind types.DefinitionKind, start, end token.Pos) {
	startPos := e.fset.PositionFor(start, false)
	endPos := e.fset.PositionFor(end, false)
	if startPos.Offset < 0 || endPos.Offset > len(e.src) || startPos.Offset > endPos.Offset {
		return
	}

	e.defs = append(e.defs, types.Definition{
		Name:      name,
		Kind:      kind,
		Content:   string(e.src[startPos.Offset:endPos.Offset]),
		StartLine: startPos.Line - 1,
		EndLine:   endPos.Line - 1,
	})
}

func isClassLike(expr ast.Expr) bool {
	switch expr.(type) {
	case *ast.StructType, *ast.InterfaceType:
		return true
	default:
		return false
	}
}
