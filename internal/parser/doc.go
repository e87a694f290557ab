// Package parser extracts class and function definitions from source code.
//
// Each supported language is served by a Grammar. Go source is parsed with the
// standard library (go/parser, go/ast, go/token); Python source is scanned by
// indentation with continuation and string tracking.
//
// # Basic Usage
//
//	p := parser.New()
//	defs, err := p.Parse(src, "python")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, def := range defs {
//	    fmt.Printf("%s %s lines %d-%d\n", def.Kind, def.Name, def.StartLine, def.EndLine)
//	}
//
// # Definitions
//
// Definitions are returned in source order, nested definitions included, so a
// method appears after the class that contains it. Content is the full source
// span of the node starting at its keyword. Line numbers are 0-based and
// inclusive.
//
// Go mapping:
//   - func declarations and methods are functions
//   - struct and interface type declarations are classes
//
// Python mapping:
//   - class blocks are classes
//   - def and async def blocks are functions
//
// # Error Handling
//
// Go syntax errors are non-fatal when a partial AST is available, matching
// how the rest of the pipeline treats partially valid files. An unknown
// language returns ErrUnsupportedGrammar.
package parser
