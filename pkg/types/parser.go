package types

// DefinitionKind is the structural kind of a parsed definition
type DefinitionKind string

const (
	KindClass    DefinitionKind = "class"
	KindFunction DefinitionKind = "function"
)

// UnnamedDefinition is used when the parser cannot resolve a name.
const UnnamedDefinition = "Unnamed"

// Definition is a class or function node extracted from a syntax tree.
// Lines are 0-based and inclusive.
type Definition struct {
	Name      string
	Kind      DefinitionKind
	Content   string
	StartLine int
	EndLine   int
}
