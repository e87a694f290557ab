// Package types provides shared type definitions for mgrep.
//
// # Documents
//
// Document is the record written to the search collection. It is scoped by
// user, project and file path; those three keys are matched exactly by every
// store operation through Filters:
//
//	doc := &types.Document{
//	    UserID:       "alice",
//	    ProjectName:  "api",
//	    FilePath:     "handlers/auth.py",
//	    ContentType:  types.ContentCode,
//	    Language:     types.StringPtr("python"),
//	    FunctionName: types.StringPtr("login"),
//	    CodeContent:  body,
//	    LineStart:    types.IntPtr(10),
//	    LineEnd:      types.IntPtr(29),
//	}
//
// Language, ClassName, FunctionName, LineStart and LineEnd are pointers so
// absent values serialize as null. Image captions carry no line range.
//
// # Definitions and Chunks
//
// Definition is a class or function node produced by a code parser. Chunk is
// a window of lines cut from a definition or from extracted document text.
// Both use 0-based inclusive line numbers.
//
// # Errors
//
// Sentinel errors are wrapped with fmt.Errorf and tested with errors.Is:
//
//	if errors.Is(err, types.ErrUnsupportedType) { ... }
//	if errors.Is(err, types.ErrCapabilityNotConfigured) { ... }
package types
