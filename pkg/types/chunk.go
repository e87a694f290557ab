package types

// Chunk is a window of at most ChunkSize lines cut from a definition,
// a document's text, or an image caption.
type Chunk struct {
	Content string

	// Metadata carried onto the stored document
	Language     string
	ClassName    string
	FunctionName string

	// Location. HasLines is false for image captions.
	HasLines  bool
	StartLine int
	EndLine   int
}

// LineCount returns the number of lines the chunk spans.
func (c *Chunk) LineCount() int {
	if !c.HasLines {
		return 0
	}
	return c.EndLine - c.StartLine + 1
}
