package types

// ContentType classifies the source a document was derived from
type ContentType string

const (
	ContentCode     ContentType = "code"
	ContentImage    ContentType = "image"
	ContentDocument ContentType = "document"
)

// Valid reports whether ct is one of the known content types.
func (ct ContentType) Valid() bool {
	switch ct {
	case ContentCode, ContentImage, ContentDocument:
		return true
	default:
		return false
	}
}

// Document is the unit stored in the search collection. Every chunk of every
// indexed file becomes one Document.
type Document struct {
	// Identification
	ID string `json:"id,omitempty"`

	// Scope
	UserID      string `json:"user_id"`
	ProjectName string `json:"project_name"`
	FilePath    string `json:"file_path"`

	// Classification - nullable fields are nil when not applicable
	ContentType  ContentType `json:"content_type"`
	Language     *string     `json:"language"`
	ClassName    *string     `json:"class_name"`
	FunctionName *string     `json:"function_name"`

	// Content
	CodeContent string    `json:"code_content"`
	Embedding   []float32 `json:"embedding,omitempty"`

	// Location (0-based, inclusive). Nil for image captions.
	LineStart *int `json:"line_start"`
	LineEnd   *int `json:"line_end"`
}

// Validate checks the invariants every stored document must satisfy
func (d *Document) Validate() error {
	if d.UserID == "" || d.ProjectName == "" || d.FilePath == "" {
		return ErrMissingScope
	}

	if !d.ContentType.Valid() {
		return ErrInvalidContent
	}

	if d.LineStart != nil && d.LineEnd != nil && *d.LineStart > *d.LineEnd {
		return ErrInvalidLines
	}

	return nil
}

// WithoutEmbedding returns a shallow copy with the vector removed.
func (d Document) WithoutEmbedding() Document {
	d.Embedding = nil
	return d
}

// Filters scope store operations. Empty fields are unconstrained; set fields
// are matched exactly and combined with AND.
type Filters struct {
	UserID      string
	ProjectName string
	FilePath    string
}

// IsEmpty reports whether no field constrains the scope.
func (f Filters) IsEmpty() bool {
	return f.UserID == "" && f.ProjectName == "" && f.FilePath == ""
}

// Matches reports whether doc falls inside the scope.
func (f Filters) Matches(doc *Document) bool {
	if f.UserID != "" && doc.UserID != f.UserID {
		return false
	}
	if f.ProjectName != "" && doc.ProjectName != f.ProjectName {
		return false
	}
	if f.FilePath != "" && doc.FilePath != f.FilePath {
		return false
	}
	return true
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// IntPtr returns a pointer to n.
func IntPtr(n int) *int {
	return &n
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
