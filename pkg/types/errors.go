package types

import "errors"

// Domain errors shared across the indexing and retrieval pipelines.
var (
	// Input errors
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnsupportedType = errors.New("unsupported file type")

	// Capability errors
	ErrCapabilityNotConfigured = errors.New("capability not configured")
	ErrExtractionFailed        = errors.New("text extraction failed")

	// Retrieval errors
	ErrSearchFailed = errors.New("search failed")

	// Document validation errors
	ErrMissingScope   = errors.New("user_id, project_name and file_path are required")
	ErrInvalidContent = errors.New("invalid content type")
	ErrInvalidLines   = errors.New("line_start must be before or equal to line_end")
)

// CapabilityError reports that an optional capability (vision, for example)
// was requested but has no backing implementation.
type CapabilityError struct {
	Capability string
}

// Error implements the error interface
func (e *CapabilityError) Error() string {
	return e.Capability + ": " + ErrCapabilityNotConfigured.Error()
}

// Unwrap lets errors.Is match ErrCapabilityNotConfigured.
func (e *CapabilityError) Unwrap() error {
	return ErrCapabilityNotConfigured
}
