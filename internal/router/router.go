// Package router maps file paths to the pipeline that indexes them.
package router

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dshills/mgrep/pkg/types"
)

// Document sub-types understood by the extractor
const (
	SubtypePDF      = "pdf"
	SubtypeDOCX     = "docx"
	SubtypeText     = "text"
	SubtypeMarkdown = "markdown"
)

// Decision is the routing outcome for one file
type Decision struct {
	ContentType types.ContentType
	Subtype     string // document sub-type, empty otherwise
	Language    string // parser grammar, empty unless ContentType is code
	Extension   string
}

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
}

var documentExtensions = map[string]string{
	".pdf":      SubtypePDF,
	".docx":     SubtypeDOCX,
	".doc":      SubtypeDOCX,
	".txt":      SubtypeText,
	".md":       SubtypeMarkdown,
	".markdown": SubtypeMarkdown,
}

var codeExtensions = map[string]string{
	".py": "python",
	".go": "go",
}

// Route classifies filePath by its lower-cased extension. Image extensions
// win over document extensions, which win over code extensions.
func Route(filePath string) (Decision, error) {
	ext := strings.ToLower(filepath.Ext(filePath))

	if imageExtensions[ext] {
		return Decision{ContentType: types.ContentImage, Extension: ext}, nil
	}
	if subtype, ok := documentExtensions[ext]; ok {
		return Decision{ContentType: types.ContentDocument, Subtype: subtype, Extension: ext}, nil
	}
	if lang, ok := codeExtensions[ext]; ok {
		return Decision{ContentType: types.ContentCode, Language: lang, Extension: ext}, nil
	}

	if ext == "" {
		return Decision{}, fmt.Errorf("%w: %s has no extension", types.ErrUnsupportedType, filePath)
	}
	return Decision{}, fmt.Errorf("%w: %s", types.ErrUnsupportedType, ext)
}

// IsSupported reports whether filePath has a routable extension.
func IsSupported(filePath string) bool {
	_, err := Route(filePath)
	return err == nil
}

// SupportedExtensions returns every routable extension, sorted.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(imageExtensions)+len(documentExtensions)+len(codeExtensions))
	for ext := range imageExtensions {
		exts = append(exts, ext)
	}
	for ext := range documentExtensions {
		exts = append(exts, ext)
	}
	for ext := range codeExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
