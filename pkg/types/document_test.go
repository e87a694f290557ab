package types

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentValidate(t *testing.T) {
	tests := []struct {
		name    string
		doc     Document
		wantErr error
	}{
		{
			name: "valid code document",
			doc: Document{
				UserID: "u", ProjectName: "p", FilePath: "a.py",
				ContentType: ContentCode, LineStart: IntPtr(0), LineEnd: IntPtr(19),
			},
		},
		{
			name:    "missing scope",
			doc:     Document{UserID: "u", FilePath: "a.py", ContentType: ContentCode},
			wantErr: ErrMissingScope,
		},
		{
			name:    "unknown content type",
			doc:     Document{UserID: "u", ProjectName: "p", FilePath: "a", ContentType: "video"},
			wantErr: ErrInvalidContent,
		},
		{
			name: "inverted lines",
			doc: Document{
				UserID: "u", ProjectName: "p", FilePath: "a.py",
				ContentType: ContentCode, LineStart: IntPtr(5), LineEnd: IntPtr(4),
			},
			wantErr: ErrInvalidLines,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.doc.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDocumentJSONNulls(t *testing.T) {
	doc := Document{
		UserID: "u", ProjectName: "p", FilePath: "cat.png",
		ContentType: ContentImage, CodeContent: "a cat",
	}

	data, err := json.Marshal(doc)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))

	for _, key := range []string{"language", "class_name", "function_name", "line_start", "line_end"} {
		v, ok := raw[key]
		assert.True(t, ok, "key %s should be present", key)
		assert.Nil(t, v, "key %s should be null", key)
	}
	_, hasEmbedding := raw["embedding"]
	assert.False(t, hasEmbedding)
}

func TestFilters(t *testing.T) {
	doc := &Document{UserID: "u1", ProjectName: "p1", FilePath: "f.py"}

	assert.True(t, Filters{}.IsEmpty())
	assert.True(t, Filters{}.Matches(doc))
	assert.True(t, Filters{UserID: "u1"}.Matches(doc))
	assert.True(t, Filters{UserID: "u1", ProjectName: "p1", FilePath: "f.py"}.Matches(doc))
	assert.False(t, Filters{UserID: "u2"}.Matches(doc))
	assert.False(t, Filters{UserID: "u1", ProjectName: "p2"}.Matches(doc))
}

func TestCapabilityError(t *testing.T) {
	err := error(&CapabilityError{Capability: "vision"})
	assert.True(t, errors.Is(err, ErrCapabilityNotConfigured))
	assert.Equal(t, "vision: capability not configured", err.Error())
}

func TestStringPtr(t *testing.T) {
	assert.Nil(t, StringPtr(""))
	assert.Equal(t, "go", Deref(StringPtr("go")))
	assert.Equal(t, "", Deref(nil))
}
