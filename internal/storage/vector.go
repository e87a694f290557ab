package storage

import (
	"encoding/base64"
	"encoding/binary"
	"math"
	"strings"
	"unicode"
)

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	if len(blob) == 0 {
		return nil
	}
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// encodeVector is serializeVector as base64, for stores without blob fields
func encodeVector(vector []float32) string {
	return base64.StdEncoding.EncodeToString(serializeVector(vector))
}

func decodeVector(s string) []float32 {
	blob, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil
	}
	return deserializeVector(blob)
}

// queryTerms splits a free-text query into word terms. Everything that is
// not a letter, digit or underscore separates terms, so FTS5 operators and
// punctuation never reach the query parser.
func queryTerms(query string) []string {
	return strings.FieldsFunc(query, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

// buildFTSQuery produces an FTS5 expression that matches any term in any of
// the given columns: {c1 c2} : ("t1" OR "t2").
func buildFTSQuery(fields, terms []string) string {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return "{" + strings.Join(fields, " ") + "} : (" + strings.Join(quoted, " OR ") + ")"
}
