package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/custodia-labs/propest/internal/core/domain"
	"github.com/custodia-labs/propest/internal/core/ports/driven"
)

// Ensure JSONReader implements the interface.
var _ driven.DatasetReader = (*JSONReader)(nil)

// file is the document layout shared by the JSON and YAML formats.
type file struct {
	Properties []domain.PhysicalProperty `json:"properties" yaml:"properties"`
}

// JSONReader reads datasets stored as JSON. The document is either an
// object with a "properties" list or a bare list of properties.
type JSONReader struct{}

// NewJSONReader creates a JSON dataset reader.
func NewJSONReader() *JSONReader {
	return &JSONReader{}
}

// Format returns "json".
func (r *JSONReader) Format() string { return "json" }

// Extensions returns the JSON file extensions.
func (r *JSONReader) Extensions() []string { return []string{".json"} }

// Read parses the properties. Unknown fields are rejected.
func (r *JSONReader) Read(in io.Reader) ([]domain.PhysicalProperty, error) {
	br := bufio.NewReader(in)
	first, err := firstByte(br)
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	decoder := json.NewDecoder(br)
	decoder.DisallowUnknownFields()

	if first == '[' {
		var properties []domain.PhysicalProperty
		if err := decoder.Decode(&properties); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		return properties, nil
	}

	var doc file
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return doc.Properties, nil
}

// firstByte peeks at the first non-whitespace byte.
func firstByte(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		if !bytes.ContainsRune([]byte(" \t\r\n"), rune(b)) {
			return b, br.UnreadByte()
		}
	}
}
