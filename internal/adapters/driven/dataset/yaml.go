package dataset

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/propest/internal/core/domain"
	"github.com/custodia-labs/propest/internal/core/ports/driven"
)

// Ensure YAMLReader implements the interface.
var _ driven.DatasetReader = (*YAMLReader)(nil)

// YAMLReader reads datasets stored as YAML.
type YAMLReader struct{}

// NewYAMLReader creates a YAML dataset reader.
func NewYAMLReader() *YAMLReader {
	return &YAMLReader{}
}

// Format returns "yaml".
func (r *YAMLReader) Format() string { return "yaml" }

// Extensions returns the YAML file extensions.
func (r *YAMLReader) Extensions() []string { return []string{".yaml", ".yml"} }

// Read parses the properties. Unknown keys are rejected.
func (r *YAMLReader) Read(in io.Reader) ([]domain.PhysicalProperty, error) {
	decoder := yaml.NewDecoder(in)
	decoder.KnownFields(true)

	var doc file
	if err := decoder.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return doc.Properties, nil
}
