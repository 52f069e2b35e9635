package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"strings"
)

// ParameterSet is an opaque reference to a force field parameterisation.
// It is an input to estimation and never mutated by it.
type ParameterSet struct {
	// ID is derived from the content checksum.
	ID string `json:"id"`

	// Name is a human-readable name, usually the file name.
	Name string `json:"name"`

	// Source is the reference the parameter set was resolved from.
	Source string `json:"source"`

	// Format is the file format, e.g. "offxml".
	Format string `json:"format"`

	// Checksum is the hex SHA-256 of Content.
	Checksum string `json:"checksum"`

	// Content is the raw parameter file.
	Content []byte `json:"-"`
}

// NewParameterSet creates a parameter set, deriving its ID, checksum and format.
func NewParameterSet(name, source string, content []byte) ParameterSet {
	sum := sha256.Sum256(content)
	checksum := hex.EncodeToString(sum[:])
	return ParameterSet{
		ID:       "ps-" + checksum[:12],
		Name:     name,
		Source:   source,
		Format:   strings.TrimPrefix(path.Ext(name), "."),
		Checksum: checksum,
		Content:  content,
	}
}
