package dataset

import "github.com/custodia-labs/propest/internal/core/ports/driven"

// Readers returns every dataset reader.
func Readers() []driven.DatasetReader {
	return []driven.DatasetReader{NewJSONReader(), NewYAMLReader(), NewCSVReader()}
}
