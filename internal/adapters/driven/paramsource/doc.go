// Package paramsource fetches force field parameter sets.
//
// Each resolver serves one reference scheme:
//
//	/path/to/ff.offxml or file:///path/to/ff.offxml
//	https://example.org/ff.offxml
//	github://owner/repo/path/to/ff.offxml[@ref]
//	gs://bucket/path/to/ff.offxml
package paramsource
