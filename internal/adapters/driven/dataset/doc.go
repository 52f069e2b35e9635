// Package dataset reads measured property datasets.
//
// JSON and YAML files hold a "properties" list in the shape of
// domain.PhysicalProperty. CSV files hold one property per row, see CSVReader.
package dataset
