package domain

import (
	"fmt"
)

// PhysicalPropertyDataSet is an ordered collection of measured properties.
// Properties are copied in and out, so a loaded dataset is never mutated
// by the estimation flow.
type PhysicalPropertyDataSet struct {
	properties []PhysicalProperty
	sources    []Source
}

// NewDataSet creates a dataset holding copies of the given properties.
func NewDataSet(properties ...PhysicalProperty) *PhysicalPropertyDataSet {
	ds := &PhysicalPropertyDataSet{}
	ds.Add(properties...)
	return ds
}

// Add appends copies of the properties, recording any new publication source.
func (d *PhysicalPropertyDataSet) Add(properties ...PhysicalProperty) {
	for i := range properties {
		d.properties = append(d.properties, properties[i].Clone())
		d.addSource(properties[i].Source)
	}
}

func (d *PhysicalPropertyDataSet) addSource(src Source) {
	if src == (Source{}) {
		return
	}
	for _, s := range d.sources {
		if s == src {
			return
		}
	}
	d.sources = append(d.sources, src)
}

// Len returns the number of properties.
func (d *PhysicalPropertyDataSet) Len() int {
	if d == nil {
		return 0
	}
	return len(d.properties)
}

// Properties returns a copy of the properties in dataset order.
func (d *PhysicalPropertyDataSet) Properties() []PhysicalProperty {
	if d == nil {
		return nil
	}
	out := make([]PhysicalProperty, len(d.properties))
	for i := range d.properties {
		out[i] = d.properties[i].Clone()
	}
	return out
}

// Sources returns the distinct publication sources of the dataset.
func (d *PhysicalPropertyDataSet) Sources() []Source {
	return append([]Source(nil), d.sources...)
}

// Get returns a copy of the property with the given ID.
func (d *PhysicalPropertyDataSet) Get(id string) (PhysicalProperty, error) {
	for i := range d.properties {
		if d.properties[i].ID == id {
			return d.properties[i].Clone(), nil
		}
	}
	return PhysicalProperty{}, fmt.Errorf("property %s: %w", id, ErrNotFound)
}

// BySubstance groups the properties by substance identifier, keeping dataset order.
func (d *PhysicalPropertyDataSet) BySubstance() map[string][]PhysicalProperty {
	out := make(map[string][]PhysicalProperty)
	for i := range d.properties {
		id := d.properties[i].Substance.Identifier()
		out[id] = append(out[id], d.properties[i].Clone())
	}
	return out
}

// Substances returns the distinct substance identifiers in first-seen order.
func (d *PhysicalPropertyDataSet) Substances() []string {
	seen := make(map[string]bool)
	var out []string
	for i := range d.properties {
		id := d.properties[i].Substance.Identifier()
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// FilterByType returns a new dataset with only the given property types.
func (d *PhysicalPropertyDataSet) FilterByType(types ...PropertyType) *PhysicalPropertyDataSet {
	keep := make(map[PropertyType]bool, len(types))
	for _, t := range types {
		keep[t] = true
	}
	return d.filter(func(p *PhysicalProperty) bool { return keep[p.Type] })
}

// FilterByTemperature returns a new dataset with properties measured between
// min and max, inclusive.
func (d *PhysicalPropertyDataSet) FilterByTemperature(minimum, maximum Quantity) (*PhysicalPropertyDataSet, error) {
	lo, err := Convert(minimum, "K")
	if err != nil {
		return nil, err
	}
	hi, err := Convert(maximum, "K")
	if err != nil {
		return nil, err
	}
	return d.filter(func(p *PhysicalProperty) bool {
		t, err := p.State.TemperatureKelvin()
		return err == nil && t >= lo.Value && t <= hi.Value
	}), nil
}

func (d *PhysicalPropertyDataSet) filter(keep func(*PhysicalProperty) bool) *PhysicalPropertyDataSet {
	out := &PhysicalPropertyDataSet{}
	for i := range d.properties {
		if keep(&d.properties[i]) {
			out.Add(d.properties[i])
		}
	}
	return out
}

// Merge appends the properties of another dataset.
func (d *PhysicalPropertyDataSet) Merge(other *PhysicalPropertyDataSet) {
	if other == nil {
		return
	}
	d.Add(other.properties...)
}

// Validate checks every property and that property IDs are unique.
func (d *PhysicalPropertyDataSet) Validate() error {
	seen := make(map[string]bool, len(d.properties))
	for i := range d.properties {
		p := &d.properties[i]
		if p.ID == "" {
			return fmt.Errorf("%w: property at index %d has no id", ErrInvalidInput, i)
		}
		if seen[p.ID] {
			return fmt.Errorf("%w: duplicate property id %s", ErrInvalidInput, p.ID)
		}
		seen[p.ID] = true
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}
