package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// ComponentRole describes the role of a component in a system, such as
// whether it is the solvent or the solute.
type ComponentRole string

// Available component roles.
const (
	RoleSolvent   ComponentRole = "Solvent"
	RoleSolute    ComponentRole = "Solute"
	RoleLigand    ComponentRole = "Ligand"
	RoleReceptor  ComponentRole = "Receptor"
	RoleUndefined ComponentRole = "Undefined"
)

// IsValid returns true if the role is recognised.
func (r ComponentRole) IsValid() bool {
	switch r {
	case RoleSolvent, RoleSolute, RoleLigand, RoleReceptor, RoleUndefined:
		return true
	default:
		return false
	}
}

// Component is a single molecular species in a substance.
type Component struct {
	// SMILES describes the molecule. May be empty for complex molecules.
	SMILES string `json:"smiles,omitempty" yaml:"smiles,omitempty"`

	// Label names the molecule when no SMILES pattern is available, e.g. CB8.
	Label string `json:"label,omitempty" yaml:"label,omitempty"`

	// Role of the component. Defaults to RoleSolvent.
	Role ComponentRole `json:"role,omitempty" yaml:"role,omitempty"`
}

// NewComponent creates a component from either a SMILES pattern or a label.
// Supplying both is only allowed when they are equal.
func NewComponent(smiles, label string, role ComponentRole) (Component, error) {
	if label == smiles {
		label = ""
	}
	if smiles != "" && label != "" {
		return Component{}, fmt.Errorf("%w: component takes a smiles pattern or a label, not both", ErrInvalidInput)
	}
	if smiles == "" && label == "" {
		return Component{}, fmt.Errorf("%w: component needs a smiles pattern or a label", ErrInvalidInput)
	}
	if role == "" {
		role = RoleSolvent
	}
	if !role.IsValid() {
		return Component{}, fmt.Errorf("%w: unknown component role %q", ErrInvalidInput, role)
	}
	return Component{SMILES: smiles, Label: label, Role: role}, nil
}

// Identifier is the SMILES pattern, or the label when there is none.
func (c Component) Identifier() string {
	if c.SMILES != "" {
		return c.SMILES
	}
	return c.Label
}

// AmountKind distinguishes how the amount of a component is expressed.
type AmountKind string

// Available amount kinds.
const (
	// AmountMoleFraction is a mole fraction in (0, 1].
	AmountMoleFraction AmountKind = "mole_fraction"

	// AmountExact is an exact number of molecules, used for infinitely dilute components.
	AmountExact AmountKind = "exact"
)

// Amount is the amount of a component in a substance.
type Amount struct {
	Kind  AmountKind `json:"kind" yaml:"kind"`
	Value float64    `json:"value" yaml:"value"`
}

// MoleFraction creates a validated mole fraction amount.
func MoleFraction(value float64) (Amount, error) {
	a := Amount{Kind: AmountMoleFraction, Value: value}
	return a, a.Validate()
}

// ExactAmount creates a validated exact amount.
func ExactAmount(value float64) (Amount, error) {
	a := Amount{Kind: AmountExact, Value: value}
	return a, a.Validate()
}

// Validate checks the amount against the rules of its kind.
func (a Amount) Validate() error {
	switch a.Kind {
	case AmountMoleFraction:
		if a.Value <= 0 || a.Value > 1 {
			return fmt.Errorf("%w: a mole fraction must be greater than zero and at most one", ErrInvalidInput)
		}
		if math.Floor(a.Value*1e6) < 1 {
			return fmt.Errorf("%w: mole fractions are only precise to the sixth decimal place", ErrInvalidInput)
		}
	case AmountExact:
		if math.Abs(math.Round(a.Value)-a.Value) > 1e-8 {
			return fmt.Errorf("%w: an exact amount must be an integer", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown amount kind %q", ErrInvalidInput, a.Kind)
	}
	return nil
}

// Identifier renders the amount, e.g. "{0.500000}" or "(3)".
func (a Amount) Identifier() string {
	if a.Kind == AmountExact {
		return fmt.Sprintf("(%d)", int(math.Round(a.Value)))
	}
	return fmt.Sprintf("{%.6f}", a.Value)
}

// NumberOfMolecules converts the amount into a molecule count given the
// number of molecule slots available to the substance.
func (a Amount) NumberOfMolecules(total int) (int, error) {
	if a.Kind == AmountExact {
		return int(math.Round(a.Value)), nil
	}
	n := int(math.Round(a.Value * float64(total)))
	if n == 0 {
		return 0, fmt.Errorf("%w: %d molecules are not enough to represent mole fraction %g",
			ErrInvalidInput, total, a.Value)
	}
	return n, nil
}

// Substance defines the components of a system and their amounts.
type Substance struct {
	Components []Component       `json:"components" yaml:"components"`
	Amounts    map[string]Amount `json:"amounts" yaml:"amounts"`
}

// AddComponent adds a component to the substance. Adding a component that is
// already present sums the amounts, which must then be of the same kind.
func (s *Substance) AddComponent(component Component, amount Amount) error {
	if err := amount.Validate(); err != nil {
		return err
	}
	if s.Amounts == nil {
		s.Amounts = make(map[string]Amount)
	}

	id := component.Identifier()
	existing, present := s.Amounts[id]

	if amount.Kind == AmountMoleFraction {
		total := amount.Value
		for _, a := range s.Amounts {
			if a.Kind == AmountMoleFraction {
				total += a.Value
			}
		}
		if total > 1+1e-9 {
			return fmt.Errorf("%w: the total mole fraction of this substance %g exceeds 1.0", ErrInvalidInput, total)
		}
	}

	if !present {
		s.Amounts[id] = amount
		s.Components = append(s.Components, component)
		return nil
	}

	if existing.Kind != amount.Kind {
		return fmt.Errorf("%w: component %s already exists with amount kind %s, not %s",
			ErrInvalidInput, id, existing.Kind, amount.Kind)
	}
	s.Amounts[id] = Amount{Kind: amount.Kind, Value: existing.Value + amount.Value}
	return nil
}

// NumberOfComponents returns how many components the substance has.
func (s *Substance) NumberOfComponents() int {
	return len(s.Components)
}

// Amount returns the amount of the component with the given identifier.
func (s *Substance) Amount(identifier string) (Amount, bool) {
	a, ok := s.Amounts[identifier]
	return a, ok
}

// Identifier is a canonical, order independent description of the substance,
// e.g. "CO{0.800000}|O{0.200000}".
func (s *Substance) Identifier() string {
	ids := make([]string, 0, len(s.Components))
	for _, c := range s.Components {
		ids = append(ids, c.Identifier())
	}
	sort.Strings(ids)

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, id+s.Amounts[id].Identifier())
	}
	return strings.Join(parts, "|")
}

// String implements fmt.Stringer.
func (s *Substance) String() string {
	return s.Identifier()
}

// Validate checks every component and amount.
func (s *Substance) Validate() error {
	if len(s.Components) == 0 {
		return fmt.Errorf("%w: substance has no components", ErrInvalidInput)
	}
	total := 0.0
	for _, c := range s.Components {
		if c.Identifier() == "" {
			return fmt.Errorf("%w: component needs a smiles pattern or a label", ErrInvalidInput)
		}
		a, ok := s.Amounts[c.Identifier()]
		if !ok {
			return fmt.Errorf("%w: component %s has no amount", ErrInvalidInput, c.Identifier())
		}
		if err := a.Validate(); err != nil {
			return err
		}
		if a.Kind == AmountMoleFraction {
			total += a.Value
		}
	}
	if total > 1+1e-9 {
		return fmt.Errorf("%w: the total mole fraction of this substance %g exceeds 1.0", ErrInvalidInput, total)
	}
	return nil
}

// MoleculesPerComponent returns the molecule count of every component for a
// system of at most maxMolecules molecules. Exact amounts take their slots first.
func (s *Substance) MoleculesPerComponent(maxMolecules int) (map[string]int, error) {
	remaining := maxMolecules
	for _, c := range s.Components {
		a := s.Amounts[c.Identifier()]
		if a.Kind == AmountExact {
			remaining -= int(math.Round(a.Value))
		}
	}

	counts := make(map[string]int, len(s.Components))
	for _, c := range s.Components {
		n, err := s.Amounts[c.Identifier()].NumberOfMolecules(remaining)
		if err != nil {
			return nil, err
		}
		counts[c.Identifier()] = n
	}
	return counts, nil
}

// Clone returns a deep copy of the substance.
func (s *Substance) Clone() Substance {
	out := Substance{
		Components: append([]Component(nil), s.Components...),
		Amounts:    make(map[string]Amount, len(s.Amounts)),
	}
	for k, v := range s.Amounts {
		out.Amounts[k] = v
	}
	return out
}
