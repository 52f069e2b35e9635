package workflow

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/propest/internal/core/domain"
)

// Protocol is one step of a workflow.
type Protocol struct {
	ID        string   `yaml:"id"`
	Command   []string `yaml:"command"`
	DependsOn []string `yaml:"depends_on,omitempty"`

	// Merge lets jobs that expand this protocol to the same command share one run.
	Merge bool `yaml:"merge,omitempty"`
}

// Definition is a workflow file.
type Definition struct {
	Name          string                `yaml:"name"`
	Layer         string                `yaml:"layer"`
	PropertyTypes []domain.PropertyType `yaml:"property_types"`
	Protocols     []Protocol            `yaml:"protocols"`
	Output        string                `yaml:"output"`

	// order is the protocol execution order, filled by Validate.
	order     []string
	protocols map[string]*Protocol
	templates map[string][]*template.Template
}

// Parse reads a workflow definition. Unknown keys are rejected.
func Parse(r io.Reader) (*Definition, error) {
	var def Definition
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&def); err != nil {
		return nil, errors.Wrap(err, "parse workflow")
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Load reads and validates a workflow file.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read workflow %s", path)
	}
	def, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "workflow %s", path)
	}
	if def.Name == "" {
		def.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return def, nil
}

// LoadDir reads every .yaml and .yml workflow in dir, sorted by file name.
// A missing directory holds no workflows.
func LoadDir(dir string) ([]*Definition, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read workflows dir %s", dir)
	}

	var names []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	defs := make([]*Definition, 0, len(names))
	for _, name := range names {
		def, err := Load(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Validate checks the definition, orders its protocols and compiles the
// command templates.
func (d *Definition) Validate() error {
	if d.Layer != domain.LayerReweighting && d.Layer != domain.LayerSimulation {
		return errors.Wrapf(domain.ErrInvalidInput, "workflow layer must be %s or %s, not %q",
			domain.LayerReweighting, domain.LayerSimulation, d.Layer)
	}
	for _, t := range d.PropertyTypes {
		if !t.IsValid() {
			return errors.Wrapf(domain.ErrInvalidInput, "unknown property type %q", t)
		}
	}
	if len(d.Protocols) == 0 {
		return errors.Wrap(domain.ErrInvalidInput, "workflow has no protocols")
	}

	g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())
	d.protocols = make(map[string]*Protocol, len(d.Protocols))
	d.templates = make(map[string][]*template.Template, len(d.Protocols))
	for i := range d.Protocols {
		p := &d.Protocols[i]
		if p.ID == "" {
			return errors.Wrapf(domain.ErrInvalidInput, "protocol %d has no id", i)
		}
		if len(p.Command) == 0 {
			return errors.Wrapf(domain.ErrInvalidInput, "protocol %s has no command", p.ID)
		}
		if err := g.AddVertex(p.ID); err != nil {
			return errors.Wrapf(domain.ErrInvalidInput, "protocol %s is defined twice", p.ID)
		}
		tmpls, err := compile(p)
		if err != nil {
			return err
		}
		d.protocols[p.ID] = p
		d.templates[p.ID] = tmpls
	}

	for _, p := range d.Protocols {
		for _, dep := range p.DependsOn {
			if _, ok := d.protocols[dep]; !ok {
				return errors.Wrapf(domain.ErrInvalidInput, "protocol %s depends on unknown protocol %s", p.ID, dep)
			}
			if err := g.AddEdge(dep, p.ID); err != nil {
				if errors.Is(err, graph.ErrEdgeCreatesCycle) {
					return errors.Wrapf(domain.ErrInvalidInput, "protocol %s: dependency on %s creates a cycle", p.ID, dep)
				}
				if !errors.Is(err, graph.ErrEdgeAlreadyExists) {
					return errors.Wrapf(err, "protocol %s", p.ID)
				}
			}
		}
	}

	if _, ok := d.protocols[d.Output]; !ok {
		return errors.Wrapf(domain.ErrInvalidInput, "output protocol %q is not defined", d.Output)
	}

	order, err := graph.StableTopologicalSort(g, func(a, b string) bool { return a < b })
	if err != nil {
		return errors.Wrap(err, "order protocols")
	}
	d.order = order
	return nil
}

// Supports reports whether the workflow estimates the property type.
// A workflow listing no property types supports them all.
func (d *Definition) Supports(t domain.PropertyType) bool {
	if len(d.PropertyTypes) == 0 {
		return true
	}
	for _, pt := range d.PropertyTypes {
		if pt == t {
			return true
		}
	}
	return false
}

// Order returns the protocol IDs in execution order.
func (d *Definition) Order() []string {
	return append([]string(nil), d.order...)
}

func compile(p *Protocol) ([]*template.Template, error) {
	tmpls := make([]*template.Template, len(p.Command))
	for i, arg := range p.Command {
		t, err := template.New(p.ID).Option("missingkey=error").Parse(arg)
		if err != nil {
			return nil, errors.Wrapf(domain.ErrInvalidInput, "protocol %s argument %d: %v", p.ID, i, err)
		}
		tmpls[i] = t
	}
	return tmpls, nil
}
