package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// exampleWorkflows are written to a new workflows directory. The .example
// suffix keeps them from being loaded until the user renames them.
var exampleWorkflows = map[string]string{
	"density-simulation.yaml.example": `# Estimates liquid densities by molecular simulation.
name: density-simulation
layer: simulation
property_types: [Density]
protocols:
  - id: build
    command: ["build-box", "--substance", "{{.Substance}}", "--out", "{{.WorkDir}}/box.pdb"]
  - id: equilibrate
    command: ["run-md", "--box", "{{.WorkDir}}/box.pdb", "--force-field", "{{.ParameterSet}}",
              "--temperature", "{{.Temperature}}", "--pressure", "{{.Pressure}}", "--steps", "100000"]
    depends_on: [build]
  - id: analyse
    command: ["analyse-density", "--trajectory", "{{index .Outputs \"equilibrate\"}}", "--unit", "{{.Unit}}"]
    depends_on: [equilibrate]
output: analyse
`,
	"mbar-reweighting.yaml.example": `# Reweights stored simulation data to a new force field with MBAR.
name: mbar-reweighting
layer: reweighting
protocols:
  - id: reweight
    command: ["reweight", "--property", "{{.PropertyType}}", "--substance", "{{.Substance}}",
              "--temperature", "{{.Temperature}}", "--force-field", "{{.ParameterSet}}",
              "--target-uncertainty", "{{.TargetUncertainty}}"]
output: reweight
`,
}

const workflowsReadme = `# propest workflows

Each .yaml file in this directory defines how one calculation layer
estimates properties with the local backend. Rename an .example file to
.yaml to enable it.

## Fields

- name: workflow name, defaults to the file name
- layer: reweighting or simulation
- property_types: property types handled, all when empty
- protocols: steps, each with an id, a command and optional depends_on
- output: the protocol whose last stdout line is the estimate

## Estimate

The output protocol prints a JSON object:

    {"value": 0.997, "uncertainty": 0.001, "unit": "g/mL"}

or {"status": "unsupported"} when it cannot estimate the property.

## Templates

Command arguments are Go templates. Available fields: .JobID .Layer
.PropertyType .Phase .Substance .Components .Temperature (K) .Pressure (kPa)
.Unit .TargetUncertainty .ParameterSet .ParameterSetID .WorkDir and
.Outputs, the stdout of earlier protocols by id.
`

// WorkflowDir is the user-editable directory of workflow definitions.
//
// The directory is created lazily with a README and example workflows, so
// constructing it performs no I/O.
type WorkflowDir struct {
	dir      string
	initOnce sync.Once
	initErr  error
}

// NewWorkflowDir creates a workflow directory handle.
// If dir is empty, defaults to ~/.propest/workflows.
func NewWorkflowDir(dir string) (*WorkflowDir, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		dir = filepath.Join(home, ".propest", "workflows")
	}
	return &WorkflowDir{dir: dir}, nil
}

// Ensure creates the directory and its example files on first use.
// Existing files are never overwritten.
func (w *WorkflowDir) Ensure() error {
	w.initOnce.Do(w.initialise)
	return w.initErr
}

// Dir returns the directory path.
func (w *WorkflowDir) Dir() string {
	return w.dir
}

// Examples returns the names of the example files.
func (w *WorkflowDir) Examples() []string {
	names := make([]string, 0, len(exampleWorkflows))
	for name := range exampleWorkflows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (w *WorkflowDir) initialise() {
	if err := os.MkdirAll(w.dir, 0700); err != nil {
		w.initErr = fmt.Errorf("create workflows directory: %w", err)
		return
	}

	files := map[string]string{"README.md": workflowsReadme}
	for name, content := range exampleWorkflows {
		files[name] = content
	}
	for name, content := range files {
		path := filepath.Join(w.dir, name)
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			w.initErr = fmt.Errorf("create %s: %w", name, err)
			return
		}
	}
}
