package workflow

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/propest/internal/core/domain"
)

const simulationWorkflow = `
name: density-md
layer: simulation
property_types: [Density]
protocols:
  - id: analyse
    command: ["analyse", "{{index .Outputs \"production\"}}"]
    depends_on: [production]
  - id: build
    command: ["build-box", "{{.Substance}}"]
  - id: equilibrate
    command: ["equilibrate", "{{.Temperature}}"]
    depends_on: [build]
    merge: true
  - id: production
    command: ["production"]
    depends_on: [equilibrate, build]
output: analyse
`

func TestParse_OrdersProtocols(t *testing.T) {
	def, err := Parse(strings.NewReader(simulationWorkflow))
	require.NoError(t, err)

	assert.Equal(t, "density-md", def.Name)
	assert.Equal(t, domain.LayerSimulation, def.Layer)
	assert.Equal(t, []string{"build", "equilibrate", "production", "analyse"}, def.Order())
	assert.True(t, def.Supports(domain.PropertyDensity))
	assert.False(t, def.Supports(domain.PropertyEnthalpyOfMixing))
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown key",
			yaml: "layer: simulation\nprotocolz: []\n",
			want: "protocolz",
		},
		{
			name: "stored layer",
			yaml: "layer: stored\nprotocols: [{id: a, command: [x]}]\noutput: a\n",
			want: "workflow layer",
		},
		{
			name: "unknown property type",
			yaml: "layer: simulation\nproperty_types: [Viscosity]\nprotocols: [{id: a, command: [x]}]\noutput: a\n",
			want: "Viscosity",
		},
		{
			name: "no protocols",
			yaml: "layer: simulation\noutput: a\n",
			want: "no protocols",
		},
		{
			name: "empty command",
			yaml: "layer: simulation\nprotocols: [{id: a}]\noutput: a\n",
			want: "no command",
		},
		{
			name: "duplicate protocol",
			yaml: "layer: simulation\nprotocols: [{id: a, command: [x]}, {id: a, command: [y]}]\noutput: a\n",
			want: "defined twice",
		},
		{
			name: "unknown dependency",
			yaml: "layer: simulation\nprotocols: [{id: a, command: [x], depends_on: [b]}]\noutput: a\n",
			want: "unknown protocol b",
		},
		{
			name: "cycle",
			yaml: "layer: reweighting\nprotocols: [{id: a, command: [x], depends_on: [b]}, {id: b, command: [y], depends_on: [a]}]\noutput: a\n",
			want: "cycle",
		},
		{
			name: "missing output",
			yaml: "layer: simulation\nprotocols: [{id: a, command: [x]}]\noutput: z\n",
			want: "output protocol",
		},
		{
			name: "bad template",
			yaml: "layer: simulation\nprotocols: [{id: a, command: [\"{{.Oops\"]}]\noutput: a\n",
			want: "argument 0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_InvalidInputIsDomainError(t *testing.T) {
	_, err := Parse(strings.NewReader("layer: simulation\noutput: a\n"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b-density.yaml"), []byte(simulationWorkflow), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a-reweight.yml"),
		[]byte("layer: reweighting\nprotocols: [{id: mbar, command: [mbar]}]\noutput: mbar\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))

	defs, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "a-reweight", defs[0].Name, "name defaults to the file name")
	assert.Equal(t, "density-md", defs[1].Name)
}

func TestLoadDir_Missing(t *testing.T) {
	defs, err := LoadDir(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, defs)
}

func TestLoadDir_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("layer: simulation\n"), 0o600))

	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.yaml")
}
