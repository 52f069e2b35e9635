package workflow

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/propest/internal/core/domain"
	"github.com/custodia-labs/propest/internal/core/ports/driven"
	"github.com/custodia-labs/propest/internal/logger"
)

// Ensure Estimator implements the interface.
var _ driven.Estimator = (*Estimator)(nil)

// TemplateData is what command templates are expanded with.
type TemplateData struct {
	JobID             string
	Layer             string
	PropertyType      string
	Phase             string
	Substance         string
	Components        []string
	Temperature       float64 // K
	Pressure          float64 // kPa
	Unit              string
	TargetUncertainty float64
	ParameterSet      string
	ParameterSetID    string
	WorkDir           string
	Outputs           map[string]string

	// Dirs maps each finished protocol to the directory it ran in. Merged
	// protocols run in a directory shared by every job that merged them.
	Dirs map[string]string
}

// mergeDirToken stands in for the working directory when computing the
// merge key of a protocol.
const mergeDirToken = "\x00workdir\x00"

// estimate is the JSON printed by the output protocol.
type estimate struct {
	Status      string   `json:"status,omitempty"`
	Value       *float64 `json:"value"`
	Uncertainty float64  `json:"uncertainty"`
	Unit        string   `json:"unit"`
}

// Estimator runs a workflow for each job.
type Estimator struct {
	def     *Definition
	workDir string
	runner  CommandRunner
	group   singleflight.Group

	mu     sync.Mutex
	shared map[string]int
}

// NewEstimator creates an estimator for a validated workflow. Job
// directories are created under workDir, or the system temp dir when empty.
func NewEstimator(def *Definition, workDir string, runner CommandRunner) *Estimator {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Estimator{def: def, workDir: workDir, runner: runner, shared: make(map[string]int)}
}

// LoadEstimators creates an estimator for every workflow in dir.
func LoadEstimators(dir, workDir string) ([]driven.Estimator, error) {
	defs, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	estimators := make([]driven.Estimator, 0, len(defs))
	for _, def := range defs {
		logger.Debug("workflow %s: %s layer, protocols %v", def.Name, def.Layer, def.Order())
		estimators = append(estimators, NewEstimator(def, workDir, nil))
	}
	return estimators, nil
}

// Name returns the workflow name.
func (e *Estimator) Name() string { return e.def.Name }

// Layer returns the calculation layer of the workflow.
func (e *Estimator) Layer() string { return e.def.Layer }

// Supports reports whether the workflow handles the property type.
func (e *Estimator) Supports(t domain.PropertyType) bool { return e.def.Supports(t) }

// Estimate runs the workflow protocols in order and reads the estimate from
// the output protocol. A failing command is a failed outcome, not an error.
func (e *Estimator) Estimate(ctx context.Context, job domain.Job) (domain.JobOutcome, error) {
	outcome := domain.JobOutcome{JobID: job.ID, TaskIndex: job.Task.Index, Provenance: e.def.Name}

	dir, err := os.MkdirTemp(e.workDir, "job-*")
	if err != nil {
		return outcome, errors.Wrap(err, "create job dir")
	}
	defer os.RemoveAll(dir)

	var held []string
	defer func() {
		for _, d := range held {
			e.release(d)
		}
	}()

	setPath, setDir, err := e.writeParameterSet(job.Task.ParameterSet, dir)
	if setDir != "" {
		held = append(held, setDir)
	}
	if err != nil {
		return fail(outcome, err), nil
	}

	data, err := e.templateData(job, dir, setPath)
	if err != nil {
		return fail(outcome, err), nil
	}

	for _, id := range e.def.order {
		stdout, sharedDir, err := e.runProtocol(ctx, id, job, data)
		if sharedDir != "" {
			held = append(held, sharedDir)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return outcome, ctxErr
			}
			return fail(outcome, err), nil
		}
		data.Outputs[id] = strings.TrimSpace(string(stdout))
	}

	return e.parseOutput(outcome, data.Outputs[e.def.Output]), nil
}

// runProtocol expands and runs one protocol. Mergeable protocols with the
// same expanded command share a single run, in a directory keyed by that
// command, across concurrent jobs. The shared directory is returned so the
// caller can release it once the job is done.
func (e *Estimator) runProtocol(ctx context.Context, id string, job domain.Job, data *TemplateData) ([]byte, string, error) {
	run := func(dir string, args []string) ([]byte, error) {
		logger.Debug("workflow %s: job %s: %s", e.def.Name, job.ID, strings.Join(args, " "))
		out, err := e.runner.Run(ctx, dir, args)
		if err != nil {
			return nil, errors.Wrapf(err, "protocol %s", id)
		}
		return out, nil
	}

	if !e.def.protocols[id].Merge || !job.Options.AllowProtocolMerging {
		args, err := e.expand(id, data)
		if err != nil {
			return nil, "", err
		}
		data.Dirs[id] = data.WorkDir
		out, err := run(data.WorkDir, args)
		return out, "", err
	}

	keyData := *data
	keyData.WorkDir = mergeDirToken
	keyArgs, err := e.expand(id, &keyData)
	if err != nil {
		return nil, "", err
	}
	key := digest(append([]string{id}, keyArgs...)...)

	sharedDir := filepath.Join(e.root(), "merged-"+key[:16])
	if err := e.acquire(sharedDir, nil); err != nil {
		return nil, "", errors.Wrapf(err, "protocol %s: shared dir", id)
	}

	runData := *data
	runData.WorkDir = sharedDir
	args, err := e.expand(id, &runData)
	if err != nil {
		return nil, sharedDir, err
	}

	v, err, shared := e.group.Do(key, func() (any, error) { return run(sharedDir, args) })
	if shared {
		logger.Debug("workflow %s: job %s: protocol %s merged", e.def.Name, job.ID, id)
	}
	if err != nil {
		return nil, sharedDir, err
	}
	data.Dirs[id] = sharedDir
	return v.([]byte), sharedDir, nil
}

// writeParameterSet writes the parameter set content where commands can read
// it. Content with a checksum goes to a directory shared by every job using
// the same content, so merged protocols see the same path.
func (e *Estimator) writeParameterSet(ps domain.ParameterSet, jobDir string) (string, string, error) {
	name := filepath.Base(ps.Name)
	if name == "." || name == "/" || name == "" {
		name = "parameters." + ps.Format
	}
	if ps.Checksum == "" {
		path := filepath.Join(jobDir, name)
		if err := os.WriteFile(path, ps.Content, 0o600); err != nil {
			return "", "", errors.Wrap(err, "write parameter set")
		}
		return path, "", nil
	}

	dir := filepath.Join(e.root(), "ps-"+digest(ps.Checksum, name)[:16])
	path := filepath.Join(dir, name)
	err := e.acquire(dir, func() error { return os.WriteFile(path, ps.Content, 0o600) })
	if err != nil {
		return "", "", errors.Wrap(err, "write parameter set")
	}
	return path, dir, nil
}

// acquire takes a reference on a shared directory, creating it and running
// init when it is first used.
func (e *Estimator) acquire(dir string, init func() error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.shared[dir] > 0 {
		e.shared[dir]++
		return nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	if init != nil {
		if err := init(); err != nil {
			_ = os.RemoveAll(dir)
			return err
		}
	}
	e.shared[dir] = 1
	return nil
}

// release drops a reference on a shared directory and removes it when no
// job uses it any more.
func (e *Estimator) release(dir string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shared[dir]--
	if e.shared[dir] > 0 {
		return
	}
	delete(e.shared, dir)
	if err := os.RemoveAll(dir); err != nil {
		logger.Warn("workflow %s: remove %s: %v", e.def.Name, dir, err)
	}
}

func (e *Estimator) root() string {
	if e.workDir != "" {
		return e.workDir
	}
	return os.TempDir()
}

func digest(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (e *Estimator) expand(id string, data *TemplateData) ([]string, error) {
	tmpls := e.def.templates[id]
	args := make([]string, len(tmpls))
	for i, t := range tmpls {
		var buf bytes.Buffer
		if err := t.Execute(&buf, data); err != nil {
			return nil, errors.Wrapf(err, "protocol %s: expand argument %d", id, i)
		}
		args[i] = buf.String()
	}
	return args, nil
}

func (e *Estimator) templateData(job domain.Job, dir, setPath string) (*TemplateData, error) {
	task := job.Task
	p := task.Property

	temperature, err := p.State.TemperatureKelvin()
	if err != nil {
		return nil, errors.Wrap(err, "temperature")
	}
	pressure, err := p.State.PressureKilopascal()
	if err != nil {
		return nil, errors.Wrap(err, "pressure")
	}

	components := make([]string, 0, len(p.Substance.Components))
	for _, c := range p.Substance.Components {
		components = append(components, c.Identifier())
	}

	phase := p.Phase
	if phase == "" {
		phase = domain.PhaseLiquid
	}

	return &TemplateData{
		JobID:             job.ID,
		Layer:             job.Layer,
		PropertyType:      string(p.Type),
		Phase:             string(phase),
		Substance:         p.Substance.Identifier(),
		Components:        components,
		Temperature:       temperature,
		Pressure:          pressure,
		Unit:              p.Value.Unit,
		TargetUncertainty: job.TargetUncertainty.Value,
		ParameterSet:      setPath,
		ParameterSetID:    task.ParameterSet.ID,
		WorkDir:           dir,
		Outputs:           make(map[string]string, len(e.def.order)),
		Dirs:              make(map[string]string, len(e.def.order)),
	}, nil
}

func (e *Estimator) parseOutput(outcome domain.JobOutcome, out string) domain.JobOutcome {
	// The estimate is the last non-empty line, so tools may log before it.
	lines := strings.Split(out, "\n")
	last := strings.TrimSpace(lines[len(lines)-1])

	var est estimate
	if err := json.Unmarshal([]byte(last), &est); err != nil {
		return fail(outcome, errors.Wrapf(err, "protocol %s printed no estimate", e.def.Output))
	}
	if est.Status == string(domain.OutcomeUnsupported) {
		outcome.Status = domain.OutcomeUnsupported
		return outcome
	}
	if est.Value == nil {
		return fail(outcome, errors.Errorf("protocol %s: estimate has no value", e.def.Output))
	}
	if !domain.KnownUnit(est.Unit) {
		return fail(outcome, errors.Wrapf(domain.ErrIncompatibleUnits, "protocol %s: unknown unit %q", e.def.Output, est.Unit))
	}

	outcome.Status = domain.OutcomeEstimated
	outcome.Value = domain.Q(*est.Value, est.Unit)
	if est.Uncertainty > 0 {
		outcome.Uncertainty = domain.Q(est.Uncertainty, est.Unit)
	}
	return outcome
}

func fail(outcome domain.JobOutcome, err error) domain.JobOutcome {
	outcome.Status = domain.OutcomeFailed
	outcome.Error = err.Error()
	logger.Debug("workflow job %s failed: %v (cause: %v)", outcome.JobID, err, errors.Cause(err))
	return outcome
}
