package workflow

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
)

// maxStderr bounds how much of a failed command's stderr is kept.
const maxStderr = 2048

// CommandRunner runs a protocol command in a directory and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, dir string, args []string) ([]byte, error)
}

// ExecRunner runs commands as subprocesses.
type ExecRunner struct{}

// Run executes args[0] with the remaining arguments.
func (ExecRunner) Run(ctx context.Context, dir string, args []string) ([]byte, error) {
	if len(args) == 0 {
		return nil, errors.New("empty command")
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...) //nolint:gosec // Commands come from trusted workflow files.
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > maxStderr {
			msg = "..." + msg[len(msg)-maxStderr:]
		}
		if msg != "" {
			return nil, errors.Wrapf(err, "%s: %s", args[0], msg)
		}
		return nil, errors.Wrap(err, args[0])
	}
	return stdout.Bytes(), nil
}
