package services

import (
	"bytes"
	"context"
	"os/exec"
)

// CommandRunner executes an external tool and returns its captured output.
// The context carries the hard process-level deadline; a misbehaving tool
// is killed when it expires, independent of any timeout the tool itself
// was told to honor.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes the command and waits for it to finish or be killed.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}
