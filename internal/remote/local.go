package remote

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"

	log "github.com/sirupsen/logrus"
)

// LocalHost is the host name reported by LocalRunner.
const LocalHost = "localhost"

// LocalRunner runs commands on this machine.
type LocalRunner struct {
	// Dir is the working directory of every command. Empty means the
	// process working directory.
	Dir string
}

// Run executes cmd locally.
func (r LocalRunner) Run(ctx context.Context, cmd Command) ([]byte, error) {
	log.Debugf("Running locally: %s", cmd)
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = r.Dir
	out, err := c.CombinedOutput()
	if err != nil {
		return out, r.exitError(cmd, out, err)
	}
	return out, nil
}

// Stream executes cmd locally with the given stdin and stdout.
func (r LocalRunner) Stream(ctx context.Context, cmd Command, stdin io.Reader, stdout io.Writer) error {
	log.Debugf("Streaming locally: %s", cmd)
	var stderr bytes.Buffer
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = r.Dir
	c.Stdin = stdin
	c.Stdout = stdout
	c.Stderr = &stderr
	if err := c.Run(); err != nil {
		return r.exitError(cmd, stderr.Bytes(), err)
	}
	return nil
}

func (r LocalRunner) exitError(cmd Command, out []byte, err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Host: LocalHost, Command: cmd, Output: out, Err: err}
	}
	return err
}
