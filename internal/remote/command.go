// Package remote runs commands on the local host or on a remote host over SSH.
//
// Commands are argument lists, never pre-joined strings. Runners that must
// hand a single line to a shell quote every argument themselves.
package remote

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Command is a program and its ordered arguments.
type Command struct {
	Name string
	Args []string
}

// NewCommand builds a Command.
func NewCommand(name string, args ...string) Command {
	return Command{Name: name, Args: args}
}

// String renders the command as a POSIX shell line with every word quoted
// where needed.
func (c Command) String() string {
	words := make([]string, 0, len(c.Args)+1)
	words = append(words, Quote(c.Name))
	for _, arg := range c.Args {
		words = append(words, Quote(arg))
	}
	return strings.Join(words, " ")
}

// Quote returns s quoted for a POSIX shell. Words made only of safe
// characters are returned unchanged.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, unsafeRune) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func unsafeRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	}
	return !strings.ContainsRune("@%+=:,./-_", r)
}

// Runner executes commands on one host.
type Runner interface {
	// Run executes cmd and returns its combined stdout and stderr. A non-zero
	// exit status is reported as *ExitError.
	Run(ctx context.Context, cmd Command) ([]byte, error)

	// Stream executes cmd with stdin and stdout attached to the given
	// reader and writer; either may be nil. Stderr is captured for errors.
	Stream(ctx context.Context, cmd Command, stdin io.Reader, stdout io.Writer) error
}

// ExitError reports a command that ran and failed.
type ExitError struct {
	Host    string
	Command Command
	Output  []byte
	Err     error
}

func (e *ExitError) Error() string {
	out := strings.TrimSpace(string(e.Output))
	if out == "" {
		return fmt.Sprintf("%s: %q failed: %v", e.Host, e.Command.String(), e.Err)
	}
	return fmt.Sprintf("%s: %q failed: %v: %s", e.Host, e.Command.String(), e.Err, out)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}
