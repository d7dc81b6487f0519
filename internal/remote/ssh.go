package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
)

// SSHConfig describes how to reach one remote host.
type SSHConfig struct {
	User            string
	Host            string
	Port            int
	Signers         []ssh.Signer
	HostKeyCallback ssh.HostKeyCallback
	Timeout         time.Duration
}

// Address returns host:port, defaulting the port to 22.
func (c SSHConfig) Address() string {
	port := c.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// DialFunc opens an SSH client connection.
type DialFunc func(network, addr string, config *ssh.ClientConfig) (*ssh.Client, error)

// SSHRunner runs commands on a remote host. The connection is opened on
// first use and reused until Close or until it breaks.
type SSHRunner struct {
	cfg  SSHConfig
	dial DialFunc

	mu     sync.Mutex
	client *ssh.Client
}

// NewSSHRunner creates a runner for the configured host.
func NewSSHRunner(cfg SSHConfig) *SSHRunner {
	return &SSHRunner{cfg: cfg, dial: ssh.Dial}
}

// Host returns the remote host name.
func (r *SSHRunner) Host() string {
	return r.cfg.Host
}

func (r *SSHRunner) clientConfig() *ssh.ClientConfig {
	callback := r.cfg.HostKeyCallback
	if callback == nil {
		// Without a callback x/crypto/ssh refuses to connect; make the
		// failure explicit instead.
		callback = func(hostname string, _ net.Addr, _ ssh.PublicKey) error {
			return fmt.Errorf("no host key verification configured for %s", hostname)
		}
	}
	return &ssh.ClientConfig{
		User:            r.cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(r.cfg.Signers...)},
		HostKeyCallback: callback,
		Timeout:         r.cfg.Timeout,
	}
}

func (r *SSHRunner) connect() (*ssh.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client != nil {
		return r.client, nil
	}

	log.Debugf("Opening SSH connection to %s@%s", r.cfg.User, r.cfg.Address())
	client, err := r.dial("tcp", r.cfg.Address(), r.clientConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", r.cfg.Address(), err)
	}
	r.client = client
	return client, nil
}

// reset drops a broken connection so the next call redials.
func (r *SSHRunner) reset(broken *ssh.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == broken {
		r.client.Close()
		r.client = nil
	}
}

func (r *SSHRunner) session() (*ssh.Client, *ssh.Session, error) {
	client, err := r.connect()
	if err != nil {
		return nil, nil, err
	}
	session, err := client.NewSession()
	if err != nil {
		r.reset(client)
		return nil, nil, fmt.Errorf("failed to open session on %s: %w", r.cfg.Host, err)
	}
	return client, session, nil
}

// Run executes cmd on the remote host.
func (r *SSHRunner) Run(ctx context.Context, cmd Command) ([]byte, error) {
	var out []byte
	err := r.run(ctx, cmd, func(session *ssh.Session, line string) error {
		var err error
		out, err = session.CombinedOutput(line)
		return err
	}, func() []byte { return out })
	return out, err
}

// Stream executes cmd on the remote host with the given stdin and stdout.
func (r *SSHRunner) Stream(ctx context.Context, cmd Command, stdin io.Reader, stdout io.Writer) error {
	var stderr bytes.Buffer
	return r.run(ctx, cmd, func(session *ssh.Session, line string) error {
		session.Stdin = stdin
		session.Stdout = stdout
		session.Stderr = &stderr
		return session.Run(line)
	}, stderr.Bytes)
}

func (r *SSHRunner) run(ctx context.Context, cmd Command, exec func(*ssh.Session, string) error, output func() []byte) error {
	client, session, err := r.session()
	if err != nil {
		return err
	}
	defer session.Close()

	line := cmd.String()
	log.Debugf("Running on %s: %s", r.cfg.Host, line)

	done := make(chan error, 1)
	go func() {
		done <- exec(session, line)
	}()

	select {
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		session.Close()
		<-done
		return ctx.Err()
	case err = <-done:
	}

	if err == nil {
		return nil
	}

	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Host: r.cfg.Host, Command: cmd, Output: output(), Err: err}
	}

	// Anything else means the connection itself is in doubt.
	r.reset(client)
	return fmt.Errorf("command on %s interrupted: %w", r.cfg.Host, err)
}

// Close closes the underlying connection, if any.
func (r *SSHRunner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	return err
}
