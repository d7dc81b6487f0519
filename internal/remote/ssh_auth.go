package remote

import (
	"fmt"
	"os"

	"github.com/fluxcd/pkg/ssh/knownhosts"
	"golang.org/x/crypto/ssh"
	xknownhosts "golang.org/x/crypto/ssh/knownhosts"
)

// HostKeyOptions selects how remote host keys are verified.
type HostKeyOptions struct {
	// KnownHosts holds known_hosts content, for example fetched from a
	// parameter store.
	KnownHosts []byte
	// KnownHostsPath points at a known_hosts file.
	KnownHostsPath string
	// InsecureIgnoreHostKey accepts any host key.
	InsecureIgnoreHostKey bool
}

// HostKeyCallback builds the callback for the given options. Content takes
// precedence over a file path.
func HostKeyCallback(opts HostKeyOptions) (ssh.HostKeyCallback, error) {
	switch {
	case len(opts.KnownHosts) > 0:
		return knownhosts.New(opts.KnownHosts)
	case opts.KnownHostsPath != "":
		return xknownhosts.New(opts.KnownHostsPath)
	case opts.InsecureIgnoreHostKey:
		return ssh.InsecureIgnoreHostKey(), nil
	default:
		return nil, fmt.Errorf("no known_hosts configured and host key checking is enabled")
	}
}

// ParsePrivateKey parses a PEM private key, decrypting it when a passphrase is given.
func ParsePrivateKey(pem []byte, passphrase string) (ssh.Signer, error) {
	if passphrase != "" {
		return ssh.ParsePrivateKeyWithPassphrase(pem, []byte(passphrase))
	}
	return ssh.ParsePrivateKey(pem)
}

// LoadPrivateKey reads and parses a private key file.
func LoadPrivateKey(path, passphrase string) (ssh.Signer, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key %s: %w", path, err)
	}
	signer, err := ParsePrivateKey(pem, passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key %s: %w", path, err)
	}
	return signer, nil
}
