package transport

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	derrors "github.com/zzenonn/zdeliver/internal/errors"
)

// Kind represents the type of destination a host string names
type Kind string

const (
	LocalKind Kind = "local"
	SSHKind   Kind = "ssh"
	S3Kind    Kind = "s3"
	GCSKind   Kind = "gcs"
)

// HostConfig is a parsed host string
type HostConfig struct {
	Raw  string
	Kind Kind

	// SSH hosts
	User string
	Host string
	Port int

	// Object store hosts
	Bucket string
	Prefix string
}

// Key returns the canonical form used to cache transports.
func (h HostConfig) Key() string {
	switch h.Kind {
	case LocalKind:
		return string(LocalKind)
	case SSHKind:
		return fmt.Sprintf("ssh://%s@%s:%d", h.User, h.Host, h.Port)
	default:
		return fmt.Sprintf("%s://%s/%s", h.Kind, h.Bucket, h.Prefix)
	}
}

// IsLocal reports whether a host string names this machine.
func IsLocal(host string) bool {
	switch strings.ToLower(strings.TrimSpace(host)) {
	case "", "local", "localhost":
		return true
	}
	return false
}

// ParseHost parses a host string.
// Formats: "local", "localhost", "s3://bucket[/prefix]", "gs://bucket[/prefix]",
// "ssh://[user@]host[:port]" or "[user@]host[:port]" (defaults to SSH)
func ParseHost(host string) (HostConfig, error) {
	host = strings.TrimSpace(host)
	if IsLocal(host) {
		return HostConfig{Raw: host, Kind: LocalKind}, nil
	}

	// Handle URI format (s3://, gs://, ssh://)
	if strings.Contains(host, "://") {
		parts := strings.SplitN(host, "://", 2)
		scheme := strings.ToLower(strings.TrimSpace(parts[0]))
		rest := strings.TrimSpace(parts[1])

		switch scheme {
		case "s3":
			return parseBucket(host, S3Kind, rest)
		case "gs":
			return parseBucket(host, GCSKind, rest)
		case "ssh":
			return parseSSH(host, rest)
		default:
			return HostConfig{}, fmt.Errorf("%w: unsupported scheme: %s", derrors.ErrInvalidHost, scheme)
		}
	}

	return parseSSH(host, host)
}

func parseBucket(raw string, kind Kind, rest string) (HostConfig, error) {
	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return HostConfig{}, fmt.Errorf("%w: bucket name cannot be empty", derrors.ErrInvalidHost)
	}
	return HostConfig{
		Raw:    raw,
		Kind:   kind,
		Bucket: bucket,
		Prefix: strings.Trim(prefix, "/"),
	}, nil
}

func parseSSH(raw, rest string) (HostConfig, error) {
	cfg := HostConfig{Raw: raw, Kind: SSHKind}

	if user, hostPart, ok := strings.Cut(rest, "@"); ok {
		if user == "" {
			return HostConfig{}, fmt.Errorf("%w: empty user in %q", derrors.ErrInvalidHost, raw)
		}
		cfg.User = user
		rest = hostPart
	}

	hostname := rest
	if h, p, err := net.SplitHostPort(rest); err == nil {
		port, err := strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return HostConfig{}, fmt.Errorf("%w: invalid port in %q", derrors.ErrInvalidHost, raw)
		}
		hostname = h
		cfg.Port = port
	}

	if hostname == "" || strings.ContainsAny(hostname, " /\t@") {
		return HostConfig{}, fmt.Errorf("%w: %q", derrors.ErrInvalidHost, raw)
	}
	cfg.Host = hostname
	return cfg, nil
}
