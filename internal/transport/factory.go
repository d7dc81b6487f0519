package transport

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/crypto/ssh"

	"github.com/zzenonn/zdeliver/internal/remote"
)

// Factory creates the transport for a parsed host
type Factory interface {
	Create(ctx context.Context, host HostConfig) (Transport, error)
}

// SSHSettings holds the connection settings shared by every SSH host.
// A user or port in the host string overrides User and Port.
type SSHSettings struct {
	User            string
	Port            int
	Signers         []ssh.Signer
	HostKeyCallback ssh.HostKeyCallback
	Timeout         time.Duration
}

// AWSConfigLoader and GCSClientLoader are called the first time an object
// store host is used, so SSH-only deliveries never need cloud credentials.
type (
	AWSConfigLoader func(ctx context.Context) (aws.Config, error)
	GCSClientLoader func(ctx context.Context) (*storage.Client, error)
)

// TransportFactory creates transport instances
type TransportFactory struct {
	ssh       SSHSettings
	awsConfig AWSConfigLoader
	gcsClient GCSClientLoader
	quiet     bool
}

// NewTransportFactory creates a new factory. Either loader may be nil when
// that provider is not configured.
func NewTransportFactory(sshSettings SSHSettings, awsConfig AWSConfigLoader, gcsClient GCSClientLoader, quiet bool) *TransportFactory {
	return &TransportFactory{
		ssh:       sshSettings,
		awsConfig: awsConfig,
		gcsClient: gcsClient,
		quiet:     quiet,
	}
}

// Create creates a transport based on host configuration
func (f *TransportFactory) Create(ctx context.Context, host HostConfig) (Transport, error) {
	switch host.Kind {
	case LocalKind:
		return NewLocalTransport(f.quiet), nil
	case SSHKind:
		cfg := remote.SSHConfig{
			User:            f.ssh.User,
			Host:            host.Host,
			Port:            f.ssh.Port,
			Signers:         f.ssh.Signers,
			HostKeyCallback: f.ssh.HostKeyCallback,
			Timeout:         f.ssh.Timeout,
		}
		if host.User != "" {
			cfg.User = host.User
		}
		if host.Port != 0 {
			cfg.Port = host.Port
		}
		if cfg.User == "" {
			return nil, fmt.Errorf("no SSH user configured for %s", host.Raw)
		}
		return NewSSHTransport(host.Raw, remote.NewSSHRunner(cfg), f.quiet), nil
	case S3Kind:
		if f.awsConfig == nil {
			return nil, fmt.Errorf("AWS not configured")
		}
		awsCfg, err := f.awsConfig(ctx)
		if err != nil {
			return nil, err
		}
		return NewS3Transport(host.Raw, s3.NewFromConfig(awsCfg), host.Bucket, host.Prefix, f.quiet), nil
	case GCSKind:
		if f.gcsClient == nil {
			return nil, fmt.Errorf("GCS client not configured")
		}
		client, err := f.gcsClient(ctx)
		if err != nil {
			return nil, err
		}
		return NewGCSTransport(host.Raw, client, host.Bucket, host.Prefix, f.quiet), nil
	default:
		return nil, fmt.Errorf("unsupported host type: %s", host.Kind)
	}
}
