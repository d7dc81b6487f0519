package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"

	"github.com/zzenonn/zdeliver/internal/remote"
	"github.com/zzenonn/zdeliver/internal/transport"
)

// ParameterAPI is the subset of the SSM client used to fetch SSH material
type ParameterAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// GetParameter fetches and decrypts one SSM parameter.
func GetParameter(ctx context.Context, client ParameterAPI, name string) ([]byte, error) {
	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get parameter %s: %w", name, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return nil, fmt.Errorf("parameter %s has no value", name)
	}
	return []byte(*out.Parameter.Value), nil
}

// SSHSettings assembles the settings shared by all SSH destinations. The
// private key and known_hosts content may come from files or from SSM
// parameters; SSM is only contacted when a parameter is configured.
func (c *Config) SSHSettings(ctx context.Context) (transport.SSHSettings, error) {
	var params ParameterAPI
	if c.SSH.PrivateKeyParameter != "" || c.SSH.KnownHostsParameter != "" {
		awsCfg, err := c.AWSConfig(ctx)
		if err != nil {
			return transport.SSHSettings{}, err
		}
		params = ssm.NewFromConfig(awsCfg)
	}
	return c.sshSettings(ctx, params)
}

func (c *Config) sshSettings(ctx context.Context, params ParameterAPI) (transport.SSHSettings, error) {
	settings := transport.SSHSettings{
		User:    c.SSH.User,
		Port:    c.SSH.Port,
		Timeout: c.SSH.Timeout,
	}

	signer, err := c.loadSigner(ctx, params)
	if err != nil {
		return transport.SSHSettings{}, err
	}
	if signer != nil {
		settings.Signers = []ssh.Signer{signer}
	}

	hostKeys := remote.HostKeyOptions{
		KnownHostsPath:        c.SSH.KnownHostsPath,
		InsecureIgnoreHostKey: c.SSH.InsecureIgnoreHostKey,
	}
	if c.SSH.KnownHostsParameter != "" {
		hostKeys.KnownHosts, err = GetParameter(ctx, params, c.SSH.KnownHostsParameter)
		if err != nil {
			return transport.SSHSettings{}, err
		}
	}
	if len(hostKeys.KnownHosts) > 0 || hostKeys.KnownHostsPath != "" || hostKeys.InsecureIgnoreHostKey {
		settings.HostKeyCallback, err = remote.HostKeyCallback(hostKeys)
		if err != nil {
			return transport.SSHSettings{}, err
		}
	}
	if c.SSH.InsecureIgnoreHostKey {
		log.Warn("SSH host key checking is disabled")
	}

	return settings, nil
}

func (c *Config) loadSigner(ctx context.Context, params ParameterAPI) (ssh.Signer, error) {
	switch {
	case c.SSH.PrivateKeyParameter != "":
		pem, err := GetParameter(ctx, params, c.SSH.PrivateKeyParameter)
		if err != nil {
			return nil, err
		}
		signer, err := remote.ParsePrivateKey(pem, c.SSH.PrivateKeyPassphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key from %s: %w", c.SSH.PrivateKeyParameter, err)
		}
		return signer, nil
	case c.SSH.PrivateKeyPath != "":
		return remote.LoadPrivateKey(c.SSH.PrivateKeyPath, c.SSH.PrivateKeyPassphrase)
	default:
		return nil, nil
	}
}
