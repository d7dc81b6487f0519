package config

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/api/option"
)

// SSHConfig holds the settings for SSH destination hosts
type SSHConfig struct {
	User                  string        `yaml:"user"`
	Port                  int           `yaml:"port"`
	PrivateKeyPath        string        `yaml:"private_key_path"`
	PrivateKeyParameter   string        `yaml:"private_key_parameter"`
	PrivateKeyPassphrase  string        `yaml:"private_key_passphrase"`
	KnownHostsPath        string        `yaml:"known_hosts_path"`
	KnownHostsParameter   string        `yaml:"known_hosts_parameter"`
	InsecureIgnoreHostKey bool          `yaml:"insecure_ignore_host_key"`
	Timeout               time.Duration `yaml:"timeout"`
}

// Config holds the application configuration
type Config struct {
	LogLevel         string        `yaml:"log_level"`
	PackageDirectory string        `yaml:"package_directory"`
	WorkDirectory    string        `yaml:"work_directory"`
	MaxAttempts      int           `yaml:"max_attempts"`
	Backoff          time.Duration `yaml:"backoff"`
	Quiet            bool          `yaml:"quiet"`
	RecordDeliveries bool          `yaml:"record_deliveries"`
	DynamoDBTable    string        `yaml:"dynamodb_table"`
	CacheHosts       []string      `yaml:"cache_hosts"`
	SSH              SSHConfig     `yaml:"ssh"`
	// GCSCredentialsFile: Google Cloud SDK clients find credentials on their
	// own (environment, metadata service). Set this only to override that.
	GCSCredentialsFile string `yaml:"gcs_credentials_file"`

	// AWS SDK uses a shared configuration object that contains credentials,
	// region, retry policies, etc. S3, SSM and DynamoDB clients are all
	// created from it. It is loaded on first use only.
	awsOnce   sync.Once
	awsConfig aws.Config
	awsErr    error

	gcsOnce   sync.Once
	gcsClient *storage.Client
	gcsErr    error
}

// LoadConfig loads configuration from config.yaml, environment variables, or CLI flags
// Priority: CLI flags > Environment variables > config.yaml > defaults
func LoadConfig(configPath string, rootCmd *cobra.Command) (*Config, error) {
	if err := setupViper(configPath, rootCmd); err != nil {
		return nil, err
	}

	cfg := &Config{
		LogLevel:         viper.GetString("log_level"),
		PackageDirectory: viper.GetString("package_directory"),
		WorkDirectory:    viper.GetString("work_directory"),
		MaxAttempts:      viper.GetInt("max_attempts"),
		Backoff:          viper.GetDuration("backoff"),
		Quiet:            viper.GetBool("quiet"),
		RecordDeliveries: viper.GetBool("record_deliveries"),
		DynamoDBTable:    viper.GetString("dynamodb_table"),
		CacheHosts:       viper.GetStringSlice("cache_hosts"),
		SSH: SSHConfig{
			User:                  viper.GetString("ssh.user"),
			Port:                  viper.GetInt("ssh.port"),
			PrivateKeyPath:        viper.GetString("ssh.private_key_path"),
			PrivateKeyParameter:   viper.GetString("ssh.private_key_parameter"),
			PrivateKeyPassphrase:  viper.GetString("ssh.private_key_passphrase"),
			KnownHostsPath:        viper.GetString("ssh.known_hosts_path"),
			KnownHostsParameter:   viper.GetString("ssh.known_hosts_parameter"),
			InsecureIgnoreHostKey: viper.GetBool("ssh.insecure_ignore_host_key"),
			Timeout:               viper.GetDuration("ssh.timeout"),
		},
		GCSCredentialsFile: viper.GetString("gcs_credentials_file"),
	}

	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("max_attempts must be at least 1, got %d", cfg.MaxAttempts)
	}
	if cfg.Backoff < 0 {
		return nil, fmt.Errorf("backoff cannot be negative")
	}

	return cfg, nil
}

// setupViper configures Viper with defaults, paths, and bindings
func setupViper(configPath string, rootCmd *cobra.Command) error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	}

	setDefaults()
	// ssh.user is read from SSH_USER
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if rootCmd != nil {
		if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
			return fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("log_level", "info")
	viper.SetDefault("package_directory", ".")
	viper.SetDefault("work_directory", ".")
	viper.SetDefault("max_attempts", 3)
	viper.SetDefault("backoff", "2s")
	viper.SetDefault("quiet", false)
	viper.SetDefault("record_deliveries", false)
	viper.SetDefault("dynamodb_table", "delivery_records")
	viper.SetDefault("cache_hosts", []string{})
	viper.SetDefault("ssh.port", 22)
	viper.SetDefault("ssh.insecure_ignore_host_key", false)
	viper.SetDefault("ssh.timeout", "30s")
}

// AWSConfig loads the AWS SDK configuration the first time it is needed
func (c *Config) AWSConfig(ctx context.Context) (aws.Config, error) {
	c.awsOnce.Do(func() {
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			c.awsErr = fmt.Errorf("unable to load AWS SDK config: %w", err)
			return
		}
		c.awsConfig = cfg
	})
	return c.awsConfig, c.awsErr
}

// GCSClient creates the Google Cloud Storage client the first time it is needed
func (c *Config) GCSClient(ctx context.Context) (*storage.Client, error) {
	c.gcsOnce.Do(func() {
		var opts []option.ClientOption
		if c.GCSCredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(c.GCSCredentialsFile))
		}
		client, err := storage.NewClient(ctx, opts...)
		if err != nil {
			c.gcsErr = fmt.Errorf("unable to create GCS client: %w", err)
			return
		}
		c.gcsClient = client
	})
	return c.gcsClient, c.gcsErr
}

// Close releases clients created on demand.
func (c *Config) Close() error {
	if c.gcsClient != nil {
		return c.gcsClient.Close()
	}
	return nil
}

// SetConfigValue sets a configuration value (used for CLI flags)
func SetConfigValue(key string, value interface{}) {
	viper.Set(key, value)
}
