package config

import (
	"context"

	"github.com/spf13/viper"

	"github.com/turbot/flowci/internal/constants"
	"github.com/turbot/flowci/internal/fperr"
)

// Configuration represents the configuration as set by command-line flags,
// environment variables and the config file. It is built once per process and
// travels on the context.
type Configuration struct {
	ctx        context.Context
	ConfigPath string

	Concurrency         int
	FailFast            bool
	HaltOnFailure       bool
	RetainArtifacts     bool
	CI                  bool
	ExcludedFiles       []string
	SecretEnv           []string
	DockerMinApiVersion string
	DockerPullTimeout   int
	Output              string
}

// ConfigOption defines a type of function to configures the Config.
type ConfigOption func(*Configuration) error

// NewConfig creates a new Config.
func NewConfig(ctx context.Context, opts ...ConfigOption) (*Configuration, error) {
	// Defaults
	c := &Configuration{
		ctx:                 ctx,
		Concurrency:         constants.DefaultConcurrency,
		HaltOnFailure:       true,
		ExcludedFiles:       constants.DefaultExcludedFiles,
		SecretEnv:           constants.DefaultSecretEnv,
		DockerMinApiVersion: constants.DefaultDockerMinApiVersion,
		DockerPullTimeout:   constants.DefaultDockerPullTimeout,
		Output:              "pretty",
	}
	// Set options
	for _, opt := range opts {
		err := opt(c)
		if err != nil {
			return c, err
		}
	}

	if c.Concurrency < 0 {
		return c, fperr.ConfigurationWithMessage("concurrency must not be negative")
	}
	return c, nil
}

func WithConcurrency(concurrency int) ConfigOption {
	return func(c *Configuration) error {
		c.Concurrency = concurrency
		return nil
	}
}

func WithFailFast(failFast bool) ConfigOption {
	return func(c *Configuration) error {
		c.FailFast = failFast
		return nil
	}
}

func WithHaltOnFailure(halt bool) ConfigOption {
	return func(c *Configuration) error {
		c.HaltOnFailure = halt
		return nil
	}
}

func WithRetainArtifacts(retain bool) ConfigOption {
	return func(c *Configuration) error {
		c.RetainArtifacts = retain
		return nil
	}
}

func WithExcludedFiles(patterns []string) ConfigOption {
	return func(c *Configuration) error {
		c.ExcludedFiles = patterns
		return nil
	}
}

// WithViper reads every setting from the global viper instance. Keys that
// are not set keep their defaults.
func WithViper() ConfigOption {
	return func(c *Configuration) error {
		c.ConfigPath = viper.GetString(constants.ArgConfigPath)
		if viper.IsSet(constants.ArgConcurrency) {
			c.Concurrency = viper.GetInt(constants.ArgConcurrency)
		}
		if viper.IsSet(constants.ArgHaltOnFailure) {
			c.HaltOnFailure = viper.GetBool(constants.ArgHaltOnFailure)
		}
		c.FailFast = viper.GetBool(constants.ArgFailFast)
		c.RetainArtifacts = viper.GetBool(constants.ArgRetainArtifacts)
		c.CI = viper.GetBool(constants.ArgCI)
		if files := viper.GetStringSlice(constants.ArgExcludedFiles); len(files) > 0 {
			c.ExcludedFiles = files
		}
		if names := viper.GetStringSlice(constants.ArgSecretEnv); len(names) > 0 {
			c.SecretEnv = names
		}
		if v := viper.GetString(constants.ArgDockerMinApiVersion); v != "" {
			c.DockerMinApiVersion = v
		}
		if v := viper.GetInt(constants.ArgDockerPullTimeoutSec); v > 0 {
			c.DockerPullTimeout = v
		}
		if v := viper.GetString(constants.ArgOutput); v != "" {
			c.Output = v
		}
		return nil
	}
}

// FromViper builds the process configuration from viper.
func FromViper(ctx context.Context) (*Configuration, error) {
	return NewConfig(ctx, WithViper())
}

type configContextKey struct{}

func ContextWithConfig(ctx context.Context, c *Configuration) context.Context {
	return context.WithValue(ctx, configContextKey{}, c)
}

// GetConfigFromContext returns the configuration on ctx, or the defaults when
// there is none.
func GetConfigFromContext(ctx context.Context) *Configuration {
	if c, ok := ctx.Value(configContextKey{}).(*Configuration); ok && c != nil {
		return c
	}
	c, _ := NewConfig(ctx)
	return c
}
