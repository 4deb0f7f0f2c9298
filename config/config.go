// Package config provides configuration loading for wulfpack lambdas.
//
// Configuration comes from environment variables, optionally layered over a
// YAML file named by WULFPACK_CONFIG. Environment variables win over the file,
// since Lambda deployments set them per function.
//
// Development fills in local endpoints (LocalStack, cognito-local) and the
// local pool and table names. Production fills in nothing: each lambda
// requires the resources it uses.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/wulf-data-engineering/wulfpack"
	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development against LocalStack and cognito-local.
	Development Environment = "development"

	// Production is for deployed lambdas.
	Production Environment = "production"
)

// Environment variables read by Load.
const (
	EnvConfigFile         = "WULFPACK_CONFIG"
	EnvEnvironment        = "WULFPACK_ENV"
	EnvRegion             = "AWS_REGION"
	EnvUserPoolID         = "USER_POOL_ID"
	EnvUsersTable         = "USERS_TABLE_NAME"
	EnvEndpointURL        = "ENDPOINT_URL"
	EnvCognitoEndpointURL = "COGNITO_ENDPOINT_URL"
	EnvCompression        = "WULFPACK_COMPRESSION"
)

// Development defaults.
const (
	LocalEndpointURL        = "http://localhost:4566"
	LocalCognitoEndpointURL = "http://localhost:9229"
	LocalUserPoolID         = "local_userPool"
	LocalUsersTable         = "users"
	LocalRegion             = "eu-central-1"
)

// Config is the configuration of a wulfpack lambda.
type Config struct {
	// Environment identifies the deployment type (development, production).
	Environment Environment `yaml:"environment"`

	// Region is the AWS region. Empty means the SDK default chain decides.
	Region string `yaml:"region"`

	// UserPoolID is the Cognito user pool serving the password policy.
	UserPoolID string `yaml:"user_pool_id"`

	// UsersTable is the DynamoDB table storing users.
	UsersTable string `yaml:"users_table"`

	// EndpointURL overrides the endpoint of every AWS service but Cognito.
	EndpointURL string `yaml:"endpoint_url"`

	// CognitoEndpointURL overrides the Cognito endpoint.
	CognitoEndpointURL string `yaml:"cognito_endpoint_url"`

	// Compression names the content encoding of large binary responses:
	// snappy, zstd or lz4. Empty means snappy.
	Compression string `yaml:"compression"`
}

// Default returns the configuration used before the file and the
// environment are applied.
func Default() *Config {
	return &Config{
		Environment: Production,
	}
}

// Load loads configuration from the process environment.
func Load() (*Config, error) {
	return LoadEnv(os.LookupEnv)
}

// LoadEnv loads configuration reading variables through lookup.
func LoadEnv(lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	if path, ok := lookup(EnvConfigFile); ok && path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
	}

	cfg.applyEnv(lookup)
	cfg.applyEnvironmentDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads configuration from a YAML file without consulting the environment.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.applyEnvironmentDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile merges a YAML file into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(target *string, name string) {
		if v, ok := lookup(name); ok && v != "" {
			*target = v
		}
	}
	var env string
	set(&env, EnvEnvironment)
	if env != "" {
		c.Environment = Environment(strings.ToLower(env))
	}
	set(&c.Region, EnvRegion)
	set(&c.UserPoolID, EnvUserPoolID)
	set(&c.UsersTable, EnvUsersTable)
	set(&c.EndpointURL, EnvEndpointURL)
	set(&c.CognitoEndpointURL, EnvCognitoEndpointURL)
	set(&c.Compression, EnvCompression)
}

func (c *Config) applyEnvironmentDefaults() {
	if c.Environment != Development {
		return
	}
	defaults := map[*string]string{
		&c.Region:             LocalRegion,
		&c.UserPoolID:         LocalUserPoolID,
		&c.UsersTable:         LocalUsersTable,
		&c.EndpointURL:        LocalEndpointURL,
		&c.CognitoEndpointURL: LocalCognitoEndpointURL,
	}
	for target, value := range defaults {
		if *target == "" {
			*target = value
		}
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error
	switch c.Environment {
	case Development, Production:
	default:
		errs = append(errs, fmt.Errorf("unknown environment %q", c.Environment))
	}
	if c.Compression != "" {
		if _, err := wulfpack.ParseCompressor(c.Compression); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// RequireUserPool fails when no user pool is configured.
func (c *Config) RequireUserPool() error {
	if c.UserPoolID == "" {
		return fmt.Errorf("%s is required", EnvUserPoolID)
	}
	return nil
}

// RequireUsersTable fails when no users table is configured.
func (c *Config) RequireUsersTable() error {
	if c.UsersTable == "" {
		return fmt.Errorf("%s is required", EnvUsersTable)
	}
	return nil
}

// IsDevelopment reports whether the lambda runs against local services.
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// Compressor returns the configured compression envelope.
func (c *Config) Compressor() (wulfpack.Compressor, error) {
	if c.Compression == "" {
		return wulfpack.Snappy{}, nil
	}
	return wulfpack.ParseCompressor(c.Compression)
}

// Wire returns a Wire using the configured compressor.
func (c *Config) Wire() (*wulfpack.Wire, error) {
	compressor, err := c.Compressor()
	if err != nil {
		return nil, err
	}
	return wulfpack.NewWire(wulfpack.WithCompressor(compressor)), nil
}
