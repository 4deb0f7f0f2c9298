package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wulf-data-engineering/wulfpack"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wulfpack.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestLoadEnv_DevelopmentDefaults(t *testing.T) {
	cfg, err := LoadEnv(env(map[string]string{EnvEnvironment: "development"}))
	if err != nil {
		t.Fatalf("LoadEnv failed: %v", err)
	}

	if !cfg.IsDevelopment() {
		t.Error("expected development environment")
	}
	if cfg.EndpointURL != LocalEndpointURL {
		t.Errorf("expected %s, got %s", LocalEndpointURL, cfg.EndpointURL)
	}
	if cfg.CognitoEndpointURL != LocalCognitoEndpointURL {
		t.Errorf("expected %s, got %s", LocalCognitoEndpointURL, cfg.CognitoEndpointURL)
	}
	if cfg.UserPoolID != LocalUserPoolID {
		t.Errorf("expected %s, got %s", LocalUserPoolID, cfg.UserPoolID)
	}
	if cfg.UsersTable != LocalUsersTable {
		t.Errorf("expected %s, got %s", LocalUsersTable, cfg.UsersTable)
	}
	if err := cfg.RequireUserPool(); err != nil {
		t.Errorf("expected user pool, got %v", err)
	}
}

func TestLoadEnv_ProductionHasNoDefaults(t *testing.T) {
	cfg, err := LoadEnv(env(nil))
	if err != nil {
		t.Fatalf("LoadEnv failed: %v", err)
	}

	if cfg.Environment != Production {
		t.Errorf("expected production by default, got %s", cfg.Environment)
	}
	if cfg.EndpointURL != "" || cfg.CognitoEndpointURL != "" {
		t.Errorf("expected no endpoint overrides, got %q %q", cfg.EndpointURL, cfg.CognitoEndpointURL)
	}
	if err := cfg.RequireUserPool(); err == nil || !strings.Contains(err.Error(), EnvUserPoolID) {
		t.Errorf("expected missing user pool error, got %v", err)
	}
	if err := cfg.RequireUsersTable(); err == nil || !strings.Contains(err.Error(), EnvUsersTable) {
		t.Errorf("expected missing table error, got %v", err)
	}
}

func TestLoadEnv_Variables(t *testing.T) {
	cfg, err := LoadEnv(env(map[string]string{
		EnvEnvironment: "Production",
		EnvRegion:      "us-east-1",
		EnvUserPoolID:  "us-east-1_abc",
		EnvUsersTable:  "prod-users",
		EnvEndpointURL: "http://dynamo.local",
		EnvCompression: "zstd",
	}))
	if err != nil {
		t.Fatalf("LoadEnv failed: %v", err)
	}

	if cfg.Environment != Production {
		t.Errorf("expected case-insensitive environment, got %s", cfg.Environment)
	}
	if cfg.Region != "us-east-1" || cfg.UserPoolID != "us-east-1_abc" || cfg.UsersTable != "prod-users" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.EndpointURL != "http://dynamo.local" {
		t.Errorf("unexpected endpoint %s", cfg.EndpointURL)
	}

	compressor, err := cfg.Compressor()
	if err != nil {
		t.Fatalf("Compressor failed: %v", err)
	}
	if compressor.Encoding() != wulfpack.EncodingZstd {
		t.Errorf("expected zstd, got %s", compressor.Encoding())
	}
}

func TestLoadEnv_FileLayering(t *testing.T) {
	path := writeConfig(t, `
environment: development
user_pool_id: file-pool
users_table: file-table
compression: lz4
`)

	cfg, err := LoadEnv(env(map[string]string{
		EnvConfigFile: path,
		EnvUsersTable: "env-table",
	}))
	if err != nil {
		t.Fatalf("LoadEnv failed: %v", err)
	}

	if cfg.UserPoolID != "file-pool" {
		t.Errorf("expected value from file, got %s", cfg.UserPoolID)
	}
	if cfg.UsersTable != "env-table" {
		t.Errorf("expected environment to win over file, got %s", cfg.UsersTable)
	}
	if cfg.EndpointURL != LocalEndpointURL {
		t.Errorf("expected development default, got %s", cfg.EndpointURL)
	}

	w, err := cfg.Wire()
	if err != nil {
		t.Fatalf("Wire failed: %v", err)
	}
	if w.Compressor().Encoding() != wulfpack.EncodingLZ4 {
		t.Errorf("expected lz4 wire, got %s", w.Compressor().Encoding())
	}
}

func TestLoadEnv_MissingFile(t *testing.T) {
	_, err := LoadEnv(env(map[string]string{EnvConfigFile: filepath.Join(t.TempDir(), "missing.yaml")}))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadEnv_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"environment": {EnvEnvironment: "staging"},
		"compression": {EnvCompression: "brotli"},
	}
	for name, vars := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadEnv(env(vars)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, "environment: production\nuser_pool_id: pool\n")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.UserPoolID != "pool" {
		t.Errorf("expected pool, got %s", cfg.UserPoolID)
	}

	if _, err := LoadFile(writeConfig(t, "environment: [")); err == nil {
		t.Error("expected malformed YAML to fail")
	}
}

func TestLoad_ProcessEnvironment(t *testing.T) {
	t.Setenv(EnvConfigFile, "")
	t.Setenv(EnvEnvironment, "development")
	t.Setenv(EnvUserPoolID, "from-env")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.UserPoolID != "from-env" {
		t.Errorf("expected from-env, got %s", cfg.UserPoolID)
	}
}

func TestCompressor_Default(t *testing.T) {
	c, err := Default().Compressor()
	if err != nil {
		t.Fatalf("Compressor failed: %v", err)
	}
	if c.Encoding() != wulfpack.EncodingSnappy {
		t.Errorf("expected snappy, got %s", c.Encoding())
	}
}
