package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
[aws]
region = "eu-west-1"
regions = ["us-east-1", "eu-west-1"]
session_duration = "30m"

[store]
driver = "dynamodb"
stage = "staging"

[tagging]
key = "env"
policy = "/etc/autotag/tags.rego"

[http]
addr = ":9000"
jwt_secret = "s3cret"
jwt_issuer = "autotag"

[otel]
endpoint = "localhost:4317"
insecure = true
service_name = "autotag"

[otel.traces]
enabled = true
sample_rate = 1.0

[otel.metrics]
enabled = true
prometheus = true

[log]
level = "debug"
`
	path := writeTempConfig(t, content)
	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", cfg.AWS.Region)
	assert.Equal(t, []string{"us-east-1", "eu-west-1"}, cfg.AWS.Regions)
	assert.Equal(t, 30*time.Minute, cfg.AWS.SessionDuration)
	assert.Equal(t, StoreDynamoDB, cfg.Store.Driver)
	assert.Equal(t, "staging", cfg.Store.Stage)
	assert.Equal(t, "env", cfg.Tagging.Key)
	assert.Equal(t, "/etc/autotag/tags.rego", cfg.Tagging.Policy)
	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.Equal(t, "email", cfg.HTTP.PrincipalClaim)
	assert.True(t, cfg.OTEL.Traces.Enabled)
	assert.True(t, cfg.OTEL.Metrics.Prometheus)
	assert.Equal(t, "debug", cfg.Log.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Defaults(t *testing.T) {
	path := writeTempConfig(t, "")
	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "us-east-1", cfg.AWS.Region)
	assert.Empty(t, cfg.AWS.Regions)
	assert.Equal(t, time.Hour, cfg.AWS.SessionDuration)
	assert.Equal(t, StoreBolt, cfg.Store.Driver)
	assert.Equal(t, "environment", cfg.Tagging.Key)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "autotag", cfg.OTEL.ServiceName)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, time.Hour, cfg.AWS.SessionDuration)
}

func TestLoad_JWTSecretFromEnv(t *testing.T) {
	t.Setenv("AUTOTAG_JWT_SECRET", "from-env")
	path := writeTempConfig(t, "[http]\njwt_secret = \"from-file\"\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.HTTP.JWTSecret)
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	require.Error(t, err)
}

func TestLoad_InvalidTOML(t *testing.T) {
	content := `
[aws
regions = "not an array"
`
	path := writeTempConfig(t, content)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_InvalidDuration(t *testing.T) {
	content := `
[aws]
session_duration = "not-a-duration"
`
	path := writeTempConfig(t, content)
	_, err := Load(path)
	require.Error(t, err)
}

func TestConfig_Validate_SessionDurationBounds(t *testing.T) {
	cfg := Default()
	cfg.AWS.SessionDuration = 5 * time.Minute
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session_duration")

	cfg.AWS.SessionDuration = 13 * time.Hour
	require.Error(t, cfg.Validate())
}

func TestConfig_Validate_Regions(t *testing.T) {
	tests := []struct {
		name    string
		regions []string
		wantErr string
	}{
		{name: "unset", regions: nil},
		{name: "distinct", regions: []string{"us-east-1", "eu-west-1"}},
		{name: "duplicate", regions: []string{"us-east-1", "us-east-1"}, wantErr: "listed twice"},
		{name: "empty entry", regions: []string{"us-east-1", ""}, wantErr: "empty entry"},
		{name: "global", regions: []string{"global"}, wantErr: "not a region"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.AWS.Regions = tt.regions
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_Validate_UnknownDriver(t *testing.T) {
	cfg := Default()
	cfg.Store.Driver = "postgres"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}

func TestConfig_Validate_SampleRate(t *testing.T) {
	cfg := Default()
	cfg.OTEL.Traces.SampleRate = 1.5
	require.Error(t, cfg.Validate())
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	err := os.WriteFile(path, []byte(content), 0644)
	require.NoError(t, err)
	return path
}
