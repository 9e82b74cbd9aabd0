package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Schema: SchemaConfig{Path: "schema.yaml"},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     3306,
			User:     "crudapi",
			Database: "app",
			Pool: PoolConfig{
				MaxOpen:     25,
				MaxIdle:     5,
				MaxLifetime: 5 * time.Minute,
			},
			ConnectionTimeout:       60 * time.Second,
			ConnectionRetryInterval: 2 * time.Second,
		},
		Server: ServerConfig{
			Port:         8080,
			DefaultLimit: 100,
			MaxLimit:     1000,
		},
		Observability: ObservabilityConfig{
			TraceSampleRatio: 1.0,
			Logging:          LoggingConfig{Level: "info", Format: "json"},
			OTLP:             OTLPConfig{Endpoint: "localhost:4317"},
		},
	}
}

func TestDSNFromDiscreteFields(t *testing.T) {
	d := DatabaseConfig{
		Host:     "db.example.com",
		Port:     3306,
		User:     "app",
		Password: "secret",
		Database: "blog",
	}
	assert.Equal(t, "app:secret@tcp(db.example.com:3306)/blog?parseTime=true&loc=UTC", d.DSN())
}

func TestDSNFromConnectionString(t *testing.T) {
	d := DatabaseConfig{
		ConnectionString: "app:secret@tcp(db:3306)/blog",
	}
	dsn := d.DSN()
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "loc=UTC")
}

func TestDSNTLSParam(t *testing.T) {
	tests := []struct {
		mode string
		want string
	}{
		{"off", "false"},
		{"skip-verify", "skip-verify"},
		{"verify-ca", tlsConfigName},
		{"verify-full", tlsConfigName},
		{"", ""},
	}
	for _, tt := range tests {
		d := DatabaseConfig{TLS: DatabaseTLSConfig{Mode: tt.mode}}
		assert.Equal(t, tt.want, d.effectiveTLSParam(), "mode %q", tt.mode)
	}
}

func TestResolveEffectiveDatabaseName(t *testing.T) {
	name, source, err := resolveEffectiveDatabaseName("blog", "")
	require.NoError(t, err)
	assert.Equal(t, "blog", name)
	assert.Equal(t, "database.database", source)

	name, source, err = resolveEffectiveDatabaseName("", "app:pw@tcp(db:3306)/blog")
	require.NoError(t, err)
	assert.Equal(t, "blog", name)
	assert.Equal(t, "dsn", source)

	_, _, err = resolveEffectiveDatabaseName("other", "app:pw@tcp(db:3306)/blog")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mismatch")

	_, _, err = resolveEffectiveDatabaseName("", "")
	require.Error(t, err)
}

func TestValidateAcceptsDefaults(t *testing.T) {
	result := validConfig().Validate()
	assert.False(t, result.HasErrors(), "unexpected errors: %s", result.Error())
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0

	result := cfg.Validate()
	require.True(t, result.HasErrors())
	assert.Contains(t, result.Error(), "server.port")
}

func TestValidateRejectsEmptySchemaPath(t *testing.T) {
	cfg := validConfig()
	cfg.Schema.Path = "  "

	result := cfg.Validate()
	require.True(t, result.HasErrors())
	assert.Contains(t, result.Error(), "schema.path")
}

func TestValidateRejectsDefaultLimitOverMax(t *testing.T) {
	cfg := validConfig()
	cfg.Server.DefaultLimit = 2000
	cfg.Server.MaxLimit = 100

	result := cfg.Validate()
	require.True(t, result.HasErrors())
	assert.Contains(t, result.Error(), "default_limit")
}

func TestValidateWarnsOnSkipVerify(t *testing.T) {
	cfg := validConfig()
	cfg.Database.TLS.Mode = "skip-verify"

	result := cfg.Validate()
	assert.False(t, result.HasErrors())
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "database.tls.mode", result.Warnings[0].Field)
}

func TestValidateRejectsFileTLSWithoutCert(t *testing.T) {
	cfg := validConfig()
	cfg.Server.TLSMode = "file"

	result := cfg.Validate()
	require.True(t, result.HasErrors())
	assert.Contains(t, result.Error(), "tls_cert_file")
}

func TestValidateRequiresOTLPEndpointForTracing(t *testing.T) {
	cfg := validConfig()
	cfg.Observability.TracingEnabled = true
	cfg.Observability.OTLP.Endpoint = ""

	result := cfg.Validate()
	require.True(t, result.HasErrors())
	assert.Contains(t, result.Error(), "otlp.endpoint")
}

func TestMergeOTLPConfigs(t *testing.T) {
	base := OTLPConfig{
		Endpoint:    "collector:4317",
		Protocol:    "grpc",
		Timeout:     10 * time.Second,
		Compression: "gzip",
		Headers:     map[string]string{"x-team": "core"},
	}
	override := OTLPConfig{
		Endpoint: "traces:4318",
		Protocol: "http/protobuf",
		Insecure: true,
		Headers:  map[string]string{"x-signal": "traces"},
	}

	merged := mergeOTLPConfigs(base, override)
	assert.Equal(t, "traces:4318", merged.Endpoint)
	assert.Equal(t, "http/protobuf", merged.Protocol)
	assert.True(t, merged.Insecure)
	assert.Equal(t, 10*time.Second, merged.Timeout)
	assert.Equal(t, "gzip", merged.Compression)
	assert.Equal(t, "core", merged.Headers["x-team"])
	assert.Equal(t, "traces", merged.Headers["x-signal"])
}

func TestGetTracesConfigFallsBackToGlobal(t *testing.T) {
	o := ObservabilityConfig{
		OTLP: OTLPConfig{Endpoint: "collector:4317"},
	}
	assert.Equal(t, "collector:4317", o.GetTracesConfig().Endpoint)

	o.Traces = &OTLPConfig{Endpoint: "traces:4317"}
	assert.Equal(t, "traces:4317", o.GetTracesConfig().Endpoint)
}
