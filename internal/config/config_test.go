package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chargeweave/ocpihub/internal/ocpi"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.GinMode)
	assert.Equal(t, ocpi.RoleEMSP, cfg.Role())
	assert.Equal(t, "/ocpi", cfg.OCPI.PathPrefix)
	assert.True(t, cfg.Store.KeepRemovedEvses)
	assert.False(t, cfg.Store.AllowDowngrades)
	assert.Equal(t, AuditBackendFile, cfg.Audit.Backend)
	assert.True(t, cfg.Observability.Metrics.Enabled)

	require.NoError(t, cfg.Validate())
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
  gin_mode: test
ocpi:
  country_code: DE
  party_id: HUB
  role: CPO
  business_name: Test Hub
  external_url: https://hub.test/ocpi
  locations_as_open_data: true
store:
  allow_downgrades: true
audit:
  backend: redis
redis:
  addresses: ["redis.test:6379"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, ocpi.RoleCPO, cfg.Role())
	assert.True(t, cfg.OCPI.LocationsAsOpenData)
	assert.True(t, cfg.Store.AllowDowngrades)
	assert.Equal(t, AuditBackendRedis, cfg.Audit.Backend)
	assert.Equal(t, []string{"redis.test:6379"}, cfg.Redis.Addresses)
	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddr())
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	t.Setenv("OCPIHUB_SERVER_PORT", "7777")
	t.Setenv("OCPIHUB_OCPI_PARTY_ID", "XYZ")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, "XYZ", cfg.OCPI.PartyID)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid port",
		},
		{
			name:    "invalid gin mode",
			mutate:  func(c *Config) { c.Server.GinMode = "production" },
			wantErr: "invalid gin_mode",
		},
		{
			name:    "short country code",
			mutate:  func(c *Config) { c.OCPI.CountryCode = "NLD" },
			wantErr: "country_code",
		},
		{
			name:    "short party id",
			mutate:  func(c *Config) { c.OCPI.PartyID = "HUBX" },
			wantErr: "party_id",
		},
		{
			name:    "invalid role",
			mutate:  func(c *Config) { c.OCPI.Role = "NSP" },
			wantErr: "role",
		},
		{
			name:    "missing external url",
			mutate:  func(c *Config) { c.OCPI.ExternalURL = "" },
			wantErr: "external_url",
		},
		{
			name:    "file backend without path",
			mutate:  func(c *Config) { c.Audit.FilePath = "" },
			wantErr: "file_path",
		},
		{
			name: "redis backend without addresses",
			mutate: func(c *Config) {
				c.Audit.Backend = AuditBackendRedis
				c.Redis.Addresses = nil
			},
			wantErr: "redis addresses",
		},
		{
			name:    "unknown audit backend",
			mutate:  func(c *Config) { c.Audit.Backend = "kafka" },
			wantErr: "invalid backend",
		},
		{
			name:    "tls without certs",
			mutate:  func(c *Config) { c.TLS.Enabled = true },
			wantErr: "cert_file",
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Observability.Logging.Level = "trace" },
			wantErr: "logging level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_RoleIsCaseInsensitive(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	cfg.OCPI.Role = "cpo"
	assert.Equal(t, ocpi.RoleCPO, cfg.Role())
	require.NoError(t, cfg.Validate())
}
