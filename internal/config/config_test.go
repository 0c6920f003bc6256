package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Cache.Type)
	assert.Equal(t, 12*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "storescu", cfg.DICOM.StoreSCUPath)
	assert.Equal(t, "echoscu", cfg.DICOM.EchoSCUPath)
	assert.Equal(t, "TELEPOST", cfg.DICOM.LocalAETitle)
	assert.Equal(t, 3, cfg.DICOM.WorkerCount)
	assert.Equal(t, 30*time.Second, cfg.DICOM.ProtocolTimeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("CACHE_TYPE", "redis")
	t.Setenv("SESSION_TTL", "1h")
	t.Setenv("TRANSFER_WORKERS", "5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Cache.Type)
	assert.Equal(t, time.Hour, cfg.Session.TTL)
	assert.Equal(t, 5, cfg.DICOM.WorkerCount)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load()
		require.NoError(t, err)
		cfg.Auth.JWTSecret = "secret"
		return cfg
	}

	assert.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing jwt secret", func(c *Config) { c.Auth.JWTSecret = "" }},
		{"bad server port", func(c *Config) { c.Server.Port = 0 }},
		{"missing db host", func(c *Config) { c.Database.Host = "" }},
		{"ae title too long", func(c *Config) { c.DICOM.LocalAETitle = "THISAETITLEISTOOLONG" }},
		{"zero workers", func(c *Config) { c.DICOM.WorkerCount = 0 }},
		{"bad cache type", func(c *Config) { c.Cache.Type = "memcached" }},
		{"non-positive session ttl", func(c *Config) { c.Session.TTL = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
