package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadClient_Defaults(t *testing.T) {
	v := New()
	SetClientDefaults(v)

	cfg, err := LoadClient(v)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.Server)
	assert.Equal(t, "outreach.db", cfg.DBPath)
	assert.Equal(t, 15*time.Second, cfg.ProbeInterval)
	assert.Equal(t, 5*time.Minute, cfg.SyncInterval)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.VolunteerID)
}

func TestLoadClient_Env(t *testing.T) {
	t.Setenv("OUTREACH_SERVER", "https://outreach.example.org/")
	t.Setenv("OUTREACH_PROBE_INTERVAL", "3s")
	t.Setenv("OUTREACH_VOLUNTEER_ID", "vol-1")

	v := New()
	SetClientDefaults(v)

	cfg, err := LoadClient(v)
	require.NoError(t, err)

	assert.Equal(t, "https://outreach.example.org", cfg.Server)
	assert.Equal(t, 3*time.Second, cfg.ProbeInterval)
	assert.Equal(t, "vol-1", cfg.VolunteerID)
}

func TestLoadClient_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outreach.yaml")
	content := "server: http://10.0.0.5:9000\ndb: /tmp/o.db\nsync-interval: 30s\nlog-format: json\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	v := New()
	SetClientDefaults(v)
	v.Set(KeyConfig, path)

	cfg, err := LoadClient(v)
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.0.5:9000", cfg.Server)
	assert.Equal(t, "/tmp/o.db", cfg.DBPath)
	assert.Equal(t, 30*time.Second, cfg.SyncInterval)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadClient_Invalid(t *testing.T) {
	tests := []struct {
		set  map[string]any
		name string
	}{
		{name: "bad url", set: map[string]any{KeyServer: "localhost:8080"}},
		{name: "empty db", set: map[string]any{KeyDB: ""}},
		{name: "zero probe interval", set: map[string]any{KeyProbeInterval: "0s"}},
		{name: "backoff inverted", set: map[string]any{KeyBackoffBase: "10m", KeyBackoffMax: "1m"}},
		{name: "bad log level", set: map[string]any{KeyLogLevel: "loud"}},
		{name: "missing config file", set: map[string]any{KeyConfig: "/nonexistent/outreach.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			SetClientDefaults(v)
			for k, val := range tt.set {
				v.Set(k, val)
			}

			_, err := LoadClient(v)
			assert.Error(t, err)
		})
	}
}

func TestLoadServer(t *testing.T) {
	v := New()
	SetServerDefaults(v)

	_, err := LoadServer(v)
	require.Error(t, err, "jwt secret is required")

	v.Set(KeyJWTSecret, "0123456789abcdef0123")
	cfg, err := LoadServer(v)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 24*time.Hour, cfg.AccessTokenTTL)
	assert.Equal(t, 10, cfg.AuthRateLimit)
	assert.Equal(t, time.Minute, cfg.AuthRateWindow)
}
