package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func flagsFor(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoad_FileValues(t *testing.T) {
	req := require.New(t)
	path := writeConfig(t, `
mode: debug
port: 7000
ping_period: 10s
pong_wait: 15s
send_buffer: 8
backpressure: kick
storage:
  driver: postgres
  dsn: postgres://colla@localhost/colla
ice_servers:
  - urls: ["turn:turn.example.com:3478"]
    username: u
    credential: p
`)

	cfg, err := Load(flagsFor(t, "--config", path))

	req.NoError(err)
	req.Equal("debug", cfg.Mode)
	req.Equal(7000, cfg.Port)
	req.Equal(10*time.Second, cfg.PingPeriod)
	req.Equal(8, cfg.SendBuffer)
	req.Equal("kick", cfg.Backpressure)
	req.Equal("postgres", cfg.Storage.Driver)
	req.Equal([]ICEServer{{URLs: []string{"turn:turn.example.com:3478"}, Username: "u", Credential: "p"}}, cfg.ICEServers)
	// Untouched keys keep their defaults
	req.Equal(5*time.Second, cfg.WriteWait)
	req.Equal(24*time.Hour, cfg.Auth.TokenTTL)
}

func TestLoad_EnvAndFlagsOverrideFile(t *testing.T) {
	req := require.New(t)
	path := writeConfig(t, "mode: debug\nport: 7000\n")
	t.Setenv("COLLA_STORAGE_MAX_CONNS", "3")
	t.Setenv("COLLA_PORT", "7100")

	cfg, err := Load(flagsFor(t, "--config", path, "--port", "7200"))

	req.NoError(err)
	req.Equal(int32(3), cfg.Storage.MaxConns)
	req.Equal(7200, cfg.Port)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	req := require.New(t)
	t.Setenv("COLLA_SECRET", "s")
	t.Setenv("COLLA_AUTH_JWT_SECRET", "j")

	cfg, err := Load(flagsFor(t, "--config", filepath.Join(t.TempDir(), "absent.yaml")))

	req.NoError(err)
	req.Equal("release", cfg.Mode)
	req.Equal(8080, cfg.Port)
	req.Equal("memory", cfg.Storage.Driver)
	req.Len(cfg.ICEServers, 1)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Mode:       "debug",
			Port:       8080,
			SendBuffer: 1,
			PingPeriod: time.Second,
			PongWait:   2 * time.Second,
			Storage:    Storage{Driver: "memory"},
		}
	}
	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{name: "valid", mutate: func(*Config) {}, ok: true},
		{name: "pong before ping", mutate: func(c *Config) { c.PongWait = c.PingPeriod }},
		{name: "zero buffer", mutate: func(c *Config) { c.SendBuffer = 0 }},
		{name: "unknown driver", mutate: func(c *Config) { c.Storage.Driver = "mongo" }},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Storage.Driver = "postgres" }},
		{name: "release without secrets", mutate: func(c *Config) { c.Mode = "release" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			err := c.Validate()
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalid)
		})
	}
}
