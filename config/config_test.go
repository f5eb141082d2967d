package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func withHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })
	t.Setenv("HOME", dir)
	return dir
}

func TestDefaults(t *testing.T) {
	withHome(t)
	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	require.Equal(t, "http://micro-blocks.local", cfg.Device)
	require.Equal(t, 10*time.Second, cfg.Timeout)
	require.Equal(t, zerolog.WarnLevel, cfg.LogLevel)
	require.Equal(t, "text", cfg.Output)
	require.Empty(t, cfg.File)
}

func TestHomeFileAndEnvironment(t *testing.T) {
	home := withHome(t)
	err := os.WriteFile(filepath.Join(home, ".mbc.yaml"), []byte(`
device: http://192.168.4.1
timeout: 3s
log-level: debug
`), 0o644)
	require.NoError(t, err)
	t.Setenv("MBC_LOG_LEVEL", "info")
	t.Setenv("MBC_OUTPUT", "JSON")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	require.Equal(t, "http://192.168.4.1", cfg.Device)
	require.Equal(t, 3*time.Second, cfg.Timeout)
	require.Equal(t, zerolog.InfoLevel, cfg.LogLevel)
	require.Equal(t, "json", cfg.Output)
	require.Equal(t, filepath.Join(home, ".mbc.yaml"), cfg.File)
}

func TestExplicitFile(t *testing.T) {
	withHome(t)
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "mbc.toml")
	require.NoError(t, os.WriteFile(path, []byte("device = \"emu:8080\"\nno-color = true\n"), 0o644))
	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	require.Equal(t, "emu:8080", cfg.Device)
	require.True(t, cfg.NoColor)
}

func TestInvalidValues(t *testing.T) {
	withHome(t)
	v := viper.New()
	v.Set(KeyOutput, "xml")
	_, err := Load(v, "")
	require.ErrorContains(t, err, "unknown output format")

	v = viper.New()
	v.Set(KeyLogLevel, "loud")
	_, err = Load(v, "")
	require.Error(t, err)

	v = viper.New()
	v.Set(KeyTimeout, "0s")
	_, err = Load(v, "")
	require.Error(t, err)
}

func TestLogger(t *testing.T) {
	withHome(t)
	v := viper.New()
	v.Set(KeyNoColor, true)
	v.Set(KeyLogLevel, "info")
	cfg, err := Load(v, "")
	require.NoError(t, err)

	var buf bytes.Buffer
	log := cfg.Logger(&buf)
	log.Debug().Msg("hidden")
	log.Info().Str("device", "emu").Msg("uploaded")
	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "uploaded")
	require.Contains(t, out, "device=emu")
}
