// Package config loads the settings of the mbc command line tool from flags,
// MBC_* environment variables and an optional $HOME/.mbc.yaml file.
package config

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "MBC"
	FileName  = ".mbc"
)

// Keys shared by flags, environment and config file.
const (
	KeyDevice   = "device"
	KeyTimeout  = "timeout"
	KeyLogLevel = "log-level"
	KeyNoColor  = "no-color"
	KeyOutput   = "output"
	KeyListen   = "listen"
)

// Config is the resolved configuration.
type Config struct {
	// Device is the base URL of the target device.
	Device   string
	Timeout  time.Duration
	LogLevel zerolog.Level
	NoColor  bool
	// Output is "text" or "json".
	Output string
	// Listen is the address the emulator serves on.
	Listen string
	// File is the config file that was read, if any.
	File string
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyDevice, "http://micro-blocks.local")
	v.SetDefault(KeyTimeout, 10*time.Second)
	v.SetDefault(KeyLogLevel, "warn")
	v.SetDefault(KeyNoColor, false)
	v.SetDefault(KeyOutput, "text")
	v.SetDefault(KeyListen, "localhost:8080")
}

// Load reads the configuration into v and resolves it. An empty file means
// $HOME/.mbc.yaml, which may be missing; an explicit file must exist.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(home)
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	return resolve(v)
}

func resolve(v *viper.Viper) (*Config, error) {
	level, err := zerolog.ParseLevel(v.GetString(KeyLogLevel))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", KeyLogLevel, err)
	}
	output := strings.ToLower(v.GetString(KeyOutput))
	if output != "text" && output != "json" {
		return nil, fmt.Errorf("unknown output format: %s", output)
	}
	timeout := v.GetDuration(KeyTimeout)
	if timeout <= 0 {
		return nil, fmt.Errorf("%s must be positive, got %s", KeyTimeout, v.GetString(KeyTimeout))
	}
	return &Config{
		Device:   v.GetString(KeyDevice),
		Timeout:  timeout,
		LogLevel: level,
		NoColor:  v.GetBool(KeyNoColor),
		Output:   output,
		Listen:   v.GetString(KeyListen),
		File:     v.ConfigFileUsed(),
	}, nil
}

// Logger returns a console logger writing to w at the configured level.
func (c *Config) Logger(w io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    c.NoColor,
		TimeFormat: time.Kitchen,
	}).Level(c.LogLevel).With().Timestamp().Logger()
}
