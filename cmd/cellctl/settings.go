package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "CELLCTL"

// settings are resolved in order: flags, CELLCTL_* env vars, cellctl.yaml,
// defaults.
type settings struct {
	Server  string        `mapstructure:"server"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
	Retries int           `mapstructure:"retries"`
	Output  string        `mapstructure:"output"`
	Verbose bool          `mapstructure:"verbose"`
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("server", "http://localhost:8080")
	v.SetDefault("timeout", 10*time.Second)
	v.SetDefault("retries", 1)
	v.SetDefault("output", "table")
	return v
}

// loadSettings binds the persistent flags and reads the optional config
// file. A missing cellctl.yaml is not an error.
func loadSettings(v *viper.Viper, flags *pflag.FlagSet, configFile string) (settings, error) {
	for _, key := range []string{"server", "token", "timeout", "retries", "output", "verbose"} {
		if err := v.BindPFlag(key, flags.Lookup(key)); err != nil {
			return settings{}, fmt.Errorf("bind flag %s: %w", key, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("cellctl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/cellctl")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return settings{}, fmt.Errorf("read config: %w", err)
		}
	}

	var s settings
	if err := v.Unmarshal(&s); err != nil {
		return settings{}, fmt.Errorf("decode config: %w", err)
	}
	switch s.Output {
	case "table", "json", "yaml":
	default:
		return settings{}, fmt.Errorf("unsupported output format %q (use table, json or yaml)", s.Output)
	}
	s.Server = strings.TrimRight(s.Server, "/")
	return s, nil
}
