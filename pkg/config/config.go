package config

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"pycppdbg/pkg/host"
)

// EnvPrefix prefixes environment overrides, e.g. PYCPPDBG_SETTLE_DELAY.
const EnvPrefix = "PYCPPDBG"

// Config is the pycppdbg configuration.
type Config struct {
	// SettleDelay is waited between native attach and resuming Python.
	SettleDelay time.Duration `mapstructure:"settle_delay"`
	// Listen is the front-end address for serve; empty means stdio.
	Listen   string `mapstructure:"listen"`
	LogLevel string `mapstructure:"log_level"`
	// LogFile receives logs instead of stderr when set.
	LogFile string `mapstructure:"log_file"`
	// PythonPath overrides interpreter discovery.
	PythonPath string `mapstructure:"python_path"`
	// LivenessCheck verifies the discovered pid exists locally.
	LivenessCheck bool `mapstructure:"liveness_check"`
	// Adapters overrides the debug adapter per configuration type.
	Adapters host.Adapters `mapstructure:"adapters"`
}

// Dir returns the configuration directory, ~/.pycppdbg.
func Dir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".pycppdbg"), nil
}

// Load reads path, or ~/.pycppdbg/config.yaml when path is empty. A
// missing default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return nil, err
		}
		v.SetConfigFile(expanded)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.PythonPath != "" {
		if p, err := homedir.Expand(cfg.PythonPath); err == nil {
			cfg.PythonPath = p
		}
	}
	for name, a := range cfg.Adapters {
		if p, err := homedir.Expand(a.Command); err == nil {
			a.Command = p
			cfg.Adapters[name] = a
		}
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("settle_delay", "500ms")
	v.SetDefault("listen", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("python_path", "")
	v.SetDefault("liveness_check", false)
}
