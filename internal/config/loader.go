package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, it searches for openpap.yaml/.yml in
// standard locations. The search requires an explicit YAML extension so the
// binary itself (same base name, no extension) is never matched.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// No config file in any standard location. Set name/type without
		// search paths so ReadInConfig returns ConfigFileNotFoundError,
		// which callers handle gracefully.
		viper.SetConfigName("openpap")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: OPENPAP_SERVER_HTTP_ADDR etc.
	viper.SetEnvPrefix("OPENPAP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for an openpap config file
// with an explicit YAML extension (.yaml or .yml).
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".openpap"),
		"/etc/openpap",
	}
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "openpap"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds nested config keys for environment overrides.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("server.http_addr")
	_ = viper.BindEnv("server.log_level")

	_ = viper.BindEnv("store.driver")
	_ = viper.BindEnv("store.path")

	_ = viper.BindEnv("engine.url")

	_ = viper.BindEnv("dev_mode")
}

// Load reads the configuration file, applies environment overrides on top
// of defaults, and returns the Config. Callers apply CLI flag overrides
// (e.g. --dev) and then call cfg.Validate().
func Load() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found: run on defaults and env vars only.
	}

	cfg := Default()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// ConfigFileUsed returns the path of the config file Viper loaded, if any.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
