// Package config provides configuration types for the policy administration
// service. Configuration is file-based (openpap.yaml) with environment
// variable overrides under the OPENPAP_ prefix.
package config

// Config is the top-level configuration for the service.
type Config struct {
	// Server configures the HTTP server listener.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Store configures the durable policy store.
	Store StoreConfig `yaml:"store" mapstructure:"store"`

	// Engine configures the external decision engine the rego rule text is
	// mirrored to. Connection parameters are fixed at process start.
	Engine EngineConfig `yaml:"engine" mapstructure:"engine"`

	// DevMode runs on the in-memory store with no decision engine.
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// HTTPAddr is the listen address, host:port.
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"required,listen_addr"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// StoreConfig configures the durable policy store.
type StoreConfig struct {
	// Driver selects the store backend: "sqlite" or "memory".
	// The memory driver loses all data on restart; dev/test only.
	Driver string `yaml:"driver" mapstructure:"driver" validate:"required,oneof=sqlite memory"`
	// Path is the SQLite database file. Required for the sqlite driver.
	Path string `yaml:"path" mapstructure:"path"`
}

// EngineConfig configures the OPA decision engine endpoint.
type EngineConfig struct {
	// URL is the engine base URL, e.g. "http://localhost:8181".
	URL string `yaml:"url" mapstructure:"url" validate:"omitempty,url"`
}

// Default returns a Config with default values applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr: "127.0.0.1:8000",
			LogLevel: "info",
		},
		Store: StoreConfig{
			Driver: "sqlite",
			Path:   "policies.db",
		},
		Engine: EngineConfig{
			URL: "http://localhost:8181",
		},
	}
}
