package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	return Default()
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing listen address",
			mutate:  func(c *Config) { c.Server.HTTPAddr = "" },
			wantErr: "Server.HTTPAddr",
		},
		{
			name:    "listen address without port",
			mutate:  func(c *Config) { c.Server.HTTPAddr = "localhost" },
			wantErr: "host:port",
		},
		{
			name:   "port-only listen address",
			mutate: func(c *Config) { c.Server.HTTPAddr = ":8000" },
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Server.LogLevel = "verbose" },
			wantErr: "must be one of",
		},
		{
			name:   "empty log level falls back to default level",
			mutate: func(c *Config) { c.Server.LogLevel = "" },
		},
		{
			name:    "unknown store driver",
			mutate:  func(c *Config) { c.Store.Driver = "postgres" },
			wantErr: "must be one of",
		},
		{
			name:    "sqlite driver without path",
			mutate:  func(c *Config) { c.Store.Path = "" },
			wantErr: "store.path is required",
		},
		{
			name: "memory driver needs no path",
			mutate: func(c *Config) {
				c.Store.Driver = "memory"
				c.Store.Path = ""
			},
		},
		{
			name:    "malformed engine URL",
			mutate:  func(c *Config) { c.Engine.URL = "not a url" },
			wantErr: "valid URL",
		},
		{
			name:   "empty engine URL allowed for dev mode",
			mutate: func(c *Config) { c.Engine.URL = "" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %q, want mention of %q", err, tt.wantErr)
			}
		})
	}
}
