// Package cmd provides the CLI commands for openpap.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openpap/openpap/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "openpap",
	Short: "openpap - Policy Administration Point",
	Long: `openpap is a policy administration service. It stores versioned
authorization policies and keeps rego policies synchronized with an
external Open Policy Agent decision engine.

Quick start:
  1. Start an OPA server: opa run --server
  2. Run: openpap serve

Configuration:
  Config is loaded from openpap.yaml in the current directory,
  $HOME/.openpap/, or /etc/openpap/.

  Environment variables can override config values with the OPENPAP_ prefix.
  Example: OPENPAP_SERVER_HTTP_ADDR=:9000

Commands:
  serve       Start the policy administration server
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./openpap.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
