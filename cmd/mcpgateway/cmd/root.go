// Package cmd provides the CLI commands for mcpgateway.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "mcpgateway",
	Short: "mcpgateway - MCP Streamable HTTP gateway",
	Long: `mcpgateway fronts the Model Context Protocol over Streamable HTTP + SSE
with cross-instance session replay, per-stream event journal resumability,
and an OAuth 2.1 proxy delegating authentication to an upstream OIDC
provider.

Configuration is layered: built-in defaults, an optional YAML file, and
MCP_CONFIG_-prefixed environment variables (see internal/config). There are
no other command-line flags to set — a production deployment configures
entirely through the YAML file and environment.

Commands:
  serve       Start the gateway
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
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: built-in defaults + environment only)")
}
