// Command protectbox-api serves the protection-program case API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "protectbox-api",
	Short: "Protection request, case and mission API",
	Long: `protectbox-api serves the HTTP and WebSocket API for protection requests,
case openings, field missions and their technical forms.

Examples:
  protectbox-api                         # serve with protectbox.yaml / PROTECTBOX_* settings
  protectbox-api serve --config app.yaml
  protectbox-api migrate                 # apply database migrations
  protectbox-api token --id lead-001 --role REGIONAL_LEAD --regional "Centro Sur"`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: protectbox.yaml in ., ./config, /etc/protectbox)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error: "+err.Error())
		os.Exit(1)
	}
}
