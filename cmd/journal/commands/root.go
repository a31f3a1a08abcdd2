package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	env        string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "journal",
	Short: "Trading journal backend with discipline rule enforcement",
	Long: `Trading journal backend.

Playbook checklists graded into risk caps, loss-streak detection over
the trade ledger, and a breach audit trail with off/warn/block
enforcement.

Usage:
  go run ./cmd/journal [command]

Examples:
  go run ./cmd/journal api
  go run ./cmd/journal digest`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "development", "environment (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
