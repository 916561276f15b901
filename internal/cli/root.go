package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	dbPath string
)

var rootCmd = &cobra.Command{
	Use:   "popgate",
	Short: "Popgate - a minimal, self-hosted targeting engine for on-site experiences",
	Long: `Popgate decides, for each visitor, whether a registered experience
(banner, modal, inline block, tooltip) should be shown right now, and why.
Single Go binary, embedded SQLite, fully explainable decisions.

Running without a subcommand starts the server (same as 'popgate init').`,
	RunE: runInit, // Default action is to start server
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", getEnvOrDefault("POPGATE_DB_PATH", "./popgate.db"), "database path")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
