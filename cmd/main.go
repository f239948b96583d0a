// cmd is the eventhub entry point: the attendance HTTP API and its schema
// migrations.
package main

import (
	"fmt"
	"os"

	"github.com/Shivanand-hulikatti/event-attendance/internal/config"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	envFile   string
	logLevel  string
	logFormat string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "eventhub",
		Short: "Event attendance service",
		Long: `eventhub records attendance intent for capacity-bounded events.

Organizers create and manage events; attendees RSVP as confirmed, maybe or
declined. A confirmation is only admitted while the event has room, even
under concurrent requests.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv(envFile)
		},
	}

	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error) (default: $LOG_LEVEL or info)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (json, console) (default: $LOG_FORMAT or json)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	return root
}

// applyLogFlags lets command-line flags override the environment.
func applyLogFlags(cfg *config.LoggingConfig) {
	if logLevel != "" {
		cfg.Level = logLevel
	}
	if logFormat != "" {
		cfg.Format = logFormat
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
