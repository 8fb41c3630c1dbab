package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kayz/promptgate/internal/logger"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "promptgate",
	Short: "Configuration hub between chat clients and LLM backends",
	Long: `promptgate sits between a chat client and an LLM backend and rebuilds
every request from a preset: prompt blocks, regex scripts, and sampler
parameters.

Commands:
  promptgate serve      Run the HTTP hub (default)
  promptgate transform  Transform a request file without calling a backend
  promptgate preset     Validate and store preset documents
  promptgate scripts    Import/export the global script collection`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	Run: runServe,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logger.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logger.SetLevel(level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info",
		"Log level: trace, debug, info, warn, error, fatal")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
