package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "skillverse-cli",
	Short: "SkillVerse exchange engine CLI",
	Long: `SkillVerse CLI is a command-line interface for the skill-exchange engine.

Available commands:
  match    Run the matcher over a pool snapshot and print ranked candidates
  topics   List the event topics the engine publishes

Use "skillverse-cli [command] --help" for more information about a specific command.`,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
