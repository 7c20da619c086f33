package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/livinlefevreloca/cronexec/cmd/cronexec/commands"
)

var rootCmd = &cobra.Command{
	Use:   "cronexec",
	Short: "cronexec - run commands on cron schedules",
	Long: `cronexec runs external commands on six or seven field cron schedules.

Available commands:
  run       - Run the scheduler daemon (default)
  validate  - Check every job definition and show its next fire time
  next      - Print upcoming fire times of a cron expression
  jobs      - Manage job definitions stored in SQLite

Examples:
  cronexec --config /etc/cronexec/cronexec.toml
  cronexec validate --jobs jobconfig.json
  cronexec next "0 30 9 * * MON-FRI" --count 3`,
	SilenceUsage: true,
	RunE:         commands.RunCmd.RunE,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&commands.ConfigPath, "config", "c", "", "Path to configuration file (TOML)")
	rootCmd.Flags().AddFlagSet(commands.RunCmd.Flags())

	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.ValidateCmd)
	rootCmd.AddCommand(commands.NextCmd)
	rootCmd.AddCommand(commands.JobsCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
