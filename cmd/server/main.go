package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Printf("[server] %v", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "beontime",
		Short: "BeOnTime habit tracker and reminder scheduler",
		Long: `BeOnTime tracks habits, computes streaks and sends start, ending and
streak reminders. Configuration is read from environment variables and an
optional YAML file given by CONFIG_FILE.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newTickCommand())
	cmd.AddCommand(newUserCommand())
	cmd.AddCommand(newNotifyCommand())

	return cmd
}
