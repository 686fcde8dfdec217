package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newTickCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Run a single reminder scheduler pass and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}

			report := a.services.Scheduler.Tick(context.Background())
			fmt.Fprintf(cmd.OutOrStdout(), "checked=%d dispatched=%d skipped=%d refreshed=%d failed=%d\n",
				report.Checked, report.Dispatched, report.Skipped, report.Refreshed, report.Failed)
			return nil
		},
	}
}
