package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func NewRunsCommand() *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:     "runs [id]",
		Short:   "List past scan runs",
		GroupID: gScan,
		Long: `List past scan runs recorded by the daemon.

With a run ID, show the full details of that run instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				run, err := apiClient.GetRun(args[0])
				if err != nil {
					return fmt.Errorf("failed to get run: %v", err)
				}
				printRunDetails(cmd, run)
				return nil
			}

			page, err := apiClient.GetRuns(limit, offset)
			if err != nil {
				return fmt.Errorf("failed to list runs: %v", err)
			}

			if page.Total == 0 {
				cmd.Println("No scan runs recorded.")
				return nil
			}

			for _, run := range page.Runs {
				line := fmt.Sprintf("%s  %s  %s  %d/%d images",
					run.StartedAt.Local().Format(time.DateTime),
					run.ID,
					runStatusText(run.Status),
					run.ImagesCollected, run.ImagesTotal)
				if run.Preset != nil {
					line += fmt.Sprintf("  (%s)", *run.Preset)
				}
				cmd.Println(line)
			}
			cmd.Printf("\nShowing %d of %d runs.\n", len(page.Runs), page.Total)

			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of runs to skip")

	return cmd
}
