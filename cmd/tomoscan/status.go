package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kematusik/tomoscan/pkg/client"
	"github.com/kematusik/tomoscan/pkg/config"
	"github.com/kematusik/tomoscan/pkg/history"
)

type statusData struct {
	status   *client.Status
	schedule *client.Schedule
	config   *config.RawFileConfig
}

// fetchStatusData gathers all data required for the status command from the daemon.
func fetchStatusData() (*statusData, error) {
	status, err := apiClient.GetStatus()
	if err != nil {
		return nil, fmt.Errorf("failed to get scan status: %w", err)
	}

	schedule, err := apiClient.GetSchedule()
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}

	conf, err := apiClient.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get config: %w", err)
	}

	return &statusData{
		status:   status,
		schedule: schedule,
		config:   conf,
	}, nil
}

func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		GroupID: gScan,
		Short:   "Get the current status of tomoscan",
		Long:    `Get scan status, the last run, and daemon configuration.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Get various info first.
			data, err := fetchStatusData()
			if err != nil {
				return err
			}

			conf := config.NewFileFromConfig(data.config, "")

			// Scan status.
			cmd.Println(bold("Scan status:"))

			if data.status.Running {
				cmd.Println("  Running: " + bool2Text(true))
				cmd.Printf("  Run: %s\n", bold("%s", data.status.RunID))
				cmd.Printf("  Phase: %s\n", bold("%s", data.status.Phase))
				if data.status.TotalImages > 0 {
					cmd.Printf("  Images: %s\n", bold("%d / %d", data.status.Collected, data.status.TotalImages))
				}
				cmd.Printf("  Started: %s\n", bold("%s", data.status.StartedAt.Local().Format(time.DateTime)))
			} else {
				cmd.Println("  Running: " + bool2Text(false))
			}

			// Last run.
			if last := data.status.LastRun; last != nil {
				cmd.Println()
				cmd.Println(bold("Last run:"))
				printRunDetails(cmd, last)
			}

			cmd.Println()

			// Schedule.
			cmd.Println(bold("Scheduled scans:"))
			if data.schedule.Active {
				cmd.Printf("  Cron: %s\n", bold("%s", data.schedule.Cron))
				if data.schedule.Preset != "" {
					cmd.Printf("  Preset: %s\n", bold("%s", data.schedule.Preset))
				}
				if data.schedule.NextRun != nil {
					cmd.Printf("  Next run: %s\n", bold("%s", data.schedule.NextRun.Local().Format(time.DateTime)))
				}
			} else {
				cmd.Println("  Not scheduled.")
			}

			cmd.Println()

			// Config.
			cmd.Println(bold("Daemon configuration:"))
			cmd.Printf("  Instrument backend: %s\n", bold("%s", conf.Backend()))
			cmd.Printf("  Allow overwriting output files: %s\n", bool2Text(conf.AllowOverwrite()))
			cmd.Printf("  Return rotation to start after scan: %s\n", bool2Text(conf.ReturnToStart()))
			tags := conf.FrameTags()
			cmd.Printf("  Frame tags: %s\n", bold("projection=%d dark=%d flat=%d postScan=%d",
				tags.Projection, tags.Dark, tags.Flat, tags.PostScan))
			cmd.Printf("  History database: %s\n", bold("%s", conf.HistoryPath()))
			cmd.Printf("  Allow non-root users to access the daemon: %s\n", bool2Text(conf.AllowNonRootAccess()))

			return nil
		},
	}
}

func printRunDetails(cmd *cobra.Command, run *history.Run) {
	cmd.Printf("  ID: %s\n", bold("%s", run.ID))
	cmd.Printf("  Status: %s\n", runStatusText(run.Status))
	if run.Preset != nil {
		cmd.Printf("  Preset: %s\n", bold("%s", *run.Preset))
	}
	cmd.Printf("  Started: %s\n", bold("%s", run.StartedAt.Local().Format(time.DateTime)))
	if d := run.Duration(); d > 0 {
		cmd.Printf("  Duration: %s\n", bold("%s", d.Round(time.Second)))
	}
	if run.ImagesTotal > 0 {
		cmd.Printf("  Images: %s\n", bold("%d / %d", run.ImagesCollected, run.ImagesTotal))
	}
	if run.FileName != nil {
		cmd.Printf("  Output: %s\n", bold("%s", *run.FileName))
	}
	if run.ErrorMessage != nil {
		cmd.Printf("  Error: %s\n", color.New(color.Bold, color.FgRed).Sprint(*run.ErrorMessage))
	}
}

func runStatusText(s history.RunStatus) string {
	switch s {
	case history.RunStatusCompleted:
		return color.New(color.Bold, color.FgGreen).Sprint(string(s))
	case history.RunStatusRunning:
		return color.New(color.Bold, color.FgCyan).Sprint(string(s))
	case history.RunStatusAborted:
		return color.New(color.Bold, color.FgYellow).Sprint(string(s))
	default:
		return color.New(color.Bold, color.FgRed).Sprint(string(s))
	}
}

func bool2Text(b bool) string {
	if b {
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	}
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}
