package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func NewScheduleCommand() *cobra.Command {
	var presetPath string

	cmd := &cobra.Command{
		Use:     "schedule [cron-expression]",
		Aliases: []string{"sch", "sche", "sched"},
		Short:   "Manage automatic scan schedule",
		Long: `Manage the automatic scan schedule.

The schedule command can be used in multiple ways:
  tomoscan schedule 'minute hour day month weekday' Set schedule with cron expression
  tomoscan schedule disable                         Disable the schedule
  tomoscan schedule postpone [duration]             Postpone next run
  tomoscan schedule skip                            Skip next run
  tomoscan schedule show                            Show current schedule`,
		Example: `  tomoscan schedule '0 22 * * *' (Every day at 22:00)
  tomoscan schedule '0 */4 * * *' --preset /etc/tomoscan/overnight.toml (Every 4 hours with a preset)
  tomoscan schedule '0 6 * * 1' (At 06:00 on Monday)`,
		GroupID: gDaemon,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// If no arguments, show the current schedule
			if len(args) == 0 {
				return runScheduleShow(cmd)
			}
			// Otherwise, treat as a cron expression to set
			return runScheduleSet(cmd, args[0], presetPath)
		},
	}

	cmd.Flags().StringVar(&presetPath, "preset", "", "preset file scheduled scans apply first")

	// Add subcommands
	cmd.AddCommand(
		newScheduleDisableCommand(),
		newSchedulePostponeCommand(),
		newScheduleSkipCommand(),
		newScheduleShowCommand(),
	)

	return cmd
}

func newScheduleDisableCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disable",
		Short: "Disable the scan schedule",
		Long:  "Disable the automatic scan schedule.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScheduleDisable(cmd)
		},
	}
	return cmd
}

func newSchedulePostponeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "postpone [duration]",
		Short: "Postpone the next scheduled scan",
		Example: `  tomoscan schedule postpone      (Postpone by 1 hour)
  tomoscan schedule postpone 90m  (Postpone by 90 minutes)
  tomoscan schedule postpone 2h   (Postpone by 2 hours)`,
		Long: `Postpone the next scheduled scan by a specified duration.
If no duration is provided, defaults to 1 hour.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := time.Hour // default
			if len(args) > 0 {
				parsed, err := time.ParseDuration(args[0])
				if err != nil {
					return fmt.Errorf("invalid duration %q: %w", args[0], err)
				}
				d = parsed
			}
			return runSchedulePostpone(cmd, d)
		},
	}

	return cmd
}

func newScheduleSkipCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skip",
		Short: "Skip the next scheduled scan",
		Long:  "Skip the next scheduled scan.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScheduleSkip(cmd)
		},
	}
	return cmd
}

func newScheduleShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the current scan schedule",
		Long:  "Show the current scan schedule and the next run time.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScheduleShow(cmd)
		},
	}
	return cmd
}

func runScheduleSet(cmd *cobra.Command, cronExpr, presetPath string) error {
	if cronExpr == "" {
		return fmt.Errorf("cron expression cannot be empty")
	}
	if _, err := apiClient.SetSchedule(cronExpr, presetPath); err != nil {
		return err
	}
	return runScheduleShow(cmd)
}

func runScheduleDisable(cmd *cobra.Command) error {
	if _, err := apiClient.DisableSchedule(); err != nil {
		return err
	}
	cmd.Println("Scan schedule disabled.")
	return nil
}

func runSchedulePostpone(cmd *cobra.Command, duration time.Duration) error {
	if _, err := apiClient.PostponeSchedule(duration); err != nil {
		return err
	}
	cmd.Printf("Next scan postponed by %s.\n", duration)
	return nil
}

func runScheduleSkip(cmd *cobra.Command) error {
	if _, err := apiClient.SkipSchedule(); err != nil {
		return err
	}
	cmd.Println("Next scheduled scan skipped.")
	return nil
}

func runScheduleShow(cmd *cobra.Command) error {
	sch, err := apiClient.GetSchedule()
	if err != nil {
		return err
	}
	if !sch.Active {
		cmd.Println("Scan schedule is not set.")
		return nil
	}
	cmd.Printf("Scans scheduled with %q", sch.Cron)
	if sch.Preset != "" {
		cmd.Printf(" using preset %s", sch.Preset)
	}
	cmd.Println()
	if sch.NextRun != nil {
		cmd.Printf("Next run: %s\n", sch.NextRun.Local().Format(time.DateTime))
	}
	return nil
}
