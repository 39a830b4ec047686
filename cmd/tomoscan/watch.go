package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kematusik/tomoscan/pkg/events"
)

func NewWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "watch",
		Short:   "Stream scan progress",
		GroupID: gScan,
		Long: `Stream scan lifecycle events from the daemon: phase transitions,
per-exposure progress, and run completion. Runs until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return apiClient.Watch(func(ev events.Event) error {
				return printEvent(cmd, ev)
			})
		},
	}
}

func printEvent(cmd *cobra.Command, ev events.Event) error {
	switch ev.Name {
	case events.ScanPhase:
		e, err := events.DecodeAs[events.ScanPhaseEvent](ev)
		if err != nil {
			return fmt.Errorf("failed to decode phase event: %w", err)
		}
		cmd.Printf("%s  %s\n", eventTime(e.Ts), bold("%s -> %s", e.From, e.To))
	case events.ScanProgress:
		e, err := events.DecodeAs[events.ScanProgressEvent](ev)
		if err != nil {
			return fmt.Errorf("failed to decode progress event: %w", err)
		}
		remaining := time.Duration(e.Remaining * float64(time.Second)).Round(time.Second)
		cmd.Printf("%s  %s %d/%d images, %s remaining\n",
			eventTime(e.Ts), e.Phase, e.Collected, e.Total, remaining)
	case events.ScanFinished:
		e, err := events.DecodeAs[events.ScanFinishedEvent](ev)
		if err != nil {
			return fmt.Errorf("failed to decode finished event: %w", err)
		}
		if e.Error != "" {
			cmd.Printf("%s  run %s %s: %s\n", eventTime(e.Ts), e.RunID, bold("%s", e.Status), e.Error)
		} else {
			cmd.Printf("%s  run %s %s\n", eventTime(e.Ts), e.RunID, bold("%s", e.Status))
		}
	}
	return nil
}

func eventTime(ts int64) string {
	return time.Unix(ts, 0).Local().Format(time.TimeOnly)
}
