package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kematusik/tomoscan/pkg/version"
)

func NewStartCommand() *cobra.Command {
	var presetPath string

	cmd := &cobra.Command{
		Use:     "start",
		Short:   "Start a scan",
		GroupID: gScan,
		Long: `Start a scan with the settings currently on the instrument records.

Pass --preset to apply a saved parameter file to the records first. The
scan runs in the daemon; use "tomoscan watch" to follow its progress or
"tomoscan abort" to stop it.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			id, err := apiClient.StartScan(presetPath)
			if err != nil {
				return fmt.Errorf("failed to start scan: %v", err)
			}

			logrus.Infof("scan started, run %s", id)

			return nil
		},
	}

	cmd.Flags().StringVar(&presetPath, "preset", "", "preset file to apply before scanning")

	return cmd
}

func NewAbortCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "abort",
		Short:   "Abort the running scan",
		GroupID: gScan,
		Long: `Abort the running scan.

The scan stops after the current exposure and still runs its cleanup:
file capture is closed and the detector returns to live view.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ret, err := apiClient.AbortScan()
			if err != nil {
				return fmt.Errorf("failed to abort scan: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			logrus.Infof("successfully requested scan abort")

			return nil
		},
	}
}

func NewPlanCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "plan",
		Short:   "Preview the scan plan",
		GroupID: gScan,
		Long:    `Preview the plan the current settings produce, without moving anything.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			plan, err := apiClient.GetPlan()
			if err != nil {
				return fmt.Errorf("failed to get scan plan: %v", err)
			}

			cmd.Println(bold("Scan plan:"))
			cmd.Printf("  Rotation: %s\n", bold("%g to %g deg, step %g", plan.RotationStart, plan.RotationStop, plan.RotationStep))
			cmd.Printf("  Projections: %s\n", bold("%d", plan.NumAngles))
			cmd.Printf("  Dark fields: %s (%s)\n", bold("%d", plan.NumDarkFields), plan.DarkFieldMode)
			cmd.Printf("  Flat fields: %s (%s)\n", bold("%d", plan.NumFlatFields), plan.FlatFieldMode)
			if plan.PostScanEnabled {
				cmd.Printf("  Post-scan: %s frames, step %g\n", bold("%d", plan.NumPostScan), plan.PostScanStep)
			}
			cmd.Printf("  Total images: %s\n", bold("%d", plan.TotalImages))

			return nil
		},
	}
}

func NewFrameTimeCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "frame-time",
		Short:   "Show the estimated time per frame",
		GroupID: gScan,
		Long:    `Show the per-frame time estimate derived from the camera settings, used to bound acquisition waits and compute remaining time.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := apiClient.GetFrameTime()
			if err != nil {
				return fmt.Errorf("failed to get frame time: %v", err)
			}

			cmd.Printf("%.4f s/frame\n", t)

			return nil
		},
	}
}

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
		},
	}
}
