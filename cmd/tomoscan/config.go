package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kematusik/tomoscan/pkg/scan"
)

func NewConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "config",
		Short:   "Show daemon configuration",
		GroupID: gDaemon,
		Long:    `Show the daemon configuration as JSON.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := apiClient.GetConfig()
			if err != nil {
				return fmt.Errorf("failed to get config: %v", err)
			}

			b, err := json.MarshalIndent(conf, "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(b))

			return nil
		},
	}
}

func NewAllowOverwriteCommand() *cobra.Command {
	return newSettingCommand(
		"allow-overwrite",
		"Set whether scans may overwrite existing output files",
		`Set whether scans may overwrite existing output files.

By default a scan refuses to start when the file writer reports that
its output file already exists, so an unattended scan cannot destroy
data from an earlier one. Enable this to skip the check.`,
		func() (string, error) { return apiClient.SetAllowOverwrite(true) },
		func() (string, error) { return apiClient.SetAllowOverwrite(false) },
	)
}

func NewReturnToStartCommand() *cobra.Command {
	return newSettingCommand(
		"return-to-start",
		"Set whether the rotation stage returns to the start angle after a scan",
		`Set whether the rotation stage returns to the start angle after a scan.

When enabled, scan cleanup moves the rotation stage back to the
configured start angle so the next scan begins from a known position.`,
		func() (string, error) { return apiClient.SetReturnToStart(true) },
		func() (string, error) { return apiClient.SetReturnToStart(false) },
	)
}

func NewFrameTagsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "frame-tags [projection] [dark] [flat] [postscan]",
		Short:   "Set the frame-type tags recorded with each frame category",
		GroupID: gDaemon,
		Long: `Set the frame-type tags recorded with each frame category.

Downstream reconstruction tools use these tags to tell projections,
dark fields, flat fields, and post-scan frames apart in the output
file. Most installations keep the defaults (0 1 2 3).`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			var tags scan.TagMap
			for i, dst := range []*int{&tags.Projection, &tags.Dark, &tags.Flat, &tags.PostScan} {
				v, err := parseIntArg(args[i:i+1], "tag")
				if err != nil {
					return err
				}
				*dst = v
			}

			ret, err := apiClient.SetFrameTags(tags)
			if err != nil {
				return fmt.Errorf("failed to set frame tags: %v", err)
			}

			if ret != "" {
				cmd.Printf("daemon responded: %s\n", ret)
			}

			return nil
		},
	}
}
