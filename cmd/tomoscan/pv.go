package main

import (
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func NewPVCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "pv",
		Short:   "Read or write instrument variables",
		GroupID: gDaemon,
		Long: `Read or write individual instrument variables by name, e.g. the
rotation range or the exposure time. Mainly useful for debugging and
for tweaking single settings between scans.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "get [name]",
			Short: "Read an instrument variable",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := apiClient.GetPV(args[0])
				if err != nil {
					return fmt.Errorf("failed to read %s: %v", args[0], err)
				}

				cmd.Printf("%s = %v\n", v.Name, v.Value)

				return nil
			},
		},
		&cobra.Command{
			Use:   "put [name] [value]",
			Short: "Write an instrument variable",
			Args:  cobra.ExactArgs(2),
			RunE: func(_ *cobra.Command, args []string) error {
				ret, err := apiClient.PutPV(args[0], parsePVValue(args[1]))
				if err != nil {
					return fmt.Errorf("failed to write %s: %v", args[0], err)
				}

				if ret != "" {
					logrus.Infof("daemon responded: %s", ret)
				}

				return nil
			},
		},
	)

	return cmd
}

// parsePVValue guesses the wire type of a value typed on the command
// line: int, then float, then string.
func parsePVValue(s string) any {
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
