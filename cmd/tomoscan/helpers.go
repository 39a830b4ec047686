package main

import (
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func parseIntArg(args []string, valueName string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("invalid number of arguments")
	}

	value, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", valueName, err)
	}

	return value, nil
}

// newSettingCommand builds an enable/disable command pair around one
// boolean daemon setting.
func newSettingCommand(
	use, short, long string,
	enable func() (string, error),
	disable func() (string, error),
) *cobra.Command {
	cmd := &cobra.Command{
		Use:     use,
		Short:   short,
		Long:    long,
		GroupID: gDaemon,
	}

	newVerb := func(verb, label string, apply func() (string, error)) *cobra.Command {
		return &cobra.Command{
			Use:   verb,
			Short: label + " " + use,
			RunE: func(_ *cobra.Command, _ []string) error {
				ret, err := apply()
				if err != nil {
					return fmt.Errorf("failed to %s %s: %v", verb, use, err)
				}
				if ret != "" {
					logrus.Infof("daemon responded: %s", ret)
				}
				logrus.Infof("%sd %s", verb, use)
				return nil
			},
		}
	}

	cmd.AddCommand(
		newVerb("enable", "Enable", enable),
		newVerb("disable", "Disable", disable),
	)

	return cmd
}
