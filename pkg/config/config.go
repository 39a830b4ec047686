package config

import (
	"github.com/sirupsen/logrus"

	"github.com/kematusik/tomoscan/pkg/scan"
)

// BackendSim selects the built-in simulated instrument.
const BackendSim = "sim"

type Config interface {
	Backend() string
	AllowOverwrite() bool
	ReturnToStart() bool
	FrameTags() scan.TagMap
	HistoryPath() string
	ScheduleCron() string
	SchedulePreset() string
	AllowNonRootAccess() bool

	SetBackend(string)
	SetAllowOverwrite(bool)
	SetReturnToStart(bool)
	SetFrameTags(scan.TagMap)
	SetHistoryPath(string)
	SetScheduleCron(string)
	SetSchedulePreset(string)
	SetAllowNonRootAccess(bool)

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error

	LogrusFields() logrus.Fields
}
