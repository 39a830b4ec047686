// Package preset loads named scan-parameter files and applies them to
// the instrument's settings records. Operators keep one preset per
// sample type or beamline configuration and select it when starting a
// scan, instead of dialing a dozen values by hand.
package preset

import (
	"fmt"

	"github.com/BurntSushi/toml"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/kematusik/tomoscan/pkg/pv"
	"github.com/kematusik/tomoscan/pkg/scan"
)

// Preset is one named set of scan parameters.
type Preset struct {
	Name string `json:"name"`

	RotationStart float64 `json:"rotationStart"`
	RotationStop  float64 `json:"rotationStop"`
	RotationStep  float64 `json:"rotationStep"`

	NumDarkFields int            `json:"numDarkFields"`
	DarkFieldMode scan.FieldMode `json:"darkFieldMode"`
	NumFlatFields int            `json:"numFlatFields"`
	FlatFieldMode scan.FieldMode `json:"flatFieldMode"`

	PostScanEnabled bool    `json:"postScanEnabled"`
	PostScanStep    float64 `json:"postScanStep"`
	NumPostScan     int     `json:"numPostScan"`

	// ExposureTime and StabilizationTime are optional. Nil keeps
	// whatever the camera and motion records currently hold.
	ExposureTime      *float64 `json:"exposureTime,omitempty"`
	StabilizationTime *float64 `json:"stabilizationTime,omitempty"`
}

type filePreset struct {
	Name string `toml:"name"`

	RotationStart float64 `toml:"rotation_start"`
	RotationStop  float64 `toml:"rotation_stop"`
	RotationStep  float64 `toml:"rotation_step"`

	NumDarkFields int    `toml:"num_dark_fields"`
	DarkFieldMode string `toml:"dark_field_mode"`
	NumFlatFields int    `toml:"num_flat_fields"`
	FlatFieldMode string `toml:"flat_field_mode"`

	PostScan     bool    `toml:"post_scan"`
	PostScanStep float64 `toml:"post_scan_step"`
	NumPostScan  int     `toml:"num_post_scan"`

	ExposureTime      float64 `toml:"exposure_time"`
	StabilizationTime float64 `toml:"stabilization_time"`
}

// Load reads and validates a preset file.
func Load(path string) (*Preset, error) {
	var raw filePreset
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to load preset %s", path)
	}

	for _, key := range []string{"rotation_start", "rotation_stop", "rotation_step"} {
		if !meta.IsDefined(key) {
			return nil, fmt.Errorf("preset %s: missing required key %q", path, key)
		}
	}

	p := &Preset{
		Name:            raw.Name,
		RotationStart:   raw.RotationStart,
		RotationStop:    raw.RotationStop,
		RotationStep:    raw.RotationStep,
		NumDarkFields:   raw.NumDarkFields,
		DarkFieldMode:   scan.FieldModeNone,
		NumFlatFields:   raw.NumFlatFields,
		FlatFieldMode:   scan.FieldModeNone,
		PostScanEnabled: raw.PostScan,
		PostScanStep:    raw.PostScanStep,
		NumPostScan:     raw.NumPostScan,
	}

	if meta.IsDefined("dark_field_mode") {
		mode, err := scan.ParseFieldMode(raw.DarkFieldMode)
		if err != nil {
			return nil, fmt.Errorf("preset %s: %v", path, err)
		}
		p.DarkFieldMode = mode
	}
	if meta.IsDefined("flat_field_mode") {
		mode, err := scan.ParseFieldMode(raw.FlatFieldMode)
		if err != nil {
			return nil, fmt.Errorf("preset %s: %v", path, err)
		}
		p.FlatFieldMode = mode
	}

	if meta.IsDefined("exposure_time") {
		p.ExposureTime = &raw.ExposureTime
	}
	if meta.IsDefined("stabilization_time") {
		p.StabilizationTime = &raw.StabilizationTime
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("preset %s: %v", path, err)
	}

	return p, nil
}

// Validate checks the parameter ranges. The same rules apply again
// when a scan begins; checking here reports bad presets at load time
// instead of mid-scan.
func (p *Preset) Validate() error {
	if p.RotationStep <= 0 {
		return fmt.Errorf("rotation step must be positive, got %v", p.RotationStep)
	}
	if p.RotationStop < p.RotationStart {
		return fmt.Errorf("rotation stop %v is before start %v", p.RotationStop, p.RotationStart)
	}
	if p.NumDarkFields < 0 {
		return fmt.Errorf("negative dark field count %d", p.NumDarkFields)
	}
	if p.NumFlatFields < 0 {
		return fmt.Errorf("negative flat field count %d", p.NumFlatFields)
	}
	if p.PostScanEnabled {
		if p.PostScanStep <= 0 {
			return fmt.Errorf("post-scan step must be positive, got %v", p.PostScanStep)
		}
		if p.NumPostScan < 0 {
			return fmt.Errorf("negative post-scan count %d", p.NumPostScan)
		}
	}
	if p.ExposureTime != nil && *p.ExposureTime <= 0 {
		return fmt.Errorf("exposure time must be positive, got %v", *p.ExposureTime)
	}
	if p.StabilizationTime != nil && *p.StabilizationTime < 0 {
		return fmt.Errorf("negative stabilization time %v", *p.StabilizationTime)
	}

	return nil
}

// Apply writes the preset to the settings records. The next scan picks
// the values up when it reads its settings.
func (p *Preset) Apply(c *pv.Client) error {
	logrus.WithFields(logrus.Fields{
		"preset": p.Name,
		"start":  p.RotationStart,
		"stop":   p.RotationStop,
		"step":   p.RotationStep,
	}).Info("applying scan preset")

	type write struct {
		name  string
		value any
	}
	writes := []write{
		{pv.RotationStart, p.RotationStart},
		{pv.RotationStop, p.RotationStop},
		{pv.RotationStep, p.RotationStep},
		{pv.NumDarkFields, p.NumDarkFields},
		{pv.DarkFieldMode, string(p.DarkFieldMode)},
		{pv.NumFlatFields, p.NumFlatFields},
		{pv.FlatFieldMode, string(p.FlatFieldMode)},
		{pv.PostScanEnable, boolToInt(p.PostScanEnabled)},
		{pv.PostScanStep, p.PostScanStep},
		{pv.NumPostScan, p.NumPostScan},
	}
	if p.ExposureTime != nil {
		writes = append(writes, write{pv.CamExposureTime, *p.ExposureTime})
	}
	if p.StabilizationTime != nil {
		writes = append(writes, write{pv.StabilizationTime, *p.StabilizationTime})
	}

	for _, w := range writes {
		if err := c.PutWait(w.name, w.value); err != nil {
			return pkgerrors.Wrapf(err, "failed to apply %s", w.name)
		}
	}

	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
