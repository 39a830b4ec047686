package scan

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"slices"

	pkgerrors "github.com/pkg/errors"
)

// FieldMode controls where dark or flat fields are collected relative
// to the projection phase.
type FieldMode string

const (
	FieldModeNone  FieldMode = "None"
	FieldModeStart FieldMode = "Start"
	FieldModeEnd   FieldMode = "End"
	FieldModeBoth  FieldMode = "Both"
)

// ParseFieldMode converts the device string form of a field mode.
func ParseFieldMode(s string) (FieldMode, error) {
	switch FieldMode(s) {
	case FieldModeNone, FieldModeStart, FieldModeEnd, FieldModeBoth:
		return FieldMode(s), nil
	}
	return "", fmt.Errorf("unknown field mode %q", s)
}

// AtStart reports whether the field phase runs before projections.
func (m FieldMode) AtStart() bool {
	return m == FieldModeStart || m == FieldModeBoth
}

// AtEnd reports whether the field phase runs after projections.
func (m FieldMode) AtEnd() bool {
	return m == FieldModeEnd || m == FieldModeBoth
}

func (m FieldMode) occurrences() int {
	n := 0
	if m.AtStart() {
		n++
	}
	if m.AtEnd() {
		n++
	}
	return n
}

// Settings are the operator-chosen scan parameters, read from the
// device when a scan begins.
type Settings struct {
	RotationStart float64
	RotationStop  float64
	RotationStep  float64

	NumDarkFields int
	DarkFieldMode FieldMode
	NumFlatFields int
	FlatFieldMode FieldMode

	PostScanEnabled bool
	PostScanStep    float64
	NumPostScan     int

	// Angles optionally replaces the regular theta sequence with an
	// explicit angle list, e.g. for interlaced scans.
	Angles []float64
}

// Plan is the frozen description of one scan run: the angle sequences,
// the field phases, and the total image count used to arm file
// capture. It is computed once when the scan begins and is read-only
// afterwards.
type Plan struct {
	RotationStart float64   `json:"rotationStart"`
	RotationStop  float64   `json:"rotationStop"`
	RotationStep  float64   `json:"rotationStep"`
	NumAngles     int       `json:"numAngles"`
	Theta         []float64 `json:"theta"`

	DarkFieldMode FieldMode `json:"darkFieldMode"`
	NumDarkFields int       `json:"numDarkFields"`
	FlatFieldMode FieldMode `json:"flatFieldMode"`
	NumFlatFields int       `json:"numFlatFields"`

	PostScanEnabled bool      `json:"postScanEnabled"`
	PostScanStep    float64   `json:"postScanStep"`
	NumPostScan     int       `json:"numPostScan"`
	PostScanTheta   []float64 `json:"postScanTheta"`

	TotalImages int `json:"totalImages"`
}

// NewPlan validates settings and derives the plan for one run.
func NewPlan(s Settings) (*Plan, error) {
	if s.RotationStep <= 0 {
		return nil, fmt.Errorf("rotation step must be positive, got %v", s.RotationStep)
	}
	if s.RotationStop < s.RotationStart {
		return nil, fmt.Errorf("rotation stop %v is before start %v", s.RotationStop, s.RotationStart)
	}
	if s.NumDarkFields < 0 {
		return nil, fmt.Errorf("negative dark field count %d", s.NumDarkFields)
	}
	if s.NumFlatFields < 0 {
		return nil, fmt.Errorf("negative flat field count %d", s.NumFlatFields)
	}
	if s.PostScanEnabled {
		if s.PostScanStep <= 0 {
			return nil, fmt.Errorf("post-scan step must be positive, got %v", s.PostScanStep)
		}
		if s.NumPostScan < 0 {
			return nil, fmt.Errorf("negative post-scan count %d", s.NumPostScan)
		}
	}

	numAngles := countAngles(s.RotationStart, s.RotationStop, s.RotationStep)
	theta := thetas(s.RotationStart, s.RotationStep, numAngles)
	if len(s.Angles) > 0 {
		theta = slices.Clone(s.Angles)
		numAngles = len(theta)
	}

	p := &Plan{
		RotationStart: s.RotationStart,
		RotationStop:  s.RotationStop,
		RotationStep:  s.RotationStep,
		NumAngles:     numAngles,
		Theta:         theta,
		DarkFieldMode: s.DarkFieldMode,
		NumDarkFields: s.NumDarkFields,
		FlatFieldMode: s.FlatFieldMode,
		NumFlatFields: s.NumFlatFields,
	}

	total := numAngles
	total += s.NumDarkFields * s.DarkFieldMode.occurrences()
	total += s.NumFlatFields * s.FlatFieldMode.occurrences()

	if s.PostScanEnabled {
		p.PostScanEnabled = true
		p.PostScanStep = s.PostScanStep
		p.NumPostScan = s.NumPostScan
		p.PostScanTheta = thetas(s.RotationStart, s.PostScanStep, s.NumPostScan)
		total += s.NumPostScan
	}

	p.TotalImages = total

	return p, nil
}

// countAngles computes the number of projection angles. The endpoint
// is included when it lands on the step grid, which floor+1 captures
// and a naive ceil does not.
func countAngles(start, stop, step float64) int {
	return int(math.Floor((stop-start)/step)) + 1
}

func thetas(start, step float64, n int) []float64 {
	t := make([]float64, n)
	for k := range t {
		t[k] = start + float64(k)*step
	}
	return t
}

// LoadAngles reads an explicit angle list from a JSON file. Interlaced
// scans use it to replace the regular theta sequence.
func LoadAngles(path string) ([]float64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to read angle file")
	}

	var angles []float64
	if err := json.Unmarshal(b, &angles); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to parse angle file %s", path)
	}
	if len(angles) == 0 {
		return nil, fmt.Errorf("angle file %s contains no angles", path)
	}

	return angles, nil
}
