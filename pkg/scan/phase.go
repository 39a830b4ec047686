package scan

import "time"

// Phase identifies one segment of a scan run.
type Phase string

const (
	PhaseIdle       Phase = "Idle"
	PhaseBegin      Phase = "Begin"
	PhaseDarkStart  Phase = "DarkStart"
	PhaseFlatStart  Phase = "FlatStart"
	PhaseProjection Phase = "Projection"
	PhasePostScan   Phase = "PostScan"
	PhaseFlatEnd    Phase = "FlatEnd"
	PhaseDarkEnd    Phase = "DarkEnd"
	PhaseEnd        Phase = "End"
)

// TagMap assigns the frame-type tag recorded with each frame category,
// keeping dark, flat, projection, and post-scan frames apart in the
// output file. The post-scan tag varies between installations, so the
// whole mapping is configurable.
type TagMap struct {
	Projection int `json:"projection"`
	Dark       int `json:"dark"`
	Flat       int `json:"flat"`
	PostScan   int `json:"postScan"`
}

// DefaultTagMap returns the standard frame-type assignment.
func DefaultTagMap() TagMap {
	return TagMap{
		Projection: 0,
		Dark:       1,
		Flat:       2,
		PostScan:   3,
	}
}

// PhaseParameters carries everything one acquisition phase needs. Each
// phase gets its own value, so post-scan step and count substitutions
// stay scoped to the post-scan phase and never leak into a later run.
type PhaseParameters struct {
	Phase Phase
	// Step is the angular increment for rotational phases.
	Step float64
	// Count is the number of frames to acquire.
	Count int
	// Theta is the ordered angle sequence for rotational phases. It is
	// empty for dark and flat fields.
	Theta []float64
	// Tag is the frame-type value recorded with each frame.
	Tag int
}

// Progress is one status update, issued after each exposure and once
// more when a phase drains.
type Progress struct {
	Phase     Phase         `json:"phase"`
	Collected int           `json:"collected"`
	Total     int           `json:"total"`
	Elapsed   time.Duration `json:"elapsed"`
	Remaining time.Duration `json:"remaining"`
}
