package scan

// Instrument is the set of device operations a scan run is built from.
// The Sequencer depends only on this interface, so each instrument
// variant (step scan, simulator, future fly scan) supplies its own
// implementation without any inheritance chain.
type Instrument interface {
	// BeginScan prepares the device for recording and returns the
	// frozen plan for the run. A failure here aborts the run before
	// any motion occurs.
	BeginScan() (*Plan, error)

	// EndScan returns the device to its idle state. The sequencer
	// calls it exactly once per run no matter how the run ended.
	EndScan() error

	// CollectDarkFields acquires p.Count dark frames.
	CollectDarkFields(tok *Token, p PhaseParameters) error

	// CollectFlatFields acquires p.Count flat frames.
	CollectFlatFields(tok *Token, p PhaseParameters) error

	// CollectProjections acquires one frame per angle in p.Theta.
	CollectProjections(tok *Token, p PhaseParameters) error

	// CollectPostScan acquires the trailing diagnostic pass over
	// p.Theta with the post-scan step and count.
	CollectPostScan(tok *Token, p PhaseParameters) error

	// ReturnRotation parks the rotation stage at angle zero. The
	// sequencer calls it before trailing field phases.
	ReturnRotation() error

	// ComputeFrameTime estimates seconds per frame for ETA reporting.
	ComputeFrameTime() float64
}
