package scan

import "errors"

var (
	// ErrScanAborted means the operator requested the run to stop.
	ErrScanAborted = errors.New("scan aborted")
	// ErrCameraTimeout means the camera did not confirm an exposure or
	// a mode change within its bounded wait.
	ErrCameraTimeout = errors.New("camera acquisition timed out")
	// ErrFileOverwrite means the scan would overwrite an existing
	// output file and overwriting is not allowed.
	ErrFileOverwrite = errors.New("output file already exists")

	// ErrScanInProgress is returned when a run is requested while
	// another one is active.
	ErrScanInProgress = errors.New("a scan is already running")
	// ErrNoScanRunning is returned when an abort is requested with no
	// active run.
	ErrNoScanRunning = errors.New("no scan is running")
)

// Recoverable reports whether err ends a run early without leaving the
// sequencer unusable for subsequent runs.
func Recoverable(err error) bool {
	return errors.Is(err, ErrScanAborted) ||
		errors.Is(err, ErrCameraTimeout) ||
		errors.Is(err, ErrFileOverwrite)
}
