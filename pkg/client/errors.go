package client

import "errors"

var (
	// ErrDaemonNotRunning is returned when the control socket does not
	// exist, usually because the tomoscan daemon is not running.
	ErrDaemonNotRunning = errors.New("daemon not running")

	// ErrPermissionDenied is returned when the control socket exists
	// but the user may not open it.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound is returned when the daemon answers 404, e.g. for an
	// unknown run ID or process variable.
	ErrNotFound = errors.New("404 not found")
)
