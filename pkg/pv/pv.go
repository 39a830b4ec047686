// Package pv provides access to the process variables of the scan
// instrument: the rotation stage, the area detector camera, the file
// plugin, and the scan status records. The actual transport (Channel
// Access, PVAccess, or the built-in simulator) is hidden behind the
// Connection interface.
package pv

import (
	"errors"
	"time"
)

// Epsilon is the tolerance used when comparing float values in Wait.
const Epsilon = 0.001

var (
	// ErrUnknown is returned when a process variable name is not known
	// to the connection.
	ErrUnknown = errors.New("unknown process variable")
	// ErrWaitTimeout is returned by Wait when the variable did not
	// reach the requested value within the timeout.
	ErrWaitTimeout = errors.New("wait timed out")
	// ErrClosed is returned when the connection has been closed.
	ErrClosed = errors.New("connection closed")
)

// Connection is the transport to a process variable space.
type Connection interface {
	// Get reads the current value of a variable.
	Get(name string) (any, error)
	// Put writes a value without waiting for the device to act on it.
	Put(name string, value any) error
	// PutWait writes a value and blocks until the device confirms
	// completion, e.g. until a commanded motion has finished.
	PutWait(name string, value any) error
	// Wait blocks until the variable equals value, or the timeout
	// expires, in which case it returns ErrWaitTimeout. Floats are
	// compared with Epsilon tolerance.
	Wait(name string, value any, timeout time.Duration) error
	// Close releases the connection.
	Close() error
}
