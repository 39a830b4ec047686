package events

import "encoding/json"

// Event name constants
const (
	ScanPhase    = "scan.phase"
	ScanProgress = "scan.progress"
	ScanFinished = "scan.finished"
)

// Event is a generic event from the daemon's stream.
type Event struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ScanPhaseEvent is the typed payload for scan.phase.
type ScanPhaseEvent struct {
	RunID string `json:"runId"`
	From  string `json:"from"`
	To    string `json:"to"`
	Ts    int64  `json:"ts"`
}

// ScanProgressEvent is the typed payload for scan.progress.
type ScanProgressEvent struct {
	RunID     string  `json:"runId"`
	Phase     string  `json:"phase"`
	Collected int     `json:"collected"`
	Total     int     `json:"total"`
	Elapsed   float64 `json:"elapsed"`
	Remaining float64 `json:"remaining"`
	Ts        int64   `json:"ts"`
}

// ScanFinishedEvent is the typed payload for scan.finished.
type ScanFinishedEvent struct {
	RunID  string `json:"runId"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Ts     int64  `json:"ts"`
}

// DecodeAs decodes the event payload into the caller-specified generic type T.
// It ignores the event name and simply unmarshals Data into T. If Data is empty,
// it returns the zero value of T with a nil error.
//
// Example:
//
//	payload, err := events.DecodeAs[events.ScanProgressEvent](ev)
//	if err != nil { /* handle */ }
//	fmt.Println(payload.Collected, payload.Total)
func DecodeAs[T any](e Event) (T, error) {
	var zero T
	if len(e.Data) == 0 {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return zero, err
	}
	return v, nil
}
