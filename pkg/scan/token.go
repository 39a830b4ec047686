package scan

import "sync/atomic"

// Token is the cooperative cancellation flag for one scan run. It is
// passed into every collection hook and polled before each exposure.
// Stop may be called from any goroutine; the run itself never blocks
// on the token.
type Token struct {
	stopped atomic.Bool
}

// Stop requests the run to end. Pending bounded waits return early and
// no further motion or exposure commands are issued.
func (t *Token) Stop() {
	t.stopped.Store(true)
}

// Stopped reports whether a stop has been requested.
func (t *Token) Stopped() bool {
	return t.stopped.Load()
}
