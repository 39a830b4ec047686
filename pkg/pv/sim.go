package pv

import (
	"math"
	"sync"
	"time"
)

// Sim is an in-memory Connection used by tests and by the simulator
// backend of the daemon. Hooks registered with OnPut can emulate
// device behavior by reacting to writes.
type Sim struct {
	mu       sync.Mutex
	vals     map[string]any
	watchers map[string][]chan struct{}
	onPut    map[string][]func(value any)
	closed   bool
}

var _ Connection = &Sim{}

// NewSim returns a new Sim with prefill values.
func NewSim(prefill map[string]any) *Sim {
	s := &Sim{
		vals:     make(map[string]any),
		watchers: make(map[string][]chan struct{}),
		onPut:    make(map[string][]func(value any)),
	}

	for name, value := range prefill {
		s.vals[name] = value
	}

	return s
}

// OnPut registers a hook that runs after value writes to name. Hooks
// run synchronously in the order they were registered, outside the
// store lock, so they may freely call Set or Put themselves.
func (s *Sim) OnPut(name string, fn func(value any)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onPut[name] = append(s.onPut[name], fn)
}

// Get reads the current value of a variable.
func (s *Sim) Get(name string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	v, ok := s.vals[name]
	if !ok {
		return nil, ErrUnknown
	}

	return v, nil
}

// Set stores a value and notifies waiters without running OnPut hooks.
// Device emulation hooks use it to publish their own state changes.
func (s *Sim) Set(name string, value any) {
	s.mu.Lock()
	s.vals[name] = value
	s.notifyLocked(name)
	s.mu.Unlock()
}

// Put stores a value, notifies waiters, and runs OnPut hooks.
func (s *Sim) Put(name string, value any) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.vals[name] = value
	s.notifyLocked(name)
	hooks := s.onPut[name]
	s.mu.Unlock()

	for _, fn := range hooks {
		fn(value)
	}

	return nil
}

// PutWait stores a value like Put. Simulated writes complete
// immediately, so there is nothing extra to wait for.
func (s *Sim) PutWait(name string, value any) error {
	return s.Put(name, value)
}

// Wait blocks until the variable equals value or the timeout expires.
func (s *Sim) Wait(name string, value any, timeout time.Duration) error {
	ch := s.watch(name)
	defer s.unwatch(name, ch)

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return ErrClosed
		}
		v, ok := s.vals[name]
		s.mu.Unlock()

		if ok && equal(v, value) {
			return nil
		}

		select {
		case <-ch:
		case <-deadline.C:
			return ErrWaitTimeout
		}
	}
}

// Close releases the connection. Blocked waiters return ErrClosed.
func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for name := range s.watchers {
		s.notifyLocked(name)
	}

	return nil
}

func (s *Sim) watch(name string) chan struct{} {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers[name] = append(s.watchers[name], ch)

	return ch
}

func (s *Sim) unwatch(name string, ch chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	watchers := s.watchers[name]
	for i, w := range watchers {
		if w == ch {
			s.watchers[name] = append(watchers[:i], watchers[i+1:]...)
			break
		}
	}
}

func (s *Sim) notifyLocked(name string) {
	for _, ch := range s.watchers[name] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// equal compares two variable values. Numeric values are compared as
// floats with Epsilon tolerance regardless of their Go type.
func equal(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return math.Abs(af-bf) < Epsilon
	}

	return a == b
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	default:
		return 0, false
	}
}
