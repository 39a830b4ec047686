package scan

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Sequencer executes scan runs phase by phase:
//
//	Begin -> [DarkStart] -> [FlatStart] -> Projection -> [PostScan] ->
//	[FlatEnd] -> [DarkEnd] -> End
//
// Bracketed phases run only when enabled by the plan's field modes and
// post-scan flag. The whole run executes on the calling goroutine; the
// only cross-cutting signal is the run's cancellation token, which
// Abort stops from outside.
type Sequencer struct {
	instr Instrument
	tags  TagMap

	// OnPhase, if set, is called on every phase transition.
	OnPhase func(from, to Phase)

	mu        sync.Mutex
	running   bool
	token     *Token
	phase     Phase
	plan      *Plan
	startedAt time.Time
}

// Status is a snapshot of the sequencer for telemetry.
type Status struct {
	Running     bool      `json:"running"`
	Phase       Phase     `json:"phase"`
	StartedAt   time.Time `json:"startedAt"`
	TotalImages int       `json:"totalImages,omitempty"`
}

// NewSequencer returns a sequencer driving the given instrument.
func NewSequencer(instr Instrument, tags TagMap) *Sequencer {
	return &Sequencer{
		instr: instr,
		tags:  tags,
		phase: PhaseIdle,
	}
}

// Run executes one scan run to completion and returns the error that
// ended it, nil on normal completion. Cleanup via EndScan happens on
// every exit path, including a panic in a phase. Only one run may be
// active at a time.
func (s *Sequencer) Run() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrScanInProgress
	}
	tok := &Token{}
	s.running = true
	s.token = tok
	s.startedAt = time.Now()
	s.mu.Unlock()

	err := s.run(tok)

	s.mu.Lock()
	s.running = false
	s.token = nil
	s.plan = nil
	s.mu.Unlock()
	s.setPhase(PhaseIdle)

	return err
}

// Abort requests the active run to stop. The run still executes its
// cleanup phase before Run returns.
func (s *Sequencer) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrNoScanRunning
	}

	logrus.Info("scan abort requested")
	s.token.Stop()

	return nil
}

// Status returns a snapshot of the current run.
func (s *Sequencer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Running: s.running,
		Phase:   s.phase,
	}
	if s.running {
		st.StartedAt = s.startedAt
	}
	if s.plan != nil {
		st.TotalImages = s.plan.TotalImages
	}

	return st
}

// Plan returns the active run's plan, nil when no run holds one.
func (s *Sequencer) Plan() *Plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plan
}

// SetTags replaces the frame tag assignments. A run already in flight
// keeps the tags it started with.
func (s *Sequencer) SetTags(tags TagMap) {
	s.mu.Lock()
	s.tags = tags
	s.mu.Unlock()
}

func (s *Sequencer) run(tok *Token) (reterr error) {
	defer func() {
		s.setPhase(PhaseEnd)
		if err := s.instr.EndScan(); err != nil {
			logrus.WithError(err).Error("scan cleanup failed")
			if reterr == nil {
				reterr = err
			}
		}
		// The run is over either way. Record it on the token so any
		// outside observer holding it sees a stopped run.
		tok.Stop()
		if reterr != nil {
			logrus.WithError(reterr).Error("scan ended early")
		} else {
			logrus.Info("scan completed")
		}
	}()

	s.setPhase(PhaseBegin)
	plan, err := s.instr.BeginScan()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.plan = plan
	tags := s.tags
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"numAngles":   plan.NumAngles,
		"totalImages": plan.TotalImages,
		"darkFields":  plan.DarkFieldMode,
		"flatFields":  plan.FlatFieldMode,
		"postScan":    plan.PostScanEnabled,
	}).Info("scan plan computed")

	dark := PhaseParameters{Count: plan.NumDarkFields, Tag: tags.Dark}
	flat := PhaseParameters{Count: plan.NumFlatFields, Tag: tags.Flat}

	if plan.DarkFieldMode.AtStart() {
		dark.Phase = PhaseDarkStart
		if err := s.runPhase(tok, PhaseDarkStart, dark, s.instr.CollectDarkFields); err != nil {
			return err
		}
	}
	if plan.FlatFieldMode.AtStart() {
		flat.Phase = PhaseFlatStart
		if err := s.runPhase(tok, PhaseFlatStart, flat, s.instr.CollectFlatFields); err != nil {
			return err
		}
	}

	proj := PhaseParameters{
		Phase: PhaseProjection,
		Step:  plan.RotationStep,
		Count: plan.NumAngles,
		Theta: plan.Theta,
		Tag:   tags.Projection,
	}
	if err := s.runPhase(tok, PhaseProjection, proj, s.instr.CollectProjections); err != nil {
		return err
	}

	if plan.PostScanEnabled {
		post := PhaseParameters{
			Phase: PhasePostScan,
			Step:  plan.PostScanStep,
			Count: plan.NumPostScan,
			Theta: plan.PostScanTheta,
			Tag:   tags.PostScan,
		}
		if err := s.runPhase(tok, PhasePostScan, post, s.instr.CollectPostScan); err != nil {
			return err
		}
	}

	if plan.FlatFieldMode.AtEnd() || plan.DarkFieldMode.AtEnd() {
		if tok.Stopped() {
			return ErrScanAborted
		}
		if err := s.instr.ReturnRotation(); err != nil {
			return err
		}
	}
	if plan.FlatFieldMode.AtEnd() {
		flat.Phase = PhaseFlatEnd
		if err := s.runPhase(tok, PhaseFlatEnd, flat, s.instr.CollectFlatFields); err != nil {
			return err
		}
	}
	if plan.DarkFieldMode.AtEnd() {
		dark.Phase = PhaseDarkEnd
		if err := s.runPhase(tok, PhaseDarkEnd, dark, s.instr.CollectDarkFields); err != nil {
			return err
		}
	}

	return nil
}

// runPhase enters p and runs one collection hook, refusing to start it
// when a stop has already been requested.
func (s *Sequencer) runPhase(tok *Token, p Phase, params PhaseParameters, collect func(*Token, PhaseParameters) error) error {
	if tok.Stopped() {
		return ErrScanAborted
	}
	s.setPhase(p)
	return collect(tok, params)
}

func (s *Sequencer) setPhase(p Phase) {
	s.mu.Lock()
	from := s.phase
	s.phase = p
	s.mu.Unlock()

	if from == p {
		return
	}

	logrus.WithFields(logrus.Fields{
		"from": from,
		"to":   p,
	}).Debug("scan phase transition")

	if s.OnPhase != nil {
		s.OnPhase(from, p)
	}
}
