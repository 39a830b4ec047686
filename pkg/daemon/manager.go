package daemon

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kematusik/tomoscan/pkg/config"
	"github.com/kematusik/tomoscan/pkg/events"
	"github.com/kematusik/tomoscan/pkg/history"
	"github.com/kematusik/tomoscan/pkg/preset"
	"github.com/kematusik/tomoscan/pkg/pv"
	"github.com/kematusik/tomoscan/pkg/scan"
)

// Manager runs at most one scan at a time and keeps the history store
// and event hub in step with the active run.
type Manager struct {
	conf config.Config
	seq  *scan.Sequencer
	step *scan.StepScan
	pvs  *pv.Client
	hist *history.DB
	hub  *events.EventHub

	mu        sync.Mutex
	runID     string
	collected int
	done      chan struct{}
}

func NewManager(conf config.Config, seq *scan.Sequencer, step *scan.StepScan, pvs *pv.Client, hist *history.DB, hub *events.EventHub) *Manager {
	m := &Manager{
		conf: conf,
		seq:  seq,
		step: step,
		pvs:  pvs,
		hist: hist,
		hub:  hub,
	}
	seq.OnPhase = m.handlePhase
	step.OnProgress = m.handleProgress
	return m
}

// Start launches a scan run and returns its ID. When presetPath is
// non-empty the preset is applied to the settings records first.
func (m *Manager) Start(presetPath string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.runID != "" {
		return "", scan.ErrScanInProgress
	}

	var presetName *string
	if presetPath != "" {
		p, err := preset.Load(presetPath)
		if err != nil {
			return "", err
		}
		if err := p.Apply(m.pvs); err != nil {
			return "", err
		}
		name := p.Name
		if name == "" {
			name = presetPath
		}
		presetName = &name
	}

	// Options and tags are fixed per run, so config changes take
	// effect on the next scan without a daemon restart.
	m.step.SetOptions(scan.StepScanOptions{
		AllowOverwrite: m.conf.AllowOverwrite(),
		ReturnToStart:  m.conf.ReturnToStart(),
	})
	m.seq.SetTags(m.conf.FrameTags())

	id := uuid.NewString()
	if _, err := m.hist.CreateRun(id, presetName); err != nil {
		return "", err
	}

	m.runID = id
	m.collected = 0
	done := make(chan struct{})
	m.done = done

	logrus.WithField("runID", id).Info("scan run starting")

	go m.runScan(id, done)

	return id, nil
}

// Abort requests the active run to stop.
func (m *Manager) Abort() error {
	return m.seq.Abort()
}

// RunID returns the active run's ID, empty when idle.
func (m *Manager) RunID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runID
}

// Collected returns the number of images collected by the active run.
func (m *Manager) Collected() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collected
}

// Status returns a snapshot of the sequencer.
func (m *Manager) Status() scan.Status {
	return m.seq.Status()
}

// Preview derives the acquisition plan from the current settings.
func (m *Manager) Preview() (*scan.Plan, error) {
	return m.step.Preview()
}

// FrameTime estimates the per-frame time from the camera settings.
func (m *Manager) FrameTime() float64 {
	return m.step.ComputeFrameTime()
}

// Wait blocks until the active run finishes or the timeout elapses,
// returning false on timeout. It returns immediately when idle.
func (m *Manager) Wait(timeout time.Duration) bool {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()

	if done == nil {
		return true
	}
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (m *Manager) runScan(id string, done chan struct{}) {
	err := m.seq.Run()

	status := history.RunStatusCompleted
	var errMsg *string
	if err != nil {
		msg := err.Error()
		errMsg = &msg
		if errors.Is(err, scan.ErrScanAborted) {
			status = history.RunStatusAborted
		} else {
			status = history.RunStatusFailed
		}
	}

	if herr := m.hist.CompleteRun(id, status, errMsg); herr != nil {
		logrus.WithError(herr).Error("failed to record scan completion")
	}

	ev := events.ScanFinishedEvent{RunID: id, Status: string(status), Ts: time.Now().Unix()}
	if errMsg != nil {
		ev.Error = *errMsg
	}
	m.hub.Publish(events.ScanFinished, ev)

	m.mu.Lock()
	m.runID = ""
	m.done = nil
	m.mu.Unlock()
	close(done)
}

func (m *Manager) handlePhase(from, to scan.Phase) {
	m.mu.Lock()
	id := m.runID
	collected := m.collected
	m.mu.Unlock()

	if id == "" {
		return
	}

	m.hub.Publish(events.ScanPhase, events.ScanPhaseEvent{
		RunID: id,
		From:  string(from),
		To:    string(to),
		Ts:    time.Now().Unix(),
	})

	// Leaving Begin means the plan exists now.
	if from == scan.PhaseBegin {
		if plan := m.seq.Plan(); plan != nil {
			var fileName *string
			if name, err := m.pvs.String(pv.FPFullFileName); err == nil && name != "" {
				fileName = &name
			}
			if err := m.hist.SetRunPlan(id, plan.NumAngles, plan.TotalImages, fileName); err != nil {
				logrus.WithError(err).Error("failed to record scan plan")
			}
		}
	}

	if to == scan.PhaseIdle {
		return
	}
	if err := m.hist.UpdateRunProgress(id, string(to), collected); err != nil {
		logrus.WithError(err).Error("failed to record phase change")
	}
}

func (m *Manager) handleProgress(p scan.Progress) {
	m.mu.Lock()
	id := m.runID
	m.collected = p.Collected
	m.mu.Unlock()

	if id == "" {
		return
	}

	m.hub.Publish(events.ScanProgress, events.ScanProgressEvent{
		RunID:     id,
		Phase:     string(p.Phase),
		Collected: p.Collected,
		Total:     p.Total,
		Elapsed:   p.Elapsed.Seconds(),
		Remaining: p.Remaining.Seconds(),
		Ts:        time.Now().Unix(),
	})

	if err := m.hist.UpdateRunProgress(id, string(p.Phase), p.Collected); err != nil {
		logrus.WithError(err).Error("failed to record scan progress")
	}
}
