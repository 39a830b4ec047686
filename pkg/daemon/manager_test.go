package daemon

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kematusik/tomoscan/pkg/config"
	"github.com/kematusik/tomoscan/pkg/events"
	"github.com/kematusik/tomoscan/pkg/history"
	"github.com/kematusik/tomoscan/pkg/pv"
	"github.com/kematusik/tomoscan/pkg/scan"
)

// newTestManager wires a manager around the simulated instrument with
// a three-angle scan so runs finish in about a second.
func newTestManager(t *testing.T) (*Manager, *pv.Sim, config.Config, *history.DB, *events.EventHub) {
	t.Helper()

	sim := pv.NewSim(pv.Defaults())
	pv.NewDetector(sim)

	sim.Set(pv.RotationStop, 2.0)
	sim.Set(pv.RotationStep, 1.0)
	sim.Set(pv.DarkFieldMode, "None")
	sim.Set(pv.FlatFieldMode, "None")

	pvs := pv.NewClient(sim)

	conf, err := config.NewFile(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("failed to create config: %v", err)
	}

	db, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("failed to open history database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h := events.NewEventHub()

	step, err := scan.NewStepScan(pvs, scan.StepScanOptions{})
	if err != nil {
		t.Fatalf("failed to create instrument: %v", err)
	}
	seq := scan.NewSequencer(step, conf.FrameTags())

	return NewManager(conf, seq, step, pvs, db, h), sim, conf, db, h
}

func waitRun(t *testing.T, m *Manager) {
	t.Helper()
	if !m.Wait(30 * time.Second) {
		t.Fatalf("scan did not finish in time")
	}
}

func TestManagerRunCompletes(t *testing.T) {
	m, _, _, db, h := newTestManager(t)

	sub := h.Subscribe()
	defer h.Unsubscribe(sub)

	id, err := m.Start("")
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if id == "" {
		t.Fatalf("Start returned empty run ID")
	}
	if got := m.RunID(); got != id {
		t.Fatalf("RunID = %q, want %q", got, id)
	}

	if _, err := m.Start(""); !errors.Is(err, scan.ErrScanInProgress) {
		t.Fatalf("second Start returned %v, want ErrScanInProgress", err)
	}

	waitRun(t, m)

	if got := m.RunID(); got != "" {
		t.Fatalf("RunID after completion = %q, want empty", got)
	}

	run, err := db.GetRun(id)
	if err != nil {
		t.Fatalf("GetRun returned error: %v", err)
	}
	if run.Status != history.RunStatusCompleted {
		t.Fatalf("run status = %q, want completed (error: %v)", run.Status, run.ErrorMessage)
	}
	if run.NumAngles != 3 {
		t.Fatalf("run angles = %d, want 3", run.NumAngles)
	}
	if run.ImagesTotal != 3 {
		t.Fatalf("run total images = %d, want 3", run.ImagesTotal)
	}
	if run.ImagesCollected != 3 {
		t.Fatalf("run collected images = %d, want 3", run.ImagesCollected)
	}
	if run.Phase != string(scan.PhaseEnd) {
		t.Fatalf("run phase = %q, want End", run.Phase)
	}
	if run.CompletedAt == nil {
		t.Fatalf("run has no completion time")
	}
	if run.FileName == nil || *run.FileName == "" {
		t.Fatalf("run has no output file name")
	}

	var phases, progresses, finishes int
	var finished events.ScanFinishedEvent

drain:
	for {
		select {
		case ev := <-sub:
			switch ev.Name {
			case events.ScanPhase:
				phases++
			case events.ScanProgress:
				progresses++
			case events.ScanFinished:
				finishes++
				f, err := events.DecodeAs[events.ScanFinishedEvent](ev)
				if err != nil {
					t.Fatalf("failed to decode finished event: %v", err)
				}
				finished = f
			}
		default:
			break drain
		}
	}

	if phases == 0 {
		t.Fatalf("no phase events published")
	}
	if progresses == 0 {
		t.Fatalf("no progress events published")
	}
	if finishes != 1 {
		t.Fatalf("finished events = %d, want 1", finishes)
	}
	if finished.RunID != id {
		t.Fatalf("finished event run ID = %q, want %q", finished.RunID, id)
	}
	if finished.Status != string(history.RunStatusCompleted) {
		t.Fatalf("finished event status = %q, want completed", finished.Status)
	}
}

func TestManagerAbort(t *testing.T) {
	m, sim, _, db, _ := newTestManager(t)

	if err := m.Abort(); !errors.Is(err, scan.ErrNoScanRunning) {
		t.Fatalf("Abort while idle returned %v, want ErrNoScanRunning", err)
	}

	// Enough angles and per-angle settling that the abort lands while
	// projections are still being collected.
	sim.Set(pv.RotationStop, 180.0)
	sim.Set(pv.RotationStep, 0.25)
	sim.Set(pv.StabilizationTime, 0.01)

	id, err := m.Start("")
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	time.Sleep(700 * time.Millisecond)
	if err := m.Abort(); err != nil {
		t.Fatalf("Abort returned error: %v", err)
	}

	waitRun(t, m)

	run, err := db.GetRun(id)
	if err != nil {
		t.Fatalf("GetRun returned error: %v", err)
	}
	if run.Status != history.RunStatusAborted {
		t.Fatalf("run status = %q, want aborted", run.Status)
	}
	if run.ErrorMessage == nil {
		t.Fatalf("aborted run has no error message")
	}
	if run.ImagesCollected >= run.ImagesTotal {
		t.Fatalf("aborted run collected %d of %d images, expected fewer", run.ImagesCollected, run.ImagesTotal)
	}
}

func TestManagerPresetApplied(t *testing.T) {
	m, sim, _, db, _ := newTestManager(t)

	path := filepath.Join(t.TempDir(), "survey.toml")
	content := `
name = "survey"
rotation_start = 0.0
rotation_stop = 1.0
rotation_step = 0.5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write preset: %v", err)
	}

	id, err := m.Start(path)
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	waitRun(t, m)

	if got, _ := sim.Get(pv.RotationStop); got != 1.0 {
		t.Fatalf("rotation stop = %v, want 1.0 from preset", got)
	}

	run, err := db.GetRun(id)
	if err != nil {
		t.Fatalf("GetRun returned error: %v", err)
	}
	if run.Preset == nil || *run.Preset != "survey" {
		t.Fatalf("run preset = %v, want survey", run.Preset)
	}
	if run.NumAngles != 3 {
		t.Fatalf("run angles = %d, want 3 from preset ranges", run.NumAngles)
	}
	if run.Status != history.RunStatusCompleted {
		t.Fatalf("run status = %q, want completed", run.Status)
	}
}

func TestManagerPresetLoadFailure(t *testing.T) {
	m, _, _, db, _ := newTestManager(t)

	if _, err := m.Start(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("Start with missing preset should fail")
	}
	if got := m.RunID(); got != "" {
		t.Fatalf("RunID after failed start = %q, want empty", got)
	}
	if _, err := db.GetLastRun(); err == nil {
		t.Fatalf("failed start should not record a run")
	}
}

func TestManagerOverwriteGuardFollowsConfig(t *testing.T) {
	m, sim, conf, db, _ := newTestManager(t)

	sim.Set(pv.FPFileExists, 1)

	id, err := m.Start("")
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	waitRun(t, m)

	run, err := db.GetRun(id)
	if err != nil {
		t.Fatalf("GetRun returned error: %v", err)
	}
	if run.Status != history.RunStatusFailed {
		t.Fatalf("run status = %q, want failed on existing output", run.Status)
	}
	if run.ErrorMessage == nil || !strings.Contains(*run.ErrorMessage, "already exists") {
		t.Fatalf("run error = %v, want overwrite refusal", run.ErrorMessage)
	}

	// Allowing overwrites takes effect on the next run without
	// rebuilding the manager.
	conf.SetAllowOverwrite(true)

	id, err = m.Start("")
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	waitRun(t, m)

	run, err = db.GetRun(id)
	if err != nil {
		t.Fatalf("GetRun returned error: %v", err)
	}
	if run.Status != history.RunStatusCompleted {
		t.Fatalf("run status = %q, want completed with overwrite allowed (error: %v)", run.Status, run.ErrorMessage)
	}
}
