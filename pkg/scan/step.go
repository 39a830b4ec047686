package scan

import (
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/kematusik/tomoscan/pkg/pv"
)

const (
	// armSettle is the pause after starting acquisition, giving the
	// detector and file plugin time to report busy.
	armSettle = 500 * time.Millisecond
	// finalSettle covers the write latency of the last frame of a
	// phase before the closing status update.
	finalSettle = 500 * time.Millisecond
	// exposureWait bounds the wait for a single exposure to start.
	exposureWait = 60 * time.Second
	// stopWait bounds the wait for the camera to confirm a stop.
	stopWait = 10 * time.Second
)

// TriggerFreeRun is the sentinel trigger mode restoring continuous
// live view. It maps to the device's internal trigger and continuous
// image mode.
const TriggerFreeRun = "FreeRun"

// StepScanOptions configure instrument behavior outside the scan
// parameters themselves.
type StepScanOptions struct {
	// AllowOverwrite skips the existing-output check in BeginScan.
	AllowOverwrite bool
	// ReturnToStart moves the rotation stage back to the start angle
	// during EndScan.
	ReturnToStart bool
}

// StepScan runs stop-and-go tomography on a rotation stage and an area
// detector: for every angle the stage stops, settles, and a single
// software-triggered exposure is taken. Dark and flat fields are
// acquired as internally triggered batches.
//
// All methods are driven by a single Sequencer goroutine per run; the
// cancellation token is the only value touched from outside.
type StepScan struct {
	pvs  *pv.Client
	opts StepScanOptions

	// vendor is fixed at construction from the manufacturer string.
	vendor Vendor

	// OnProgress, if set, receives every status update the instrument
	// writes to the status records.
	OnProgress func(Progress)

	startedAt time.Time
	collected int
	total     int
	frameTime float64

	// Test seams. Production values come from the package constants.
	sleep           func(time.Duration)
	exposureTimeout time.Duration
	stopTimeout     time.Duration
}

var _ Instrument = &StepScan{}

// NewStepScan returns a step-scan instrument on the given variable
// space. The camera vendor is resolved once here.
func NewStepScan(pvs *pv.Client, opts StepScanOptions) (*StepScan, error) {
	manufacturer, err := pvs.String(pv.CamManufacturer)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to read camera manufacturer")
	}

	vendor := ResolveVendor(manufacturer)
	logrus.WithFields(logrus.Fields{
		"manufacturer": manufacturer,
		"vendor":       vendor,
	}).Info("camera vendor resolved")

	return &StepScan{
		pvs:             pvs,
		opts:            opts,
		vendor:          vendor,
		sleep:           time.Sleep,
		exposureTimeout: exposureWait,
		stopTimeout:     stopWait,
	}, nil
}

// SetOptions replaces the instrument options. Must not be called while
// a run is active.
func (s *StepScan) SetOptions(opts StepScanOptions) {
	s.opts = opts
}

// Preview derives the acquisition plan from the current settings
// without touching the instrument.
func (s *StepScan) Preview() (*Plan, error) {
	settings, err := s.readSettings()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to read scan settings")
	}
	return NewPlan(settings)
}

// BeginScan reads the scan settings, derives the plan, checks the
// output destination, and arms file capture for the whole run.
func (s *StepScan) BeginScan() (*Plan, error) {
	settings, err := s.readSettings()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to read scan settings")
	}

	plan, err := NewPlan(settings)
	if err != nil {
		return nil, err
	}

	if !s.opts.AllowOverwrite {
		exists, err := s.pvs.Int(pv.FPFileExists)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "failed to check output file")
		}
		if exists != 0 {
			name, _ := s.pvs.String(pv.FPFullFileName)
			return nil, pkgerrors.Wrapf(ErrFileOverwrite, "%s", name)
		}
	}

	s.startedAt = time.Now()
	s.collected = 0
	s.total = plan.TotalImages
	s.frameTime = s.ComputeFrameTime()

	if err := s.pvs.PutWait(pv.FPNumCapture, plan.TotalImages); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to arm file capture count")
	}
	if err := s.pvs.Put(pv.FPCapture, "Capture"); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to start file capture")
	}
	if err := s.pvs.Put(pv.ScanRunning, 1); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to raise scan running flag")
	}
	s.setScanStatus("Scan running")

	return plan, nil
}

// EndScan restores live view and idles the scan records. Every restore
// step is attempted even if an earlier one fails; the first failure is
// returned.
func (s *StepScan) EndScan() error {
	logrus.Info("end scan")

	var firstErr error
	fail := func(err error, msg string) {
		if err == nil {
			return
		}
		logrus.WithError(err).Error(msg)
		if firstErr == nil {
			firstErr = pkgerrors.Wrap(err, msg)
		}
	}

	// Stop file capture in case the run ended before the file plugin
	// saw all armed frames.
	fail(s.pvs.Put(pv.FPCapture, "Done"), "failed to stop file capture")

	// Put the camera back in live view so the operator sees images.
	fail(s.setTriggerMode(TriggerFreeRun, 1), "failed to restore live view mode")
	fail(s.pvs.Put(pv.CamAcquire, "Acquire"), "failed to restart live acquisition")

	if s.opts.ReturnToStart {
		start, err := s.pvs.Float(pv.RotationStart)
		fail(err, "failed to read rotation start")
		if err == nil {
			fail(s.pvs.PutWait(pv.Rotation, start), "failed to return rotation stage")
		}
	}

	fail(s.pvs.Put(pv.ScanRunning, 0), "failed to clear scan running flag")
	fail(s.pvs.Put(pv.StartScan, 0), "failed to reset scan start record")
	s.setScanStatus("Scan complete")

	return firstErr
}

// CollectDarkFields acquires the dark field batch.
func (s *StepScan) CollectDarkFields(tok *Token, p PhaseParameters) error {
	logrus.Infof("collecting %d dark fields", p.Count)
	s.setScanStatus("Collecting dark fields")
	return s.collectStaticFrames(tok, p)
}

// CollectFlatFields acquires the flat field batch.
func (s *StepScan) CollectFlatFields(tok *Token, p PhaseParameters) error {
	logrus.Infof("collecting %d flat fields", p.Count)
	s.setScanStatus("Collecting flat fields")
	return s.collectStaticFrames(tok, p)
}

// CollectProjections steps through the angle sequence.
func (s *StepScan) CollectProjections(tok *Token, p PhaseParameters) error {
	logrus.Infof("collecting %d projections", p.Count)
	s.setScanStatus("Collecting projections")
	return s.collectRotational(tok, p)
}

// CollectPostScan runs the trailing coarse pass over the same start
// angle with the post-scan step and count.
func (s *StepScan) CollectPostScan(tok *Token, p PhaseParameters) error {
	logrus.Infof("collecting %d post-scan frames", p.Count)
	s.setScanStatus("Collecting post-scan frames")
	return s.collectRotational(tok, p)
}

// ReturnRotation parks the stage at angle zero for the trailing field
// phases.
func (s *StepScan) ReturnRotation() error {
	logrus.Debug("returning rotation stage to zero")
	return s.pvs.PutWait(pv.Rotation, 0.0)
}

// ComputeFrameTime estimates seconds per frame from the current camera
// settings and the vendor resolved at construction.
func (s *StepScan) ComputeFrameTime() float64 {
	p := s.cameraProfile()
	t := s.vendor.FrameTime(p)

	logrus.WithFields(logrus.Fields{
		"vendor":    s.vendor,
		"exposure":  p.Exposure,
		"frameTime": t,
	}).Debug("computed frame time")

	return t
}

// collectStaticFrames acquires p.Count frames with the stage parked,
// used for dark and flat fields. The camera triggers itself, so the
// whole batch is one bounded wait sized by the frame time estimate.
func (s *StepScan) collectStaticFrames(tok *Token, p PhaseParameters) error {
	if tok.Stopped() {
		return ErrScanAborted
	}
	if p.Count == 0 {
		s.updateStatus(p.Phase)
		return nil
	}

	if err := s.pvs.PutWait(pv.FrameType, p.Tag); err != nil {
		return pkgerrors.Wrap(err, "failed to set frame type")
	}
	if err := s.pvs.PutWait(pv.CamImageMode, "Multiple"); err != nil {
		return pkgerrors.Wrap(err, "failed to set image mode")
	}
	if err := s.setTriggerMode("Internal", p.Count); err != nil {
		return err
	}

	if err := s.pvs.Put(pv.CamAcquire, "Acquire"); err != nil {
		return pkgerrors.Wrap(err, "failed to start acquisition")
	}
	// Give the detector and file plugin time to get ready.
	s.sleep(armSettle)

	bound := secondsToDuration(s.frameTime*float64(p.Count) + 5.0)
	if err := s.waitCameraDone(tok, bound); err != nil {
		return err
	}

	s.collected += p.Count
	s.updateStatus(p.Phase)

	return nil
}

// collectRotational is the per-angle acquisition loop shared by the
// projection and post-scan phases: move, settle, expose, confirm.
func (s *StepScan) collectRotational(tok *Token, p PhaseParameters) error {
	if tok.Stopped() {
		return ErrScanAborted
	}

	if err := s.pvs.PutWait(pv.FrameType, p.Tag); err != nil {
		return pkgerrors.Wrap(err, "failed to set frame type")
	}
	if err := s.pvs.PutWait(pv.CamImageMode, "Multiple"); err != nil {
		return pkgerrors.Wrap(err, "failed to set image mode")
	}
	if err := s.setTriggerMode("Software", p.Count); err != nil {
		return err
	}

	if err := s.pvs.Put(pv.CamAcquire, "Acquire"); err != nil {
		return pkgerrors.Wrap(err, "failed to start acquisition")
	}
	// AcquireBusy needs a moment to assert after the start command.
	s.sleep(armSettle)

	stabilization, err := s.pvs.Float(pv.StabilizationTime)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to read stabilization time")
	}
	logrus.Infof("stabilization time %f s", stabilization)

	base := s.collected
	for k, theta := range p.Theta {
		if tok.Stopped() {
			return ErrScanAborted
		}

		logrus.Infof("angle %d: %f", k, theta)
		if err := s.pvs.PutWait(pv.Rotation, theta); err != nil {
			return pkgerrors.Wrapf(err, "failed to rotate to %f", theta)
		}
		s.sleep(secondsToDuration(stabilization))

		if err := s.pvs.Put(pv.CamTriggerSoftware, 1); err != nil {
			return pkgerrors.Wrap(err, "failed to trigger exposure")
		}
		if err := s.pvs.Wait(pv.CamNumImagesCounter, k+1, s.exposureTimeout); err != nil {
			if errors.Is(err, pv.ErrWaitTimeout) {
				logrus.Errorf("dropped images: exposure %d of %d not confirmed", k+1, p.Count)
				return pkgerrors.Wrapf(ErrCameraTimeout, "exposure %d", k+1)
			}
			return err
		}

		s.collected = base + k + 1
		s.updateStatus(p.Phase)
	}

	// Let the last frame drain to the file plugin.
	s.sleep(finalSettle)
	s.updateStatus(p.Phase)

	return nil
}

// waitCameraDone waits for acquisition to finish, slicing the bounded
// wait so an abort cuts it short.
func (s *StepScan) waitCameraDone(tok *Token, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if tok.Stopped() {
			return ErrScanAborted
		}

		remain := time.Until(deadline)
		if remain <= 0 {
			logrus.Errorf("camera did not finish within %s", timeout)
			return ErrCameraTimeout
		}

		slice := time.Second
		if remain < slice {
			slice = remain
		}
		err := s.pvs.Wait(pv.CamAcquireBusy, 0, slice)
		if err == nil {
			return nil
		}
		if !errors.Is(err, pv.ErrWaitTimeout) {
			return err
		}
	}
}

func (s *StepScan) readSettings() (Settings, error) {
	var settings Settings
	var err error

	read := func(dst *float64, name string) {
		if err != nil {
			return
		}
		*dst, err = s.pvs.Float(name)
	}
	readInt := func(dst *int, name string) {
		if err != nil {
			return
		}
		*dst, err = s.pvs.Int(name)
	}
	readMode := func(dst *FieldMode, name string) {
		if err != nil {
			return
		}
		var raw string
		raw, err = s.pvs.String(name)
		if err != nil {
			return
		}
		*dst, err = ParseFieldMode(raw)
	}

	read(&settings.RotationStart, pv.RotationStart)
	read(&settings.RotationStop, pv.RotationStop)
	read(&settings.RotationStep, pv.RotationStep)
	readInt(&settings.NumDarkFields, pv.NumDarkFields)
	readMode(&settings.DarkFieldMode, pv.DarkFieldMode)
	readInt(&settings.NumFlatFields, pv.NumFlatFields)
	readMode(&settings.FlatFieldMode, pv.FlatFieldMode)
	if err != nil {
		return settings, err
	}

	// Post-scan and interlaced settings are optional records. Missing
	// ones mean the feature is off.
	if enabled, perr := s.pvs.Int(pv.PostScanEnable); perr == nil && enabled != 0 {
		settings.PostScanEnabled = true
		read(&settings.PostScanStep, pv.PostScanStep)
		readInt(&settings.NumPostScan, pv.NumPostScan)
		if err != nil {
			return settings, err
		}
	}

	if interlaced, perr := s.pvs.Int(pv.InterlacedScan); perr == nil && interlaced != 0 {
		path, perr := s.pvs.String(pv.InterlacedFile)
		if perr != nil {
			return settings, perr
		}
		angles, perr := LoadAngles(path)
		if perr != nil {
			return settings, perr
		}
		logrus.Infof("loaded %d interlaced angles from %s", len(angles), path)
		settings.Angles = angles
	}

	return settings, nil
}

func (s *StepScan) cameraProfile() CameraProfile {
	p := CameraProfile{}
	p.Manufacturer, _ = s.pvs.String(pv.CamManufacturer)
	p.Model, _ = s.pvs.String(pv.CamModel)

	var err error
	if p.Exposure, err = s.pvs.Float(pv.CamExposureTime); err != nil {
		logrus.WithError(err).Warn("failed to read exposure time")
	}
	if p.ADCSpeed, err = s.pvs.Int(pv.CamADCSpeed); err != nil {
		logrus.WithError(err).Warn("failed to read ADC speed")
	}
	if p.SizeX, err = s.pvs.Int(pv.CamSizeX); err != nil {
		logrus.WithError(err).Warn("failed to read sensor width")
	}
	if p.SizeY, err = s.pvs.Int(pv.CamSizeY); err != nil {
		logrus.WithError(err).Warn("failed to read sensor height")
	}

	return p
}

// updateStatus writes the progress records and notifies the progress
// callback. Status writes are advisory and never fail the run.
func (s *StepScan) updateStatus(phase Phase) {
	elapsed := time.Since(s.startedAt)
	remaining := secondsToDuration(float64(s.total-s.collected) * s.frameTime)

	_ = s.pvs.Put(pv.ImagesCollected, s.collected)
	if saved, err := s.pvs.Int(pv.FPNumCaptured); err == nil {
		_ = s.pvs.Put(pv.ImagesSaved, saved)
	}
	_ = s.pvs.Put(pv.ElapsedTime, elapsed.Seconds())
	_ = s.pvs.Put(pv.RemainingTime, remaining.Seconds())

	if s.OnProgress != nil {
		s.OnProgress(Progress{
			Phase:     phase,
			Collected: s.collected,
			Total:     s.total,
			Elapsed:   elapsed,
			Remaining: remaining,
		})
	}
}

func (s *StepScan) setScanStatus(text string) {
	_ = s.pvs.Put(pv.ScanStatus, text)
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
