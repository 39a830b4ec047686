package scan

import (
	"errors"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/kematusik/tomoscan/pkg/pv"
)

// setTriggerMode arms the camera for the next batch: stop, then mode,
// then image count. The count must land after the mode change or the
// device arms it against the previous mode.
func (s *StepScan) setTriggerMode(mode string, numImages int) error {
	logrus.WithFields(logrus.Fields{
		"mode":      mode,
		"numImages": numImages,
	}).Debug("set trigger mode")

	// Stop acquisition first. The stop is harmless when the camera is
	// already idle.
	if err := s.pvs.Put(pv.CamAcquire, "Done"); err != nil {
		return pkgerrors.Wrap(err, "failed to stop camera")
	}
	if err := s.pvs.Wait(pv.CamAcquireBusy, 0, s.stopTimeout); err != nil {
		if errors.Is(err, pv.ErrWaitTimeout) {
			return pkgerrors.Wrap(ErrCameraTimeout, "camera did not confirm stop")
		}
		return err
	}

	if mode == TriggerFreeRun {
		if err := s.pvs.PutWait(pv.CamImageMode, "Continuous"); err != nil {
			return pkgerrors.Wrap(err, "failed to set image mode")
		}
		if err := s.pvs.PutWait(pv.CamTriggerMode, "Internal"); err != nil {
			return pkgerrors.Wrap(err, "failed to set trigger mode")
		}
	} else {
		if err := s.pvs.PutWait(pv.CamTriggerMode, mode); err != nil {
			return pkgerrors.Wrapf(err, "failed to set trigger mode %s", mode)
		}
	}

	if err := s.pvs.PutWait(pv.CamNumImages, numImages); err != nil {
		return pkgerrors.Wrap(err, "failed to set image count")
	}

	return nil
}
