package pv

import (
	"time"
)

// Detector emulates an area detector camera, its file plugin, and a
// rotation stage on top of a Sim connection. It implements just enough
// of the device protocol for the scan engine: batch acquisition in
// Internal trigger mode, one frame per software trigger in Software
// mode, and capture counting in the file plugin.
type Detector struct {
	sim *Sim

	// FrameDelay is the simulated time to produce one frame. Zero
	// means frames appear synchronously with the commanding write.
	FrameDelay time.Duration
}

// NewDetector attaches detector emulation hooks to the given Sim.
func NewDetector(sim *Sim) *Detector {
	d := &Detector{sim: sim}

	sim.OnPut(CamAcquire, d.onAcquire)
	sim.OnPut(CamTriggerSoftware, d.onSoftwareTrigger)
	sim.OnPut(FPCapture, d.onCapture)

	return d
}

// Defaults returns prefill values describing an idle simulated
// instrument with typical scan parameters.
func Defaults() map[string]any {
	return map[string]any{
		RotationStart:     0.0,
		RotationStop:      180.0,
		RotationStep:      0.25,
		NumDarkFields:     10,
		DarkFieldMode:     "Both",
		NumFlatFields:     10,
		FlatFieldMode:     "Both",
		PostScanEnable:    0,
		PostScanStep:      1.0,
		NumPostScan:       0,
		StabilizationTime: 0.0,
		InterlacedScan:    0,
		InterlacedFile:    "",

		Rotation: 0.0,

		CamManufacturer:     "Simulated Detector Works",
		CamModel:            "SDW-2048",
		CamExposureTime:     0.1,
		CamADCSpeed:         1,
		CamSizeX:            2048,
		CamSizeY:            2048,
		CamImageMode:        "Continuous",
		CamTriggerMode:      "Internal",
		CamNumImages:        1,
		CamNumImagesCounter: 0,
		CamAcquire:          "Done",
		CamAcquireBusy:      0,
		CamTriggerSoftware:  0,
		FrameType:           0,

		FPNumCapture:   0,
		FPNumCaptured:  0,
		FPCapture:      "Done",
		FPFullFileName: "/data/scan.h5",
		FPFileExists:   0,

		ScanStatus:      "",
		ScanRunning:     0,
		StartScan:       0,
		ImagesCollected: 0,
		ImagesSaved:     0,
		ElapsedTime:     0.0,
		RemainingTime:   0.0,
	}
}

func (d *Detector) onAcquire(value any) {
	if !isCommand(value, "Acquire") {
		// Stop request. Idle the camera.
		d.sim.Set(CamAcquireBusy, 0)
		return
	}

	d.sim.Set(CamNumImagesCounter, 0)
	d.sim.Set(CamAcquireBusy, 1)

	mode, _ := d.sim.Get(CamTriggerMode)
	imageMode, _ := d.sim.Get(CamImageMode)

	if mode == "Software" {
		// Stay armed. Frames arrive per software trigger.
		return
	}
	if imageMode == "Continuous" {
		// Live view. No frames are counted or captured.
		return
	}

	// Internal trigger batch: produce the requested images.
	n := d.intValue(CamNumImages)
	if d.FrameDelay == 0 {
		for i := 0; i < n; i++ {
			d.produceFrame(i + 1)
		}
		d.stopAcquire()
		return
	}

	go func() {
		for i := 0; i < n; i++ {
			time.Sleep(d.FrameDelay)
			if d.intValue(CamAcquireBusy) == 0 {
				return
			}
			d.produceFrame(i + 1)
		}
		d.stopAcquire()
	}()
}

func (d *Detector) onSoftwareTrigger(value any) {
	if d.intValue(CamAcquireBusy) == 0 {
		return
	}

	mode, _ := d.sim.Get(CamTriggerMode)
	if mode != "Software" {
		return
	}

	fire := func() {
		k := d.intValue(CamNumImagesCounter) + 1
		d.produceFrame(k)
		if k >= d.intValue(CamNumImages) {
			d.stopAcquire()
		}
	}

	if d.FrameDelay == 0 {
		fire()
		return
	}
	go func() {
		time.Sleep(d.FrameDelay)
		if d.intValue(CamAcquireBusy) == 0 {
			return
		}
		fire()
	}()
}

func (d *Detector) onCapture(value any) {
	if isCommand(value, "Capture") {
		d.sim.Set(FPNumCaptured, 0)
		return
	}
	d.sim.Set(FPCapture, "Done")
}

func (d *Detector) produceFrame(k int) {
	d.sim.Set(CamNumImagesCounter, k)

	if v, _ := d.sim.Get(FPCapture); isCommand(v, "Capture") {
		captured := d.intValue(FPNumCaptured) + 1
		d.sim.Set(FPNumCaptured, captured)
		if captured >= d.intValue(FPNumCapture) {
			d.sim.Set(FPCapture, "Done")
		}
	}
}

func (d *Detector) stopAcquire() {
	d.sim.Set(CamAcquire, "Done")
	d.sim.Set(CamAcquireBusy, 0)
}

func (d *Detector) intValue(name string) int {
	v, err := d.sim.Get(name)
	if err != nil {
		return 0
	}
	n, ok := toFloat(v)
	if !ok {
		return 0
	}
	return int(n)
}

// isCommand reports whether a write value means the named command,
// accepting both the string form and the numeric record value 1.
func isCommand(v any, name string) bool {
	if s, ok := v.(string); ok {
		return s == name
	}
	if n, ok := toFloat(v); ok {
		return n == 1
	}
	return false
}
