package pv

import "testing"

func newTestDetector(t *testing.T, overrides map[string]any) *Sim {
	t.Helper()

	vals := Defaults()
	for name, value := range overrides {
		vals[name] = value
	}
	s := NewSim(vals)
	NewDetector(s)

	return s
}

func getInt(t *testing.T, s *Sim, name string) int {
	t.Helper()

	v, err := s.Get(name)
	if err != nil {
		t.Fatalf("Get(%s) error = %v", name, err)
	}
	f, ok := toFloat(v)
	if !ok {
		t.Fatalf("Get(%s) = %#v, want numeric", name, v)
	}
	return int(f)
}

func getString(t *testing.T, s *Sim, name string) string {
	t.Helper()

	v, err := s.Get(name)
	if err != nil {
		t.Fatalf("Get(%s) error = %v", name, err)
	}
	str, ok := v.(string)
	if !ok {
		t.Fatalf("Get(%s) = %#v, want string", name, v)
	}
	return str
}

func TestDetectorInternalBatch(t *testing.T) {
	s := newTestDetector(t, map[string]any{
		CamImageMode:   "Multiple",
		CamTriggerMode: "Internal",
		CamNumImages:   4,
		FPNumCapture:   4,
	})

	if err := s.Put(FPCapture, "Capture"); err != nil {
		t.Fatalf("Put(FPCapture) error = %v", err)
	}
	if err := s.Put(CamAcquire, "Acquire"); err != nil {
		t.Fatalf("Put(CamAcquire) error = %v", err)
	}

	if got := getInt(t, s, CamNumImagesCounter); got != 4 {
		t.Errorf("image counter = %d, want 4", got)
	}
	if got := getInt(t, s, CamAcquireBusy); got != 0 {
		t.Errorf("acquire busy = %d, want 0", got)
	}
	if got := getInt(t, s, FPNumCaptured); got != 4 {
		t.Errorf("captured = %d, want 4", got)
	}
	if got := getString(t, s, FPCapture); got != "Done" {
		t.Errorf("capture state = %q, want Done", got)
	}
}

func TestDetectorSoftwareTriggers(t *testing.T) {
	s := newTestDetector(t, map[string]any{
		CamImageMode:   "Multiple",
		CamTriggerMode: "Software",
		CamNumImages:   3,
	})

	if err := s.Put(CamAcquire, "Acquire"); err != nil {
		t.Fatalf("Put(CamAcquire) error = %v", err)
	}
	if got := getInt(t, s, CamAcquireBusy); got != 1 {
		t.Fatalf("acquire busy = %d, want 1 after arming", got)
	}
	if got := getInt(t, s, CamNumImagesCounter); got != 0 {
		t.Fatalf("image counter = %d, want 0 after arming", got)
	}

	for k := 1; k <= 3; k++ {
		if err := s.Put(CamTriggerSoftware, 1); err != nil {
			t.Fatalf("Put(CamTriggerSoftware) error = %v", err)
		}
		if got := getInt(t, s, CamNumImagesCounter); got != k {
			t.Errorf("image counter after trigger %d = %d, want %d", k, got, k)
		}
	}

	// The batch is complete, so the camera idles itself.
	if got := getInt(t, s, CamAcquireBusy); got != 0 {
		t.Errorf("acquire busy = %d, want 0 after last frame", got)
	}

	// Further triggers are ignored.
	if err := s.Put(CamTriggerSoftware, 1); err != nil {
		t.Fatalf("Put(CamTriggerSoftware) error = %v", err)
	}
	if got := getInt(t, s, CamNumImagesCounter); got != 3 {
		t.Errorf("image counter = %d, want 3 after idle trigger", got)
	}
}

func TestDetectorContinuousLiveView(t *testing.T) {
	s := newTestDetector(t, map[string]any{
		CamImageMode:   "Continuous",
		CamTriggerMode: "Internal",
	})

	if err := s.Put(CamAcquire, "Acquire"); err != nil {
		t.Fatalf("Put(CamAcquire) error = %v", err)
	}

	// Live view asserts busy but produces no counted frames.
	if got := getInt(t, s, CamAcquireBusy); got != 1 {
		t.Errorf("acquire busy = %d, want 1", got)
	}
	if got := getInt(t, s, CamNumImagesCounter); got != 0 {
		t.Errorf("image counter = %d, want 0", got)
	}

	if err := s.Put(CamAcquire, "Done"); err != nil {
		t.Fatalf("Put(CamAcquire) error = %v", err)
	}
	if got := getInt(t, s, CamAcquireBusy); got != 0 {
		t.Errorf("acquire busy = %d, want 0 after stop", got)
	}
}

func TestDetectorCaptureCounting(t *testing.T) {
	s := newTestDetector(t, map[string]any{
		CamImageMode:   "Multiple",
		CamTriggerMode: "Software",
		CamNumImages:   10,
		FPNumCapture:   2,
	})

	// Frames before capture starts are not counted.
	if err := s.Put(CamAcquire, "Acquire"); err != nil {
		t.Fatalf("Put(CamAcquire) error = %v", err)
	}
	if err := s.Put(CamTriggerSoftware, 1); err != nil {
		t.Fatalf("Put(CamTriggerSoftware) error = %v", err)
	}
	if got := getInt(t, s, FPNumCaptured); got != 0 {
		t.Errorf("captured = %d, want 0 before capture", got)
	}

	if err := s.Put(FPCapture, "Capture"); err != nil {
		t.Fatalf("Put(FPCapture) error = %v", err)
	}
	if err := s.Put(CamTriggerSoftware, 1); err != nil {
		t.Fatalf("Put(CamTriggerSoftware) error = %v", err)
	}
	if err := s.Put(CamTriggerSoftware, 1); err != nil {
		t.Fatalf("Put(CamTriggerSoftware) error = %v", err)
	}

	// The file plugin stops itself once the armed count is reached.
	if got := getInt(t, s, FPNumCaptured); got != 2 {
		t.Errorf("captured = %d, want 2", got)
	}
	if got := getString(t, s, FPCapture); got != "Done" {
		t.Errorf("capture state = %q, want Done", got)
	}
}

func TestDetectorTriggerIgnoredWhenIdle(t *testing.T) {
	s := newTestDetector(t, nil)

	if err := s.Put(CamTriggerSoftware, 1); err != nil {
		t.Fatalf("Put(CamTriggerSoftware) error = %v", err)
	}
	if got := getInt(t, s, CamNumImagesCounter); got != 0 {
		t.Errorf("image counter = %d, want 0", got)
	}
}
