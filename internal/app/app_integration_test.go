package app

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/ayusman/mudra/internal/calibration"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/processor"
)

func TestApp_Pipeline_CalibratesFromCamera(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	cfg := testConfig()
	cfg.Calibration.StabilityRequiredMs = 300
	st := newTestStore(t)
	a, det := newTestApp(t, cfg, st)
	det.SetHands([]detector.HandFrame{leftHand(), rightHand()})

	var events atomic.Int64
	a.Subscribe(func(processor.Event) { events.Add(1) })

	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer a.Stop()

	// Starting twice is a no-op.
	if err := a.Start(); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	if !a.IsRunning() {
		t.Fatal("app should be running")
	}

	deadline := time.Now().Add(5 * time.Second)
	for a.Status().Calibration.State != calibration.Locked {
		if time.Now().After(deadline) {
			t.Fatalf("calibration did not lock, status = %+v", a.Status())
		}
		time.Sleep(20 * time.Millisecond)
	}

	if events.Load() == 0 {
		t.Error("expected processed events while calibrating")
	}
	if !a.Status().SignatureLocked {
		t.Error("signatures should be locked")
	}
	if _, err := st.Calibrations().Latest(); err != nil {
		t.Errorf("calibration should be persisted: %v", err)
	}
}

func TestApp_Pipeline_Disabled(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	a, det := newTestApp(t, testConfig(), nil)
	det.SetHands([]detector.HandFrame{rightHand()})
	a.SetEnabled(false)

	var events atomic.Int64
	a.Subscribe(func(processor.Event) { events.Add(1) })

	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer a.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for a.Tracker().Frames() < 5 {
		if time.Now().After(deadline) {
			t.Fatal("tracker produced no frames")
		}
		time.Sleep(20 * time.Millisecond)
	}

	if n := events.Load(); n != 0 {
		t.Errorf("disabled app emitted %d events", n)
	}
	if got := a.Status().Calibration.State; got != calibration.AwaitingGestures {
		t.Errorf("disabled app should not calibrate, state = %s", got)
	}
}

func TestApp_StartStop(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	a, _ := newTestApp(t, testConfig(), nil)

	// Stop before Start is a no-op.
	a.Stop()

	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for !a.Camera().IsOpen() {
		if time.Now().After(deadline) {
			t.Fatal("camera was not opened")
		}
		time.Sleep(5 * time.Millisecond)
	}

	a.Stop()
	if a.IsRunning() {
		t.Error("app should not be running after Stop")
	}
	if a.Camera().IsOpen() {
		t.Error("camera should be closed after Stop")
	}

	// Restart after Stop.
	if err := a.Start(); err != nil {
		t.Fatalf("restart error = %v", err)
	}
	a.Stop()
}
