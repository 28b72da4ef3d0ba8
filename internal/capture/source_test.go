package capture

import (
	"errors"
	"testing"
	"time"

	"github.com/ayusman/safewarner/internal/detector"
	"gocv.io/x/gocv"
)

func testFrame(t *testing.T) *gocv.Mat {
	t.Helper()
	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { frame.Close() })
	return &frame
}

func TestSource_ProducesObservations(t *testing.T) {
	cam := NewMockCamera([]*gocv.Mat{testFrame(t)}, true)
	det := detector.NewMockDetector()
	det.SetFace(detector.FarFace())

	src := NewSource(cam, det, 50, 5)
	if err := src.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer src.Stop()

	obs, err := src.Next(time.Second)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if !obs.FrameValid {
		t.Error("expected a valid frame")
	}
	if !obs.Face.Valid() {
		t.Error("expected a usable face")
	}
}

func TestSource_DeviceUnavailable(t *testing.T) {
	cam := NewMockCamera(nil, false)
	cam.SetOpenError(errors.New("device busy"))

	src := NewSource(cam, detector.NewMockDetector(), 50, 5)
	err := src.Start()
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable, got %v", err)
	}
	if cam.IsOpen() {
		t.Error("camera left open after a failed start")
	}
}

func TestSource_NoFaceIsValidObservation(t *testing.T) {
	cam := NewMockCamera([]*gocv.Mat{testFrame(t)}, true)
	det := detector.NewMockDetector()
	// Detector returns no face and no error: empty room.

	src := NewSource(cam, det, 50, 5)
	if err := src.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer src.Stop()

	obs, err := src.Next(time.Second)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if !obs.FrameValid {
		t.Error("a frame without a face should still be valid")
	}
	if obs.Face.Valid() {
		t.Error("expected no usable face")
	}
}

func TestSource_DetectorErrorIsFrameLocal(t *testing.T) {
	cam := NewMockCamera([]*gocv.Mat{testFrame(t)}, true)
	det := detector.NewMockDetector()
	det.SetError(errors.New("subprocess hiccup"))

	src := NewSource(cam, det, 50, 3)
	if err := src.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer src.Stop()

	// Detector failures produce invalid observations, never a fatal error,
	// no matter how many in a row.
	for i := 0; i < 10; i++ {
		obs, err := src.Next(time.Second)
		if err != nil {
			t.Fatalf("Next() escalated a detector error: %v", err)
		}
		if obs.FrameValid {
			t.Fatal("detector error produced a valid observation")
		}
	}
}

func TestSource_ReadFailuresEscalateToCameraLost(t *testing.T) {
	cam := NewMockCamera([]*gocv.Mat{testFrame(t)}, true)
	cam.FailAfter(2)

	src := NewSource(cam, detector.NewMockDetector(), 50, 3)
	if err := src.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer src.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for {
		_, err := src.Next(200 * time.Millisecond)
		if errors.Is(err, ErrCameraLost) {
			break
		}
		if err != nil && !errors.Is(err, ErrSourceStopped) {
			t.Fatalf("unexpected error: %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatal("read failures never escalated to ErrCameraLost")
		}
	}

	// The reader released the device on its way out.
	if cam.IsOpen() {
		t.Error("camera left open after a fatal error")
	}
}

func TestSource_StopReleasesCamera(t *testing.T) {
	cam := NewMockCamera([]*gocv.Mat{testFrame(t)}, true)

	src := NewSource(cam, detector.NewMockDetector(), 50, 5)
	if err := src.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !cam.IsOpen() {
		t.Fatal("camera not open after Start")
	}

	src.Stop()
	if cam.IsOpen() {
		t.Error("camera still open after Stop")
	}

	// Stop is idempotent.
	src.Stop()

	// A stale observation may still sit in the hand-off buffer; after it
	// drains, the source reports stopped.
	for i := 0; ; i++ {
		_, err := src.Next(10 * time.Millisecond)
		if errors.Is(err, ErrSourceStopped) {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error after Stop: %v", err)
		}
		if i > 2 {
			t.Fatal("Next never reported ErrSourceStopped")
		}
	}
}

func TestSource_NextTimeoutYieldsInvalidObservation(t *testing.T) {
	// A source that was never started produces nothing; Next times out
	// with a skipped frame instead of an error.
	src := NewSource(NewMockCamera(nil, false), detector.NewMockDetector(), 50, 5)

	obs, err := src.Next(20 * time.Millisecond)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if obs.FrameValid {
		t.Error("timeout produced a valid observation")
	}
}
