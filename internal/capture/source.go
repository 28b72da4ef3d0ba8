package capture

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ayusman/safewarner/internal/detector"
)

// Source failure conditions.
var (
	// ErrDeviceUnavailable is returned by Start when the camera device
	// cannot be opened.
	ErrDeviceUnavailable = errors.New("camera device unavailable")

	// ErrCameraLost is returned by Next after too many consecutive read
	// failures on an open device.
	ErrCameraLost = errors.New("camera lost")

	// ErrSourceStopped is returned by Next after the source has stopped.
	ErrSourceStopped = errors.New("landmark source stopped")
)

// Observation is one per-frame geometric observation. Face is nil when the
// frame contained no detectable face; FrameValid is false when the frame
// itself could not be captured or decoded.
type Observation struct {
	Timestamp  time.Time
	Face       *detector.FaceLandmarks
	FrameValid bool
}

// ObservationSource produces per-frame observations. Implementations own
// the underlying device for their whole lifetime: Start acquires it, Stop
// releases it, and release is guaranteed on every exit path.
type ObservationSource interface {
	Start() error
	Next(timeout time.Duration) (Observation, error)
	Stop()
}

// Source reads frames from a camera, runs landmark detection on them in a
// dedicated goroutine, and hands the latest observation to Next. Only the
// newest unconsumed observation is kept; stale frames are dropped.
type Source struct {
	camera      Camera
	det         detector.Detector
	interval    time.Duration
	maxFailures int

	obsCh  chan Observation
	errCh  chan error
	stopCh chan struct{}
	done   chan struct{}

	stopOnce sync.Once
}

// NewSource creates a Source reading at the given frame rate. maxFailures
// is the number of consecutive failed reads before the source escalates to
// ErrCameraLost.
func NewSource(camera Camera, det detector.Detector, fps, maxFailures int) *Source {
	if fps <= 0 {
		fps = 5
	}
	return &Source{
		camera:      camera,
		det:         det,
		interval:    time.Second / time.Duration(fps),
		maxFailures: maxFailures,
		obsCh:       make(chan Observation, 1),
		errCh:       make(chan error, 1),
		stopCh:      make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Start opens the camera and begins reading frames. If the device cannot
// be opened it returns ErrDeviceUnavailable and acquires nothing.
func (s *Source) Start() error {
	if err := s.camera.Open(); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	go s.run()
	return nil
}

// Stop signals the reader goroutine and blocks until the camera device has
// been released.
func (s *Source) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	<-s.done
}

// Next returns the next observation, waiting at most timeout. A timeout
// with no frame yields an invalid observation rather than an error, so the
// caller treats it as a skipped frame. Fatal conditions surface as
// ErrCameraLost; a stopped source returns ErrSourceStopped.
func (s *Source) Next(timeout time.Duration) (Observation, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case obs := <-s.obsCh:
		return obs, nil
	case err := <-s.errCh:
		return Observation{}, err
	case <-s.done:
		// A fatal error may have been queued just before shutdown.
		select {
		case err := <-s.errCh:
			return Observation{}, err
		default:
		}
		return Observation{}, ErrSourceStopped
	case <-timer.C:
		return Observation{Timestamp: time.Now(), FrameValid: false}, nil
	}
}

// run is the reader loop. The camera handle is released on every exit path
// before done is closed, so Stop can rely on the device being free.
func (s *Source) run() {
	defer close(s.done)
	defer s.camera.Close()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	failures := 0

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			frame, err := s.camera.ReadFrame()
			if err != nil {
				failures++
				if failures >= s.maxFailures {
					s.errCh <- ErrCameraLost
					return
				}
				// Transient: skip the frame, keep the stream alive.
				s.offer(Observation{Timestamp: time.Now(), FrameValid: false})
				continue
			}
			failures = 0

			face, derr := s.det.Detect(frame)
			frame.Close()
			if derr != nil {
				// Detector hiccups are frame-local, never fatal.
				s.offer(Observation{Timestamp: time.Now(), FrameValid: false})
				continue
			}

			s.offer(Observation{
				Timestamp:  time.Now(),
				Face:       face,
				FrameValid: true,
			})
		}
	}
}

// offer places an observation in the hand-off channel, displacing a stale
// one if the consumer has fallen behind.
func (s *Source) offer(obs Observation) {
	for {
		select {
		case s.obsCh <- obs:
			return
		default:
			select {
			case <-s.obsCh:
			default:
			}
		}
	}
}
