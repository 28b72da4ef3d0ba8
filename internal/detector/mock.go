package detector

import (
	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	face *FaceLandmarks
	err  error
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetFace sets the face that will be returned by Detect.
func (m *MockDetector) SetFace(face *FaceLandmarks) {
	m.face = face
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.err = err
}

// Detect returns the pre-configured face or error.
func (m *MockDetector) Detect(frame *gocv.Mat) (*FaceLandmarks, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.face, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// FaceWithSpan returns a synthetic face whose outer eye corners sit span
// apart in normalized coordinates, with open lids, level head, and a
// centered gaze. Larger spans read as closer to the camera.
func FaceWithSpan(span float64) *FaceLandmarks {
	return syntheticFace(span, 0.30, 0)
}

// NearFace returns a face close to the camera (span 0.12, roughly 33 cm
// with the default calibration constant).
func NearFace() *FaceLandmarks {
	return FaceWithSpan(0.12)
}

// FarFace returns a face at a comfortable distance (span 0.05, roughly
// 80 cm with the default calibration constant).
func FarFace() *FaceLandmarks {
	return FaceWithSpan(0.05)
}

// ClosedEyesFace returns a face with the lids nearly shut, reading as a
// blink (eye aspect ratio ~0.05).
func ClosedEyesFace() *FaceLandmarks {
	return syntheticFace(0.05, 0.05, 0)
}

// LookingRightFace returns a face whose gaze classifies as right.
func LookingRightFace() *FaceLandmarks {
	return syntheticFace(0.05, 0.30, -0.1)
}

// LookingLeftFace returns a face whose gaze classifies as left.
func LookingLeftFace() *FaceLandmarks {
	return syntheticFace(0.05, 0.30, 0.1)
}

// syntheticFace builds a minimal face mesh: eyes centered on (0.5, 0.45)
// with the requested interocular span, lid openings producing the requested
// eye aspect ratio, and the nose tip shifted by noseOffset*span to steer
// the gaze classification.
func syntheticFace(span, ear, noseOffset float64) *FaceLandmarks {
	points := make([]Point3D, NumLandmarks)
	for i := range points {
		points[i] = Point3D{X: 0.5, Y: 0.5, Z: 0}
	}

	const eyeY = 0.45
	centerX := 0.5

	// Eye width is a third of the span; lid half-opening derives from the
	// target aspect ratio: ear = 6h/span.
	halfLid := ear * span / 6.0

	// x0 and x3 are the ring's first and fourth corner; for the left eye
	// that is outer/inner, for the right eye inner/outer.
	place := func(ring [6]int, x0, x3 float64) {
		eyeCenterX := (x0 + x3) / 2
		points[ring[0]] = Point3D{X: x0, Y: eyeY}
		points[ring[3]] = Point3D{X: x3, Y: eyeY}
		points[ring[1]] = Point3D{X: eyeCenterX, Y: eyeY - halfLid}
		points[ring[2]] = Point3D{X: eyeCenterX, Y: eyeY - halfLid}
		points[ring[4]] = Point3D{X: eyeCenterX, Y: eyeY + halfLid}
		points[ring[5]] = Point3D{X: eyeCenterX, Y: eyeY + halfLid}
	}

	place(LeftEyeRing, centerX-span/2, centerX-span/6)
	place(RightEyeRing, centerX+span/6, centerX+span/2)

	points[NoseTip] = Point3D{X: centerX + noseOffset*span, Y: 0.55}

	return &FaceLandmarks{
		Points: points,
		Score:  0.95,
	}
}
