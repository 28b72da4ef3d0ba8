package health

import (
	"math"

	"github.com/ayusman/safewarner/internal/detector"
)

// Posture is the result of one posture check.
type Posture struct {
	TiltDegrees float64 `json:"tilt_degrees"`
	Tilted      bool    `json:"tilted"`
}

// PostureChecker flags head tilt from face landmarks. Tilt is the roll of
// the line between the outer eye corners; slouch detection would need a
// pose landmark source and is out of scope for the face mesh.
type PostureChecker struct {
	tiltThreshold float64
}

// NewPostureChecker creates a PostureChecker. tiltThresholdDegrees is the
// absolute roll angle beyond which the head counts as tilted.
func NewPostureChecker(tiltThresholdDegrees float64) *PostureChecker {
	return &PostureChecker{tiltThreshold: tiltThresholdDegrees}
}

// Check evaluates one face. The second return is false when the landmarks
// are unusable.
func (p *PostureChecker) Check(face *detector.FaceLandmarks) (Posture, bool) {
	if !face.Valid() {
		return Posture{}, false
	}

	tilt := face.TiltAngle()
	return Posture{
		TiltDegrees: tilt,
		Tilted:      math.Abs(tilt) > p.tiltThreshold,
	}, true
}
