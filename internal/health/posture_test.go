package health

import (
	"math"
	"testing"

	"github.com/ayusman/safewarner/internal/detector"
)

// tiltedFace rotates a level synthetic face by the given angle around the
// frame center.
func tiltedFace(degrees float64) *detector.FaceLandmarks {
	face := detector.FaceWithSpan(0.10)
	rad := degrees * math.Pi / 180

	for i, p := range face.Points {
		dx := p.X - 0.5
		dy := p.Y - 0.5
		face.Points[i].X = 0.5 + dx*math.Cos(rad) - dy*math.Sin(rad)
		face.Points[i].Y = 0.5 + dx*math.Sin(rad) + dy*math.Cos(rad)
	}
	return face
}

func TestPostureChecker_LevelHead(t *testing.T) {
	p := NewPostureChecker(15.0)

	posture, ok := p.Check(detector.FaceWithSpan(0.10))
	if !ok {
		t.Fatal("expected a usable posture")
	}
	if posture.Tilted {
		t.Errorf("level head flagged as tilted (%.2f degrees)", posture.TiltDegrees)
	}
}

func TestPostureChecker_TiltThreshold(t *testing.T) {
	p := NewPostureChecker(15.0)

	tests := []struct {
		name       string
		degrees    float64
		wantTilted bool
	}{
		{"slight lean", 5, false},
		{"near the threshold", 14, false},
		{"clearly tilted", 25, true},
		{"tilted the other way", -25, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			posture, ok := p.Check(tiltedFace(tt.degrees))
			if !ok {
				t.Fatal("expected a usable posture")
			}
			if posture.Tilted != tt.wantTilted {
				t.Errorf("tilt %.0f: want tilted=%v, got %v (measured %.2f)",
					tt.degrees, tt.wantTilted, posture.Tilted, posture.TiltDegrees)
			}
		})
	}
}

func TestPostureChecker_NilFace(t *testing.T) {
	p := NewPostureChecker(15.0)

	if _, ok := p.Check(nil); ok {
		t.Error("nil face should not produce a posture")
	}
}
