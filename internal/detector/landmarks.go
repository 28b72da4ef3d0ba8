// Package detector provides face landmark detection interfaces and types
// for health monitoring.
package detector

import "math"

// Face mesh landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/face_landmarker
const (
	NoseTip       = 1
	LeftEyeOuter  = 33
	LeftEyeInner  = 133
	RightEyeInner = 362
	RightEyeOuter = 263
	NumLandmarks  = 478
)

// Eye ring indices used for the eye aspect ratio. Each ring is ordered
// outer corner, two upper lid points, inner corner, two lower lid points.
var (
	LeftEyeRing  = [6]int{33, 160, 158, 133, 153, 144}
	RightEyeRing = [6]int{362, 385, 387, 263, 373, 380}
)

// Gaze directions returned by GazeDirection.
const (
	GazeLeft   = "left"
	GazeRight  = "right"
	GazeCenter = "center"
)

// Point3D represents a 3D point in normalized image coordinates.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// FaceLandmarks represents the face mesh landmarks detected by MediaPipe.
type FaceLandmarks struct {
	Points []Point3D `json:"points"`
	Score  float64   `json:"score"`
}

// distance2D calculates the Euclidean distance between two points in the
// image plane, ignoring depth.
func distance2D(a, b Point3D) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Valid reports whether the landmark set covers the indices the geometry
// helpers rely on.
func (f *FaceLandmarks) Valid() bool {
	return f != nil && len(f.Points) > RightEyeRing[2]
}

// InterocularSpan returns the normalized distance between the outer eye
// corners. Larger spans mean the face fills more of the frame, i.e. the
// user is closer to the camera.
func (f *FaceLandmarks) InterocularSpan() float64 {
	if !f.Valid() {
		return 0
	}
	return distance2D(f.Points[LeftEyeOuter], f.Points[RightEyeOuter])
}

// EyeAspectRatio returns the averaged eye aspect ratio of both eyes.
// Values below ~0.2 indicate closed lids and are counted as blinks.
func (f *FaceLandmarks) EyeAspectRatio() float64 {
	if !f.Valid() {
		return 0
	}
	return (f.ringAspect(LeftEyeRing) + f.ringAspect(RightEyeRing)) / 2.0
}

func (f *FaceLandmarks) ringAspect(ring [6]int) float64 {
	p := f.Points
	vertical1 := distance2D(p[ring[1]], p[ring[5]])
	vertical2 := distance2D(p[ring[2]], p[ring[4]])
	horizontal := distance2D(p[ring[0]], p[ring[3]])
	if horizontal == 0 {
		return 0
	}
	return (vertical1 + vertical2) / (2.0 * horizontal)
}

// GazeDirection classifies where the user is looking based on the eye
// centers relative to the nose tip. threshold is the normalized offset
// beyond which the gaze counts as left or right.
func (f *FaceLandmarks) GazeDirection(threshold float64) string {
	if !f.Valid() {
		return GazeCenter
	}

	p := f.Points
	leftCenterX := (p[LeftEyeInner].X + p[LeftEyeOuter].X) / 2
	rightCenterX := (p[RightEyeInner].X + p[RightEyeOuter].X) / 2

	leftWidth := math.Abs(p[LeftEyeOuter].X - p[LeftEyeInner].X)
	rightWidth := math.Abs(p[RightEyeOuter].X - p[RightEyeInner].X)
	if leftWidth == 0 || rightWidth == 0 {
		return GazeCenter
	}

	nose := p[NoseTip]
	leftRel := (leftCenterX - nose.X) / leftWidth
	rightRel := (rightCenterX - nose.X) / rightWidth
	gaze := (leftRel + rightRel) / 2

	switch {
	case gaze > threshold:
		return GazeRight
	case gaze < -threshold:
		return GazeLeft
	default:
		return GazeCenter
	}
}

// TiltAngle returns the head roll angle in degrees, computed from the line
// between the outer eye corners. 0 means the head is level.
func (f *FaceLandmarks) TiltAngle() float64 {
	if !f.Valid() {
		return 0
	}
	left := f.Points[LeftEyeOuter]
	right := f.Points[RightEyeOuter]
	return math.Atan2(right.Y-left.Y, right.X-left.X) * 180 / math.Pi
}
