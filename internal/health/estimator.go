// Package health turns landmark observations into wellness signals:
// viewing distance verdicts, blink rate, posture, and the guided eye
// exercise.
package health

import (
	"github.com/ayusman/safewarner/internal/capture"
)

// Verdict is the distance estimate derived from one observation.
type Verdict struct {
	DistanceCm float64 `json:"distance_cm"`
	Safe       bool    `json:"safe"`
	Confidence float64 `json:"confidence"`
}

// Estimator converts observations into distance verdicts. The safe flag
// only flips after a run of consecutive contrary observations (the
// hysteresis window), so single-frame noise never flickers the state.
type Estimator struct {
	calibrationCm  float64
	safeDistanceCm float64
	hysteresis     int

	last     Verdict
	haveLast bool
	contrary int
}

// NewEstimator creates an Estimator. calibrationCm converts the normalized
// interocular span into centimeters; safeDistanceCm is the minimum
// comfortable distance; hysteresisFrames is the number of consecutive
// contrary observations required to flip the verdict.
func NewEstimator(calibrationCm, safeDistanceCm float64, hysteresisFrames int) *Estimator {
	if hysteresisFrames < 1 {
		hysteresisFrames = 1
	}
	return &Estimator{
		calibrationCm:  calibrationCm,
		safeDistanceCm: safeDistanceCm,
		hysteresis:     hysteresisFrames,
	}
}

// Evaluate derives a verdict from one observation. Invalid frames and
// frames without a usable face carry the last verdict forward with zero
// confidence instead of flipping state.
func (e *Estimator) Evaluate(obs capture.Observation) Verdict {
	if !obs.FrameValid || !obs.Face.Valid() {
		v := e.last
		v.Confidence = 0
		return v
	}

	span := obs.Face.InterocularSpan()
	if span <= 0 {
		v := e.last
		v.Confidence = 0
		return v
	}

	dist := e.calibrationCm / span
	rawSafe := dist >= e.safeDistanceCm

	if !e.haveLast {
		e.last = Verdict{DistanceCm: dist, Safe: rawSafe, Confidence: obs.Face.Score}
		e.haveLast = true
		e.contrary = 0
		return e.last
	}

	if rawSafe == e.last.Safe {
		e.contrary = 0
	} else {
		e.contrary++
		if e.contrary >= e.hysteresis {
			e.last.Safe = rawSafe
			e.contrary = 0
		}
	}

	e.last.DistanceCm = dist
	e.last.Confidence = obs.Face.Score
	return e.last
}

// Reset clears the rolling state, forcing the next valid observation to
// set the verdict directly.
func (e *Estimator) Reset() {
	e.last = Verdict{}
	e.haveLast = false
	e.contrary = 0
}
