package gesture

import (
	"math"

	"github.com/ayusman/mudra/internal/detector"
)

// PoseResult is the outcome of scoring canned poses against one hand.
// Available is false when the hand could not be scored at all; that is a
// routine outcome, not an error.
type PoseResult struct {
	Available bool
	Scores    map[Gesture]float64
}

// Unavailable is the result for a hand that could not be scored.
var Unavailable = PoseResult{}

// Score returns the confidence for pose and whether it was scored.
func (r PoseResult) Score(pose Gesture) (float64, bool) {
	if !r.Available {
		return 0, false
	}
	s, ok := r.Scores[pose]
	return s, ok
}

// PoseEstimator scores every canned pose with a graded confidence in [0,1],
// unlike Classifier which commits to a single gesture.
type PoseEstimator struct {
	thresholds Thresholds
}

// NewPoseEstimator creates an estimator using t to grade curl and pinch.
func NewPoseEstimator(t Thresholds) *PoseEstimator {
	return &PoseEstimator{thresholds: t}
}

// Score grades each pose for the given landmarks.
func (e *PoseEstimator) Score(landmarks []detector.Point3D) PoseResult {
	f, err := Measure(landmarks)
	if err != nil {
		return Unavailable
	}

	var ext [4]float64
	for i, c := range f.Curl {
		ext[i] = e.extension(c)
	}
	others := (3 - ext[1] - ext[2] - ext[3]) / 3
	all := (ext[0] + ext[1] + ext[2] + ext[3]) / 4

	pinch := clamp01(1 - f.PinchDist/(2*e.thresholds.Pinch))
	spread := clamp01(f.PinchDist / e.thresholds.ThumbSpread)

	return PoseResult{
		Available: true,
		Scores: map[Gesture]float64{
			Point: ext[0] * others,
			Pinch: pinch,
			Fist:  1 - all,
			Palm:  all * spread,
		},
	}
}

// extension grades one finger from 0 (curled to the fist threshold) to 1
// (at or past the extension threshold).
func (e *PoseEstimator) extension(curl float64) float64 {
	span := e.thresholds.Extension - e.thresholds.Fist
	if span <= 0 {
		if curl >= e.thresholds.Extension {
			return 1
		}
		return 0
	}
	return clamp01((curl - e.thresholds.Fist) / span)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
