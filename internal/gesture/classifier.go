// Package gesture classifies hand poses from landmark geometry.
package gesture

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/ayusman/mudra/internal/detector"
)

// Gesture is a discrete hand pose.
type Gesture string

const (
	// Point is the default aiming pose.
	Point Gesture = "point"
	// Pinch is the thumb tip held against the index tip.
	Pinch Gesture = "pinch"
	// Fist is all four fingers curled into the palm.
	Fist Gesture = "fist"
	// Palm is every finger extended with the thumb spread.
	Palm Gesture = "palm"
)

// Neutral is reported when no hand contributes a gesture.
const Neutral = Point

// scaleEpsilon floors the hand scale so degenerate hands do not divide by zero.
const scaleEpsilon = 1e-6

// fingertips are the four non-thumb fingertips in index-to-pinky order.
var fingertips = [4]int{detector.IndexTip, detector.MiddleTip, detector.RingTip, detector.PinkyTip}

// Thresholds holds the normalized distances that separate gestures. All
// values are fractions of the hand's bounding-box diagonal.
type Thresholds struct {
	Pinch       float64 `json:"pinch"`
	Fist        float64 `json:"fist"`
	Extension   float64 `json:"extension"`
	ThumbSpread float64 `json:"thumb_spread"`
}

// DefaultThresholds returns the standard classification thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Pinch:       0.10,
		Fist:        0.35,
		Extension:   0.55,
		ThumbSpread: 0.15,
	}
}

// Validate checks that every threshold lies in (0,1].
func (t Thresholds) Validate() error {
	var errs []error
	check := func(name string, v float64) {
		if v <= 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s threshold must be in (0,1], got %v", name, v))
		}
	}
	check("pinch", t.Pinch)
	check("fist", t.Fist)
	check("extension", t.Extension)
	check("thumb_spread", t.ThumbSpread)
	return errors.Join(errs...)
}

// Features are the scale-normalized measurements a classification uses.
type Features struct {
	Curl      [4]float64 // wrist-to-fingertip distance, index to pinky
	AvgCurl   float64
	PinchDist float64 // thumb tip to index tip
}

// Measure computes the classification features of a 21-point hand.
func Measure(landmarks []detector.Point3D) (Features, error) {
	if len(landmarks) < detector.NumLandmarks {
		return Features{}, fmt.Errorf("%w: %d landmarks", detector.ErrInvalidHand, len(landmarks))
	}

	scale := math.Max(boundingDiagonal(landmarks[:detector.NumLandmarks]), scaleEpsilon)
	wrist := landmarks[detector.Wrist]

	var f Features
	for i, tip := range fingertips {
		f.Curl[i] = detector.Distance(wrist, landmarks[tip]) / scale
	}
	f.AvgCurl = floats.Sum(f.Curl[:]) / float64(len(f.Curl))
	f.PinchDist = detector.Distance(landmarks[detector.ThumbTip], landmarks[detector.IndexTip]) / scale
	return f, nil
}

// boundingDiagonal returns the diagonal of the axis-aligned box around points.
func boundingDiagonal(points []detector.Point3D) float64 {
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	zs := make([]float64, len(points))
	for i, p := range points {
		xs[i], ys[i], zs[i] = p.X, p.Y, p.Z
	}
	dx := floats.Max(xs) - floats.Min(xs)
	dy := floats.Max(ys) - floats.Min(ys)
	dz := floats.Max(zs) - floats.Min(zs)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Classifier maps hand geometry onto a Gesture.
type Classifier struct {
	thresholds Thresholds
}

// NewClassifier creates a classifier with the given thresholds.
func NewClassifier(t Thresholds) *Classifier {
	return &Classifier{thresholds: t}
}

// Classify returns the gesture for a hand. Fist and pinch are tried first on
// raw (unfiltered) landmarks, which react without filter lag; if neither
// fires, the full sequence runs on the smoothed landmarks. Either slice may
// be nil; with neither usable the neutral gesture is returned.
func (c *Classifier) Classify(raw, smoothed []detector.Point3D) Gesture {
	rawFeatures, rawErr := Measure(raw)
	if rawErr == nil {
		if g, ok := c.closed(rawFeatures); ok {
			return g
		}
	}

	if f, err := Measure(smoothed); err == nil {
		return c.classify(f)
	}
	if rawErr == nil {
		return c.classify(rawFeatures)
	}
	return Neutral
}

// ClassifyFeatures runs the full priority sequence on precomputed features.
func (c *Classifier) ClassifyFeatures(f Features) Gesture {
	return c.classify(f)
}

func (c *Classifier) classify(f Features) Gesture {
	if g, ok := c.closed(f); ok {
		return g
	}
	if c.extended(f) {
		return Palm
	}
	return Point
}

// closed checks fist before pinch: a closed fist also closes the thumb-index
// gap, and must not be reported as a pinch.
func (c *Classifier) closed(f Features) (Gesture, bool) {
	if f.AvgCurl <= c.thresholds.Fist {
		return Fist, true
	}
	if f.PinchDist <= c.thresholds.Pinch {
		return Pinch, true
	}
	return "", false
}

func (c *Classifier) extended(f Features) bool {
	for _, curl := range f.Curl {
		if curl < c.thresholds.Extension {
			return false
		}
	}
	return f.PinchDist >= c.thresholds.ThumbSpread
}
