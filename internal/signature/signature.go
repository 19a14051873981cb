// Package signature computes a pose-independent fingerprint of a hand's palm
// proportions, used to tell the calibrated player's hands from bystanders'.
package signature

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/mudra/internal/detector"
)

// DefaultThreshold is the minimum Match score accepted as the same hand.
const DefaultThreshold = 0.60

// ratioEpsilon keeps ratios finite when two landmarks coincide.
const ratioEpsilon = 1e-6

var (
	// ErrInsufficientLandmarks is returned when a hand has fewer than 21 landmarks.
	ErrInsufficientLandmarks = errors.New("insufficient landmarks")

	// ErrEmpty is returned when averaging no signatures.
	ErrEmpty = errors.New("no signatures")
)

// Signature holds five dimensionless palm ratios. All of them are built from
// the wrist and the MCP knuckles, which stay put whether the hand is open,
// closed or pointing.
type Signature struct {
	// PalmAspect is knuckle width (index MCP to pinky MCP) over palm length
	// (wrist to middle MCP).
	PalmAspect float64 `json:"palm_aspect"`

	// ThumbBase is thumb MCP to index MCP over knuckle width.
	ThumbBase float64 `json:"thumb_base"`

	// PalmTaper is wrist to index MCP over wrist to pinky MCP.
	PalmTaper float64 `json:"palm_taper"`

	// ThumbWrist is wrist to thumb MCP over palm length.
	ThumbWrist float64 `json:"thumb_wrist"`

	// KnuckleSpacing is index-to-middle MCP gap over ring-to-pinky MCP gap.
	KnuckleSpacing float64 `json:"knuckle_spacing"`
}

// weights are applied in the order returned by Signature.values.
var weights = []float64{3.0, 1.0, 1.5, 1.0, 1.5}

func (s Signature) values() []float64 {
	return []float64{s.PalmAspect, s.ThumbBase, s.PalmTaper, s.ThumbWrist, s.KnuckleSpacing}
}

func fromValues(v []float64) Signature {
	return Signature{
		PalmAspect:     v[0],
		ThumbBase:      v[1],
		PalmTaper:      v[2],
		ThumbWrist:     v[3],
		KnuckleSpacing: v[4],
	}
}

// Compute derives the signature of a single hand.
func Compute(landmarks []detector.Point3D) (Signature, error) {
	if len(landmarks) < detector.NumLandmarks {
		return Signature{}, fmt.Errorf("%w: got %d, need %d", ErrInsufficientLandmarks, len(landmarks), detector.NumLandmarks)
	}

	d := func(a, b int) float64 {
		return detector.Distance(landmarks[a], landmarks[b])
	}

	knuckleWidth := d(detector.IndexMCP, detector.PinkyMCP)
	palmLength := d(detector.Wrist, detector.MiddleMCP)

	return Signature{
		PalmAspect:     ratio(knuckleWidth, palmLength),
		ThumbBase:      ratio(d(detector.ThumbMCP, detector.IndexMCP), knuckleWidth),
		PalmTaper:      ratio(d(detector.Wrist, detector.IndexMCP), d(detector.Wrist, detector.PinkyMCP)),
		ThumbWrist:     ratio(d(detector.Wrist, detector.ThumbMCP), palmLength),
		KnuckleSpacing: ratio(d(detector.IndexMCP, detector.MiddleMCP), d(detector.RingMCP, detector.PinkyMCP)),
	}, nil
}

// Average returns the per-ratio arithmetic mean of sigs.
func Average(sigs []Signature) (Signature, error) {
	if len(sigs) == 0 {
		return Signature{}, ErrEmpty
	}

	columns := make([][]float64, len(weights))
	for _, s := range sigs {
		for i, v := range s.values() {
			columns[i] = append(columns[i], v)
		}
	}

	means := make([]float64, len(weights))
	for i, col := range columns {
		means[i] = stat.Mean(col, nil)
	}
	return fromValues(means), nil
}

// Match scores how closely candidate resembles locked, from 0 (unrelated) to
// 1 (identical proportions).
func Match(candidate, locked Signature) float64 {
	c := candidate.values()
	l := locked.values()

	diffs := make([]float64, len(weights))
	for i := range diffs {
		diffs[i] = math.Abs(c[i]-l[i]) / math.Max(l[i], ratioEpsilon)
	}

	weighted := floats.Dot(weights, diffs) / floats.Sum(weights)
	return math.Max(0, 1-weighted)
}

func ratio(num, den float64) float64 {
	return num / math.Max(den, ratioEpsilon)
}
