package gesture

import (
	"errors"
	"math"
	"testing"

	"github.com/ayusman/mudra/internal/detector"
)

func TestClassifier_Fixtures(t *testing.T) {
	c := NewClassifier(DefaultThresholds())

	tests := []struct {
		name string
		hand detector.HandFrame
		want Gesture
	}{
		{"fist", detector.FistLandmarks(), Fist},
		{"open palm", detector.OpenPalmLandmarks(), Palm},
		{"point", detector.PointLandmarks(), Point},
		{"pinch", detector.PinchLandmarks(), Pinch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := tt.hand.Landmarks
			if got := c.Classify(h, h); got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClassifier_ScaleInvariant(t *testing.T) {
	c := NewClassifier(DefaultThresholds())
	for _, factor := range []float64{0.3, 0.5, 2.0} {
		h := detector.Scale(detector.OpenPalmLandmarks(), factor)
		if got := c.Classify(nil, h.Landmarks); got != Palm {
			t.Errorf("scale %v: Classify() = %s, want palm", factor, got)
		}
	}
}

func TestClassifier_FistRegardlessOfThumb(t *testing.T) {
	c := NewClassifier(DefaultThresholds())

	// Thumb raised far from the index tip.
	raised := detector.FistLandmarks()
	f, err := Measure(raised.Landmarks)
	if err != nil {
		t.Fatalf("Measure() error = %v", err)
	}
	if f.PinchDist <= DefaultThresholds().Pinch {
		t.Fatalf("fixture thumb should be away from index, pinchDist %v", f.PinchDist)
	}
	if got := c.Classify(nil, raised.Landmarks); got != Fist {
		t.Errorf("raised thumb: Classify() = %s, want fist", got)
	}
}

func TestClassifier_FistBeatsPinch(t *testing.T) {
	c := NewClassifier(Thresholds{Pinch: 0.1, Fist: 0.4, Extension: 0.55, ThumbSpread: 0.15})

	h := detector.FistLandmarks()
	h.Landmarks[detector.ThumbTip] = h.Landmarks[detector.IndexTip]

	f, err := Measure(h.Landmarks)
	if err != nil {
		t.Fatalf("Measure() error = %v", err)
	}
	if f.AvgCurl > 0.4 || f.PinchDist > 0.1 {
		t.Fatalf("fixture should satisfy both fist and pinch, got %+v", f)
	}

	if got := c.Classify(h.Landmarks, h.Landmarks); got != Fist {
		t.Errorf("Classify() = %s, want fist", got)
	}
	if got := c.ClassifyFeatures(f); got != Fist {
		t.Errorf("ClassifyFeatures() = %s, want fist", got)
	}
}

func TestClassifier_PalmNeedsThumbSpread(t *testing.T) {
	c := NewClassifier(DefaultThresholds())

	f := Features{Curl: [4]float64{0.8, 0.8, 0.8, 0.8}, AvgCurl: 0.8, PinchDist: 0.12}
	if got := c.ClassifyFeatures(f); got != Point {
		t.Errorf("tucked thumb: ClassifyFeatures() = %s, want point", got)
	}

	f.PinchDist = 0.15
	if got := c.ClassifyFeatures(f); got != Palm {
		t.Errorf("thumb at spread threshold: ClassifyFeatures() = %s, want palm", got)
	}
}

func TestClassifier_PalmNeedsEveryFinger(t *testing.T) {
	c := NewClassifier(DefaultThresholds())
	f := Features{Curl: [4]float64{0.8, 0.8, 0.8, 0.54}, AvgCurl: 0.735, PinchDist: 0.4}
	if got := c.ClassifyFeatures(f); got != Point {
		t.Errorf("ClassifyFeatures() = %s, want point", got)
	}
}

func TestClassifier_RawFirst(t *testing.T) {
	c := NewClassifier(DefaultThresholds())
	palm := detector.OpenPalmLandmarks().Landmarks
	pinch := detector.PinchLandmarks().Landmarks
	fist := detector.FistLandmarks().Landmarks
	point := detector.PointLandmarks().Landmarks

	tests := []struct {
		name     string
		raw      []detector.Point3D
		smoothed []detector.Point3D
		want     Gesture
	}{
		{"raw pinch wins over smoothed palm", pinch, palm, Pinch},
		{"raw fist wins over smoothed point", fist, point, Fist},
		{"raw palm falls through to smoothed fist", palm, fist, Fist},
		{"raw point falls through to smoothed palm", point, palm, Palm},
		{"smoothed only", nil, point, Point},
		{"raw only", palm, nil, Palm},
		{"invalid raw uses smoothed", palm[:10], pinch, Pinch},
		{"nothing usable", nil, nil, Neutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(tt.raw, tt.smoothed); got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMeasure(t *testing.T) {
	t.Run("rejects short hand", func(t *testing.T) {
		_, err := Measure(make([]detector.Point3D, 5))
		if !errors.Is(err, detector.ErrInvalidHand) {
			t.Errorf("expected ErrInvalidHand, got %v", err)
		}
	})

	t.Run("degenerate hand stays finite", func(t *testing.T) {
		f, err := Measure(make([]detector.Point3D, detector.NumLandmarks))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if math.IsNaN(f.AvgCurl) || math.IsNaN(f.PinchDist) {
			t.Errorf("expected finite features, got %+v", f)
		}
	})

	t.Run("average of four curls", func(t *testing.T) {
		f, err := Measure(detector.OpenPalmLandmarks().Landmarks)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		mean := (f.Curl[0] + f.Curl[1] + f.Curl[2] + f.Curl[3]) / 4
		if math.Abs(mean-f.AvgCurl) > 1e-12 {
			t.Errorf("AvgCurl = %v, want %v", f.AvgCurl, mean)
		}
	})
}

func TestThresholds_Validate(t *testing.T) {
	if err := DefaultThresholds().Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}

	bad := Thresholds{Pinch: 0, Fist: 1.5, Extension: 0.55, ThumbSpread: -1}
	if err := bad.Validate(); err == nil {
		t.Error("expected validation error")
	}
}

func TestPoseEstimator(t *testing.T) {
	e := NewPoseEstimator(DefaultThresholds())

	t.Run("point pose scores high", func(t *testing.T) {
		r := e.Score(detector.PointLandmarks().Landmarks)
		s, ok := r.Score(Point)
		if !ok {
			t.Fatal("expected point score to be available")
		}
		if s < 0.9 {
			t.Errorf("expected point score >= 0.9, got %v", s)
		}
	})

	t.Run("open palm is not a point", func(t *testing.T) {
		r := e.Score(detector.OpenPalmLandmarks().Landmarks)
		if s, _ := r.Score(Point); s > 0.1 {
			t.Errorf("expected low point score for open palm, got %v", s)
		}
		if s, _ := r.Score(Palm); s < 0.9 {
			t.Errorf("expected high palm score, got %v", s)
		}
	})

	t.Run("pinch pose scores high", func(t *testing.T) {
		r := e.Score(detector.PinchLandmarks().Landmarks)
		if s, _ := r.Score(Pinch); s < 0.8 {
			t.Errorf("expected pinch score >= 0.8, got %v", s)
		}
	})

	t.Run("fist scores high", func(t *testing.T) {
		r := e.Score(detector.FistLandmarks().Landmarks)
		if s, _ := r.Score(Fist); s < 0.9 {
			t.Errorf("expected fist score >= 0.9, got %v", s)
		}
	})

	t.Run("invalid hand is unavailable", func(t *testing.T) {
		r := e.Score(make([]detector.Point3D, 3))
		if r.Available {
			t.Error("expected unavailable result")
		}
		if _, ok := r.Score(Point); ok {
			t.Error("unavailable result should not report a score")
		}
	})

	t.Run("scores lie in unit range", func(t *testing.T) {
		hands := []detector.HandFrame{
			detector.FistLandmarks(), detector.OpenPalmLandmarks(),
			detector.PointLandmarks(), detector.PinchLandmarks(),
		}
		for _, h := range hands {
			r := e.Score(h.Landmarks)
			for pose, s := range r.Scores {
				if s < 0 || s > 1 {
					t.Errorf("%s score %v out of range", pose, s)
				}
			}
		}
	})
}
