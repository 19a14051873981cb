package calibration

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ayusman/mudra/internal/cursor"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/signature"
)

func rightHand() detector.HandFrame {
	return detector.MoveWristTo(detector.PointLandmarks(), 0.7, 0.8)
}

func leftHand() detector.HandFrame {
	return detector.WithHandedness(detector.MoveWristTo(detector.PinchLandmarks(), 0.3, 0.8), detector.HandLeft)
}

func newSession(t *testing.T, cfg Config) *Session {
	t.Helper()
	s, err := NewSession(cfg, gesture.NewPoseEstimator(gesture.DefaultThresholds()))
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	return s
}

// holdBoth observes both poses and ticks every interval over [from, to].
func holdBoth(t *testing.T, s *Session, from, to float64) Status {
	t.Helper()
	var st Status
	for now := from; now <= to; now += s.Config().TickIntervalMs {
		if err := s.ObserveRight(rightHand(), now); err != nil {
			t.Fatalf("ObserveRight() error = %v", err)
		}
		if err := s.ObserveLeft(leftHand(), now); err != nil {
			t.Fatalf("ObserveLeft() error = %v", err)
		}
		st = s.Tick(now)
	}
	return st
}

func TestNewSession(t *testing.T) {
	if _, err := NewSession(DefaultConfig(), nil); err == nil {
		t.Error("expected error for nil scorer")
	}

	cfg := DefaultConfig()
	cfg.StabilityRequiredMs = 0
	cfg.PointConfidence = 2
	if _, err := NewSession(cfg, gesture.NewPoseEstimator(gesture.DefaultThresholds())); err == nil {
		t.Error("expected config error")
	}

	s := newSession(t, DefaultConfig())
	if s.State() != AwaitingGestures {
		t.Errorf("initial state = %s, want awaiting_gestures", s.State())
	}
	if s.Reason() != ReasonBothMissing {
		t.Errorf("initial reason = %q", s.Reason())
	}
}

func TestSession_LocksAfterStillHold(t *testing.T) {
	s := newSession(t, DefaultConfig())

	var locks []Result
	s.OnLock(func(r Result) { locks = append(locks, r) })

	// Alternate the pointing hand slightly, staying well inside the movement
	// threshold, so the mean differs from any single sample.
	var xs, ys []float64
	for now := 0.0; now <= 4000; now += 50 {
		dx := 0.004
		if int(now/50)%2 == 1 {
			dx = -0.004
		}
		r := detector.Translate(rightHand(), dx, 0)
		tip := r.Landmarks[detector.IndexTip]
		xs = append(xs, tip.X)
		ys = append(ys, tip.Y)

		if err := s.ObserveRight(r, now); err != nil {
			t.Fatal(err)
		}
		if err := s.ObserveLeft(leftHand(), now); err != nil {
			t.Fatal(err)
		}
		st := s.Tick(now)

		if now < 4000 && st.State != Accumulating {
			t.Fatalf("at %vms state = %s, want accumulating", now, st.State)
		}
	}

	if s.State() != Locked {
		t.Fatalf("state = %s, want locked", s.State())
	}
	res, ok := s.Result()
	if !ok {
		t.Fatal("expected a result")
	}

	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	want := cursor.Point{X: sumX / float64(len(xs)), Y: sumY / float64(len(ys))}
	if diff := cmp.Diff(want, res.Offset, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("offset mismatch (-want +got):\n%s", diff)
	}
	if res.Samples != len(xs) {
		t.Errorf("samples = %d, want %d", res.Samples, len(xs))
	}
	if res.LockedAtMs != 4000 {
		t.Errorf("LockedAtMs = %v, want 4000", res.LockedAtMs)
	}
	if len(locks) != 1 {
		t.Fatalf("OnLock called %d times, want 1", len(locks))
	}

	// Terminal: further frames and ticks change nothing.
	s.ObserveFrame(detector.MultiHandFrame{TimestampMs: 4100})
	for now := 4050.0; now <= 6000; now += 50 {
		if st := s.Tick(now); st.State != Locked || st.Progress != 1 {
			t.Fatalf("after lock at %vms: %+v", now, st)
		}
	}
	if len(locks) != 1 {
		t.Errorf("OnLock called again after lock")
	}
	if again, _ := s.Result(); again.ID != res.ID {
		t.Error("result changed after lock")
	}
}

func TestSession_GracePeriod(t *testing.T) {
	t.Run("invalid tick inside grace keeps progress", func(t *testing.T) {
		s := newSession(t, DefaultConfig())
		st := holdBoth(t, s, 0, 1000)
		if st.Progress != 0.25 {
			t.Fatalf("progress = %v, want 0.25", st.Progress)
		}

		st = s.Tick(1200)
		if st.Reason == ReasonNone {
			t.Fatal("expected an invalid tick once detections went stale")
		}
		if st.Progress != 0.25 || st.State != Accumulating {
			t.Errorf("grace tick reset progress: %+v", st)
		}

		// Recovering inside the grace window continues the same run.
		st = holdBoth(t, s, 1250, 1250)
		if st.Progress != 1250.0/4000 {
			t.Errorf("progress after recovery = %v, want %v", st.Progress, 1250.0/4000)
		}
	})

	t.Run("invalid tick past grace resets", func(t *testing.T) {
		s := newSession(t, DefaultConfig())
		holdBoth(t, s, 0, 1000)

		st := s.Tick(1600)
		if st.Progress != 0 {
			t.Errorf("progress = %v, want 0", st.Progress)
		}
		if st.State != AwaitingGestures {
			t.Errorf("state = %s, want awaiting_gestures", st.State)
		}
		if st.Reason != ReasonBothMissing {
			t.Errorf("reason = %q, want %q", st.Reason, ReasonBothMissing)
		}
	})
}

func TestSession_Reasons(t *testing.T) {
	tests := []struct {
		name    string
		observe func(s *Session)
		want    Reason
	}{
		{
			name:    "nothing seen",
			observe: func(s *Session) {},
			want:    ReasonBothMissing,
		},
		{
			name:    "right only",
			observe: func(s *Session) { s.ObserveRight(rightHand(), 0) },
			want:    ReasonLeftMissing,
		},
		{
			name:    "left only",
			observe: func(s *Session) { s.ObserveLeft(leftHand(), 0) },
			want:    ReasonRightMissing,
		},
		{
			name: "hands overlap",
			observe: func(s *Session) {
				s.ObserveRight(rightHand(), 0)
				s.ObserveLeft(detector.MoveWristTo(leftHand(), 0.72, 0.8), 0)
			},
			want: ReasonTooClose,
		},
		{
			name: "valid",
			observe: func(s *Session) {
				s.ObserveRight(rightHand(), 0)
				s.ObserveLeft(leftHand(), 0)
			},
			want: ReasonNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSession(t, DefaultConfig())
			tt.observe(s)
			if got := s.Tick(0).Reason; got != tt.want {
				t.Errorf("reason = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSession_LivenessTimeout(t *testing.T) {
	s := newSession(t, DefaultConfig())
	s.ObserveRight(rightHand(), 0)
	s.ObserveLeft(leftHand(), 0)

	if st := s.Tick(150); st.Reason != ReasonNone {
		t.Errorf("detections 150ms old should be active, got %q", st.Reason)
	}
	if st := s.Tick(200); st.Reason != ReasonBothMissing {
		t.Errorf("detections 200ms old should be stale, got %q", st.Reason)
	}
}

func TestSession_MovementSoftReset(t *testing.T) {
	s := newSession(t, DefaultConfig())
	holdBoth(t, s, 0, 1000)

	moved := detector.Translate(rightHand(), 0.1, 0)
	s.ObserveRight(moved, 1050)
	s.ObserveLeft(leftHand(), 1050)
	st := s.Tick(1050)

	if st.State != Accumulating {
		t.Errorf("movement should not leave accumulating, got %s", st.State)
	}
	if st.Progress != 0 {
		t.Errorf("progress after movement = %v, want 0", st.Progress)
	}

	s.ObserveRight(moved, 1100)
	s.ObserveLeft(leftHand(), 1100)
	if st := s.Tick(1100); st.Progress != 50.0/4000 {
		t.Errorf("progress should restart from the move, got %v", st.Progress)
	}
}

func TestSession_StillnessFollowsWrist(t *testing.T) {
	s := newSession(t, DefaultConfig())
	holdBoth(t, s, 0, 1000)
	before := s.Status().Progress

	// The fingertip swings about a fixed wrist.
	swung := detector.Scale(rightHand(), 1.2)
	if d := detector.Distance2D(swung.Landmarks[detector.IndexTip], rightHand().Landmarks[detector.IndexTip]); d <= DefaultConfig().MovementThreshold {
		t.Fatalf("fingertip moved %v, want beyond the movement threshold", d)
	}
	s.ObserveRight(swung, 1050)
	s.ObserveLeft(leftHand(), 1050)
	st := s.Tick(1050)

	if st.State != Accumulating {
		t.Errorf("state = %s, want %s", st.State, Accumulating)
	}
	if st.Progress <= before {
		t.Errorf("fingertip-only move reset progress: %v after %v", st.Progress, before)
	}
}

func TestSession_ObserveFrame(t *testing.T) {
	saved := Logf
	Logf = func(string, ...any) {}
	t.Cleanup(func() { Logf = saved })

	t.Run("detects both poses by handedness", func(t *testing.T) {
		s := newSession(t, DefaultConfig())
		s.ObserveFrame(detector.MultiHandFrame{
			TimestampMs: 0,
			Hands:       []detector.HandFrame{leftHand(), rightHand()},
		})
		if st := s.Tick(0); st.Reason != ReasonNone || st.State != Accumulating {
			t.Errorf("expected valid accumulating status, got %+v", st)
		}
	})

	t.Run("wrong poses are not detections", func(t *testing.T) {
		s := newSession(t, DefaultConfig())
		palm := detector.MoveWristTo(detector.OpenPalmLandmarks(), 0.7, 0.8)
		leftPalm := detector.WithHandedness(detector.MoveWristTo(detector.OpenPalmLandmarks(), 0.3, 0.8), detector.HandLeft)
		s.ObserveFrame(detector.MultiHandFrame{Hands: []detector.HandFrame{palm, leftPalm}})
		if st := s.Tick(0); st.Reason != ReasonBothMissing {
			t.Errorf("reason = %q, want %q", st.Reason, ReasonBothMissing)
		}
	})

	t.Run("invalid hands are ignored", func(t *testing.T) {
		s := newSession(t, DefaultConfig())
		short := rightHand()
		short.Landmarks = short.Landmarks[:12]
		s.ObserveFrame(detector.MultiHandFrame{Hands: []detector.HandFrame{short}})
		if st := s.Tick(0); st.Reason != ReasonBothMissing {
			t.Errorf("reason = %q, want %q", st.Reason, ReasonBothMissing)
		}
		if err := s.ObserveRight(short, 0); !errors.Is(err, detector.ErrInvalidHand) {
			t.Errorf("ObserveRight() error = %v, want ErrInvalidHand", err)
		}
	})
}

func TestSession_Signatures(t *testing.T) {
	t.Run("locked by spatial role", func(t *testing.T) {
		s := newSession(t, DefaultConfig())
		holdBoth(t, s, 0, 4000)

		res, ok := s.Result()
		if !ok {
			t.Fatal("expected lock")
		}
		if len(res.Signatures) != 2 {
			t.Fatalf("expected both roles, got %v", res.Signatures)
		}

		want, err := signature.Compute(rightHand().Landmarks)
		if err != nil {
			t.Fatal(err)
		}
		if got := signature.Match(res.Signatures[detector.RoleRight], want); got < 0.999 {
			t.Errorf("right role signature should match the pointing hand, score %v", got)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.LockSignatures = false
		s := newSession(t, cfg)
		holdBoth(t, s, 0, 4000)

		res, ok := s.Result()
		if !ok {
			t.Fatal("expected lock")
		}
		if len(res.Signatures) != 0 {
			t.Errorf("expected no signatures, got %v", res.Signatures)
		}
	})
}

func TestSession_Reset(t *testing.T) {
	s := newSession(t, DefaultConfig())
	holdBoth(t, s, 0, 4000)
	first, _ := s.Result()

	s.Reset()
	if s.State() != AwaitingGestures || s.Progress() != 0 {
		t.Fatalf("reset did not restart: %+v", s.Status())
	}
	if _, ok := s.Result(); ok {
		t.Error("reset should drop the result")
	}

	holdBoth(t, s, 5000, 9000)
	second, ok := s.Result()
	if !ok {
		t.Fatal("expected a second lock")
	}
	if second.ID == first.ID {
		t.Error("expected a new result id")
	}
}

func TestState_String(t *testing.T) {
	for state, want := range map[State]string{
		AwaitingGestures: "awaiting_gestures",
		Accumulating:     "accumulating",
		Locked:           "locked",
		State(9):         "State(9)",
	} {
		if got := state.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}
