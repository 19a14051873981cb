// Package calibration implements the two-hand setup flow that locks the
// screen-centre offset and the player's hand signatures.
//
// The player points with the right hand and pinches with the left, then
// holds still. Detections arrive with frames; liveness, the grace period and
// completion are evaluated on Tick, which the caller drives from a timer so
// a side going stale is noticed even when no frames arrive.
package calibration

import (
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/mudra/internal/cursor"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/signature"
)

// Logf is used for diagnostics. Tests may replace it.
var Logf = log.Printf

// State is the phase of a calibration session.
type State int

const (
	// AwaitingGestures waits for both hands to hold their poses.
	AwaitingGestures State = iota
	// Accumulating records still samples towards the lock.
	Accumulating
	// Locked is terminal.
	Locked
)

func (s State) String() string {
	switch s {
	case AwaitingGestures:
		return "awaiting_gestures"
	case Accumulating:
		return "accumulating"
	case Locked:
		return "locked"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Reason explains why the current pose is not valid. The empty Reason means
// the pose is valid.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonBothMissing  Reason = "point with your right hand and pinch with your left"
	ReasonRightMissing Reason = "point with your right hand"
	ReasonLeftMissing  Reason = "pinch with your left hand"
	ReasonTooClose     Reason = "move your hands further apart"
)

// PoseScorer grades canned poses for a hand.
type PoseScorer interface {
	Score(landmarks []detector.Point3D) gesture.PoseResult
}

// Config holds calibration timing and geometry.
type Config struct {
	StabilityRequiredMs float64 `json:"stability_required_ms"`
	DetectionTimeoutMs  float64 `json:"detection_timeout_ms"`
	GracePeriodMs       float64 `json:"grace_period_ms"`
	TickIntervalMs      float64 `json:"tick_interval_ms"`

	// SpatialSeparationThreshold is the minimum wrist-to-wrist distance, so
	// one hand cannot satisfy both checks.
	SpatialSeparationThreshold float64 `json:"spatial_separation_threshold"`

	// MovementThreshold is the largest sample-to-sample right wrist move
	// still counted as holding still.
	MovementThreshold float64 `json:"movement_threshold"`

	// PointConfidence is the minimum point-pose score for the right hand.
	PointConfidence float64 `json:"point_confidence"`

	// PinchThreshold is the largest normalized thumb-index distance counted
	// as a pinch for the left hand.
	PinchThreshold float64 `json:"pinch_threshold"`

	// LockSignatures also records the hands' signatures for identity gating.
	LockSignatures bool `json:"lock_signatures"`
}

// DefaultConfig returns the standard calibration configuration.
func DefaultConfig() Config {
	return Config{
		StabilityRequiredMs:        4000,
		DetectionTimeoutMs:         200,
		GracePeriodMs:              500,
		TickIntervalMs:             50,
		SpatialSeparationThreshold: 0.15,
		MovementThreshold:          0.03,
		PointConfidence:            0.7,
		PinchThreshold:             0.10,
		LockSignatures:             true,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	positive := func(name string, v float64) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", name, v))
		}
	}
	unit := func(name string, v float64) {
		if v <= 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s must be in (0,1], got %v", name, v))
		}
	}

	positive("stability_required_ms", c.StabilityRequiredMs)
	positive("detection_timeout_ms", c.DetectionTimeoutMs)
	positive("tick_interval_ms", c.TickIntervalMs)
	if c.GracePeriodMs < 0 {
		errs = append(errs, fmt.Errorf("grace_period_ms must not be negative, got %v", c.GracePeriodMs))
	}
	unit("spatial_separation_threshold", c.SpatialSeparationThreshold)
	unit("movement_threshold", c.MovementThreshold)
	unit("point_confidence", c.PointConfidence)
	unit("pinch_threshold", c.PinchThreshold)
	return errors.Join(errs...)
}

// Status is a snapshot of the session after a tick.
type Status struct {
	State    State   `json:"state"`
	Progress float64 `json:"progress"`
	Reason   Reason  `json:"reason,omitempty"`
}

// Result is produced once, when the session locks.
type Result struct {
	ID         uuid.UUID                             `json:"id"`
	Offset     cursor.Point                          `json:"offset"`
	Signatures map[detector.Role]signature.Signature `json:"signatures,omitempty"`
	Samples    int                                   `json:"samples"`
	LockedAtMs float64                               `json:"locked_at_ms"`
}

// side is the detection state of one hand.
type side struct {
	seen     bool
	lastSeen float64
	wrist    detector.Point3D
	aim      cursor.Point
	sig      signature.Signature
	hasSig   bool
}

func (s side) active(nowMs, timeoutMs float64) bool {
	return s.seen && nowMs-s.lastSeen < timeoutMs
}

// Session is the calibration state machine. It is not safe for concurrent
// use.
type Session struct {
	config Config
	scorer PoseScorer
	onLock func(Result)

	state    State
	progress float64
	reason   Reason

	right side
	left  side

	accumStartMs float64
	lastValidMs  float64
	hasValid     bool

	samples    []cursor.Point
	signatures map[detector.Role][]signature.Signature

	// stillWrist is the right wrist at the previous accumulated sample.
	stillWrist    detector.Point3D
	hasStillWrist bool

	result *Result
}

// NewSession creates a session. scorer grades the right hand's point pose.
func NewSession(config Config, scorer PoseScorer) (*Session, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid calibration config: %w", err)
	}
	if scorer == nil {
		return nil, errors.New("calibration: nil pose scorer")
	}

	s := &Session{config: config, scorer: scorer}
	s.Reset()
	return s, nil
}

// OnLock registers fn to be called once, synchronously, when the session
// locks.
func (s *Session) OnLock(fn func(Result)) {
	s.onLock = fn
}

// Config returns the session configuration.
func (s *Session) Config() Config {
	return s.config
}

// Reset discards all progress, including a lock, and starts over.
func (s *Session) Reset() {
	s.state = AwaitingGestures
	s.progress = 0
	s.reason = ReasonBothMissing
	s.right = side{}
	s.left = side{}
	s.hasValid = false
	s.result = nil
	s.clearBuffers()
}

// State returns the current phase.
func (s *Session) State() State {
	return s.state
}

// Progress returns the accumulated fraction of the required still time.
func (s *Session) Progress() float64 {
	return s.progress
}

// Reason returns why the pose was last found invalid.
func (s *Session) Reason() Reason {
	return s.reason
}

// Status returns the current snapshot.
func (s *Session) Status() Status {
	return Status{State: s.state, Progress: s.progress, Reason: s.reason}
}

// Result returns the lock result once the session is Locked.
func (s *Session) Result() (Result, bool) {
	if s.result == nil {
		return Result{}, false
	}
	return *s.result, true
}

// ObserveFrame checks every hand in frame for its side's pose: a point on
// hands the tracker labels Right, a pinch on hands labelled Left.
func (s *Session) ObserveFrame(frame detector.MultiHandFrame) {
	if s.state == Locked {
		return
	}

	for _, h := range frame.Hands {
		if err := h.Validate(); err != nil {
			Logf("calibration: ignoring hand at %.0fms: %v", frame.TimestampMs, err)
			continue
		}

		switch h.Handedness {
		case detector.HandRight:
			score, ok := s.scorer.Score(h.Landmarks).Score(gesture.Point)
			if ok && score >= s.config.PointConfidence {
				s.observe(&s.right, h, frame.TimestampMs)
			}
		case detector.HandLeft:
			f, err := gesture.Measure(h.Landmarks)
			if err == nil && f.PinchDist <= s.config.PinchThreshold {
				s.observe(&s.left, h, frame.TimestampMs)
			}
		}
	}
}

// ObserveRight records a confirmed right-hand point pose.
func (s *Session) ObserveRight(hand detector.HandFrame, timestampMs float64) error {
	if err := hand.Validate(); err != nil {
		return err
	}
	if s.state != Locked {
		s.observe(&s.right, hand, timestampMs)
	}
	return nil
}

// ObserveLeft records a confirmed left-hand pinch pose.
func (s *Session) ObserveLeft(hand detector.HandFrame, timestampMs float64) error {
	if err := hand.Validate(); err != nil {
		return err
	}
	if s.state != Locked {
		s.observe(&s.left, hand, timestampMs)
	}
	return nil
}

func (s *Session) observe(sd *side, hand detector.HandFrame, timestampMs float64) {
	tip := hand.Landmarks[detector.IndexTip]

	sd.seen = true
	sd.lastSeen = timestampMs
	sd.wrist = hand.Wrist()
	sd.aim = cursor.Point{X: tip.X, Y: tip.Y}

	if s.config.LockSignatures {
		sig, err := signature.Compute(hand.Landmarks)
		sd.sig, sd.hasSig = sig, err == nil
	}
}

// Tick evaluates liveness, validity, stillness and completion at nowMs.
func (s *Session) Tick(nowMs float64) Status {
	if s.state == Locked {
		return s.Status()
	}

	reason := s.validate(nowMs)
	if reason != ReasonNone {
		s.reason = reason
		if s.hasValid && nowMs-s.lastValidMs <= s.config.GracePeriodMs {
			return s.Status()
		}
		s.state = AwaitingGestures
		s.progress = 0
		s.hasValid = false
		s.clearBuffers()
		return s.Status()
	}

	s.reason = ReasonNone
	s.lastValidMs = nowMs
	s.hasValid = true

	if s.state == AwaitingGestures {
		s.state = Accumulating
		s.accumStartMs = nowMs
		s.clearBuffers()
	}

	// Stillness is judged on the wrist; the fingertip is what gets averaged.
	if s.hasStillWrist && detector.Distance2D(s.right.wrist, s.stillWrist) > s.config.MovementThreshold {
		s.accumStartMs = nowMs
		s.clearBuffers()
	}
	s.stillWrist, s.hasStillWrist = s.right.wrist, true
	s.samples = append(s.samples, s.right.aim)
	s.recordSignatures()

	elapsed := nowMs - s.accumStartMs
	s.progress = math.Min(1, elapsed/s.config.StabilityRequiredMs)
	if elapsed >= s.config.StabilityRequiredMs {
		s.lock(nowMs)
	}
	return s.Status()
}

// validate returns the precedence-ordered reason the pose is invalid.
func (s *Session) validate(nowMs float64) Reason {
	right := s.right.active(nowMs, s.config.DetectionTimeoutMs)
	left := s.left.active(nowMs, s.config.DetectionTimeoutMs)

	switch {
	case !right && !left:
		return ReasonBothMissing
	case !right:
		return ReasonRightMissing
	case !left:
		return ReasonLeftMissing
	case detector.Distance2D(s.right.wrist, s.left.wrist) < s.config.SpatialSeparationThreshold:
		return ReasonTooClose
	}
	return ReasonNone
}

// recordSignatures buffers both hands' signatures under their spatial roles.
func (s *Session) recordSignatures() {
	if !s.config.LockSignatures || !s.right.hasSig || !s.left.hasSig {
		return
	}

	rightRole, leftRole := detector.RoleRight, detector.RoleLeft
	if s.right.wrist.X < s.left.wrist.X {
		rightRole, leftRole = leftRole, rightRole
	}
	s.signatures[rightRole] = append(s.signatures[rightRole], s.right.sig)
	s.signatures[leftRole] = append(s.signatures[leftRole], s.left.sig)
}

func (s *Session) clearBuffers() {
	s.samples = s.samples[:0]
	s.signatures = make(map[detector.Role][]signature.Signature, 2)
	s.hasStillWrist = false
}

func (s *Session) lock(nowMs float64) {
	xs := make([]float64, len(s.samples))
	ys := make([]float64, len(s.samples))
	for i, p := range s.samples {
		xs[i], ys[i] = p.X, p.Y
	}

	result := Result{
		ID:         uuid.New(),
		Offset:     cursor.Point{X: stat.Mean(xs, nil), Y: stat.Mean(ys, nil)},
		Signatures: make(map[detector.Role]signature.Signature, len(s.signatures)),
		Samples:    len(s.samples),
		LockedAtMs: nowMs,
	}
	for role, sigs := range s.signatures {
		avg, err := signature.Average(sigs)
		if err != nil {
			continue
		}
		result.Signatures[role] = avg
	}

	s.state = Locked
	s.progress = 1
	s.reason = ReasonNone
	s.result = &result

	Logf("calibration: locked offset (%.3f, %.3f) from %d samples", result.Offset.X, result.Offset.Y, result.Samples)
	if s.onLock != nil {
		s.onLock(result)
	}
}
