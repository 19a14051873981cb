// Package processor turns raw multi-hand frames into cursor, gesture and
// stability events.
//
// A Processor owns its filter bank, cursor mappers and locked signatures. It
// is not safe for concurrent use: frames must be fed from a single goroutine,
// and subscribers are called synchronously on that goroutine in frame order.
package processor

import (
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/ayusman/mudra/internal/cursor"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/filter"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/signature"
)

// Logf is used for diagnostics. Tests may replace it.
var Logf = log.Printf

// rawToleranceFactor widens the stability tolerance for the unfiltered cursor.
const rawToleranceFactor = 1.5

// Config holds every processing knob.
type Config struct {
	Cursor  cursor.Config      `json:"cursor"`
	Filter  filter.Config      `json:"filter"`
	Gesture gesture.Thresholds `json:"gesture"`

	// StabilityTolerance is the largest frame-to-frame cursor move still
	// reported as stable.
	StabilityTolerance float64 `json:"stability_tolerance"`

	// SignatureThreshold is the minimum signature.Match score for a hand to
	// pass the identity gate.
	SignatureThreshold float64 `json:"signature_threshold"`

	// ContinuityThreshold is the largest wrist jump, in normalized camera
	// units, accepted from a gated role between two accepted frames.
	ContinuityThreshold float64 `json:"continuity_threshold"`

	// ContinuityWindowMs bounds how long a role's last accepted wrist is
	// used for the continuity check. After that the role accepts a matching
	// hand anywhere.
	ContinuityWindowMs float64 `json:"continuity_window_ms"`

	// SplitX is the wrist x below which a lone hand, or a hand being gated,
	// is taken as the left role.
	SplitX float64 `json:"split_x"`
}

// DefaultConfig returns the standard processing configuration.
func DefaultConfig() Config {
	return Config{
		Cursor:              cursor.DefaultConfig(),
		Filter:              filter.DefaultConfig(),
		Gesture:             gesture.DefaultThresholds(),
		StabilityTolerance:  0.02,
		SignatureThreshold:  signature.DefaultThreshold,
		ContinuityThreshold: 0.15,
		ContinuityWindowMs:  500,
		SplitX:              0.5,
	}
}

// Validate checks every knob and reports all problems at once.
func (c Config) Validate() error {
	var errs []error
	if err := c.Cursor.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("cursor: %w", err))
	}
	if err := c.Filter.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("filter: %w", err))
	}
	if err := c.Gesture.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("gesture: %w", err))
	}
	if c.StabilityTolerance <= 0 || c.StabilityTolerance > 1 {
		errs = append(errs, fmt.Errorf("stability_tolerance must be in (0,1], got %v", c.StabilityTolerance))
	}
	if c.SignatureThreshold < 0 || c.SignatureThreshold > 1 {
		errs = append(errs, fmt.Errorf("signature_threshold must be in [0,1], got %v", c.SignatureThreshold))
	}
	if c.ContinuityThreshold <= 0 || c.ContinuityThreshold > 1 {
		errs = append(errs, fmt.Errorf("continuity_threshold must be in (0,1], got %v", c.ContinuityThreshold))
	}
	if c.ContinuityWindowMs <= 0 {
		errs = append(errs, fmt.Errorf("continuity_window_ms must be positive, got %v", c.ContinuityWindowMs))
	}
	if c.SplitX <= 0 || c.SplitX >= 1 {
		errs = append(errs, fmt.Errorf("split_x must be in (0,1), got %v", c.SplitX))
	}
	return errors.Join(errs...)
}

// HandState is the processed state of one role for one frame.
type HandState struct {
	Role       detector.Role      `json:"role"`
	Handedness string             `json:"handedness"`
	Landmarks  []detector.Point3D `json:"landmarks"`
	Cursor     cursor.Point       `json:"cursor"`
	Gesture    gesture.Gesture    `json:"gesture"`
}

// DetectedHand describes every valid hand in a frame, accepted or not, for
// visualization.
type DetectedHand struct {
	Handedness string           `json:"handedness"`
	Wrist      detector.Point3D `json:"wrist"`
	Role       detector.Role    `json:"role"`
	// Gated is true when the hand was checked against a locked signature.
	Gated   bool    `json:"gated"`
	Score   float64 `json:"score"`
	Matched bool    `json:"matched"`
}

// Event is the output of processing one frame.
type Event struct {
	TimestampMs float64                     `json:"timestamp_ms"`
	Cursor      cursor.Point                `json:"cursor"`
	RawCursor   cursor.Point                `json:"raw_cursor"`
	Gesture     gesture.Gesture             `json:"gesture"`
	Stable      bool                        `json:"stable"`
	Hands       map[detector.Role]HandState `json:"hands,omitempty"`
	Detected    []DetectedHand              `json:"detected,omitempty"`
}

// Hand returns the state of role, if it was populated this frame.
func (e Event) Hand(role detector.Role) (HandState, bool) {
	h, ok := e.Hands[role]
	return h, ok
}

type wristSample struct {
	pos         detector.Point3D
	timestampMs float64
	ok          bool
}

type subscriber struct {
	id int
	fn func(Event)
}

// Processor is the per-frame orchestrator.
type Processor struct {
	config     Config
	filters    *filter.Bank
	classifier *gesture.Classifier

	// mappers and rawMappers are indexed by role.
	mappers    [2]*cursor.Mapper
	rawMappers [2]*cursor.Mapper
	present    [2]bool

	locked    map[detector.Role]signature.Signature
	lastWrist [2]wristSample

	lastCursor    cursor.Point
	lastRawCursor cursor.Point
	havePrevious  bool

	subscribers []subscriber
	nextID      int
}

// New creates a processor after validating config.
func New(config Config) (*Processor, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid processor config: %w", err)
	}

	p := &Processor{
		config:     config,
		filters:    filter.NewBank(config.Filter),
		classifier: gesture.NewClassifier(config.Gesture),
		locked:     make(map[detector.Role]signature.Signature),
	}
	for _, r := range detector.Roles {
		p.mappers[r] = cursor.NewMapper(config.Cursor)
		p.rawMappers[r] = cursor.NewMapper(config.Cursor)
	}
	return p, nil
}

// Config returns the processor's configuration.
func (p *Processor) Config() Config {
	return p.config
}

// Subscribe registers fn to receive every emitted event. The returned
// function detaches it.
func (p *Processor) Subscribe(fn func(Event)) (unsubscribe func()) {
	id := p.nextID
	p.nextID++
	p.subscribers = append(p.subscribers, subscriber{id: id, fn: fn})

	return func() {
		for i, s := range p.subscribers {
			if s.id == id {
				p.subscribers = append(p.subscribers[:i:i], p.subscribers[i+1:]...)
				return
			}
		}
	}
}

// SetCalibration sets the screen-centre offset on every mapper.
func (p *Processor) SetCalibration(center cursor.Point) {
	for _, r := range detector.Roles {
		p.mappers[r].SetCalibration(center)
		p.rawMappers[r].SetCalibration(center)
	}
}

// Calibration returns the current screen-centre offset.
func (p *Processor) Calibration() cursor.Point {
	return p.mappers[detector.RoleRight].Calibration()
}

// SetLockedSignatures activates identity gating for the given roles. Roles
// absent from sigs accept any hand.
func (p *Processor) SetLockedSignatures(sigs map[detector.Role]signature.Signature) {
	p.locked = make(map[detector.Role]signature.Signature, len(sigs))
	for r, s := range sigs {
		p.locked[r] = s
	}
	p.lastWrist = [2]wristSample{}
}

// LockedSignatures returns a copy of the locked signatures.
func (p *Processor) LockedSignatures() map[detector.Role]signature.Signature {
	out := make(map[detector.Role]signature.Signature, len(p.locked))
	for r, s := range p.locked {
		out[r] = s
	}
	return out
}

// ClearSignatureLock disables identity gating.
func (p *Processor) ClearSignatureLock() {
	p.locked = make(map[detector.Role]signature.Signature)
	p.lastWrist = [2]wristSample{}
}

// SignatureLocked reports whether any role is gated.
func (p *Processor) SignatureLocked() bool {
	return len(p.locked) > 0
}

// candidate is a valid hand moving through one frame's pipeline.
type candidate struct {
	hand        detector.HandFrame
	wrist       detector.Point3D
	provisional detector.Role
	detected    int
}

// Process runs one frame through the pipeline. It returns false, without
// emitting or changing any state, when the frame holds no valid hand.
//
// Pipeline:
// 1. Drop invalid hands; stop if none remain
// 2. Sort by wrist x
// 3. Gate by locked signature and wrist continuity
// 4. Assign spatial roles
// 5. Filter, map and classify each role
// 6. Aggregate primary cursor and gesture
// 7. Check stability
// 8. Notify subscribers
func (p *Processor) Process(frame detector.MultiHandFrame) (Event, bool) {
	hands := make([]candidate, 0, len(frame.Hands))
	for i, h := range frame.Hands {
		if err := h.Validate(); err != nil {
			Logf("processor: dropping hand %d at %.0fms: %v", i, frame.TimestampMs, err)
			continue
		}
		hands = append(hands, candidate{hand: h, wrist: h.Wrist()})
	}
	if len(hands) == 0 {
		return Event{}, false
	}

	sort.SliceStable(hands, func(i, j int) bool {
		return hands[i].wrist.X < hands[j].wrist.X
	})

	event := Event{
		TimestampMs: frame.TimestampMs,
		Hands:       make(map[detector.Role]HandState, 2),
		Detected:    make([]DetectedHand, 0, len(hands)),
	}

	accepted := p.gate(hands, frame.TimestampMs, &event)

	var rawCursors [2]cursor.Point
	var seen [2]bool
	for role, c := range p.assignRoles(accepted) {
		if c == nil {
			continue
		}
		state, raw := p.processHand(detector.Role(role), *c, frame.TimestampMs)
		event.Hands[detector.Role(role)] = state
		event.Detected[c.detected].Role = detector.Role(role)
		rawCursors[role] = raw
		seen[role] = true
		if _, ok := p.locked[detector.Role(role)]; ok {
			p.lastWrist[role] = wristSample{pos: c.wrist, timestampMs: frame.TimestampMs, ok: true}
		}
	}

	for _, r := range detector.Roles {
		if p.present[r] && !seen[r] {
			p.mappers[r].ResetLastPosition()
			p.rawMappers[r].ResetLastPosition()
			p.filters.ResetRole(r)
		}
		p.present[r] = seen[r]
	}

	event.Cursor, event.RawCursor = cursor.Center, cursor.Center
	if h, ok := event.Hands[detector.RoleRight]; ok {
		event.Cursor, event.RawCursor = h.Cursor, rawCursors[detector.RoleRight]
	} else if h, ok := event.Hands[detector.RoleLeft]; ok {
		event.Cursor, event.RawCursor = h.Cursor, rawCursors[detector.RoleLeft]
	}

	event.Gesture = gesture.Neutral
	if h, ok := event.Hands[detector.RoleLeft]; ok {
		event.Gesture = h.Gesture
	} else if h, ok := event.Hands[detector.RoleRight]; ok {
		event.Gesture = h.Gesture
	}

	event.Stable = p.stable(event.Cursor, event.RawCursor)

	for _, s := range p.subscribers {
		s.fn(event)
	}
	return event, true
}

// gate filters hands through the signature lock, recording every hand in
// event.Detected.
func (p *Processor) gate(hands []candidate, timestampMs float64, event *Event) []candidate {
	// Hands are checked against the previous frame's wrists, never against
	// another hand of this frame.
	prev := p.lastWrist
	accepted := make([]candidate, 0, len(hands))
	for i := range hands {
		c := hands[i]
		c.provisional = p.roleForX(c.wrist.X)
		c.detected = len(event.Detected)

		d := DetectedHand{
			Handedness: c.hand.Handedness,
			Wrist:      c.wrist,
			Role:       c.provisional,
			Matched:    true,
		}

		if locked, ok := p.locked[c.provisional]; ok {
			d.Gated = true
			d.Matched = false
			sig, err := signature.Compute(c.hand.Landmarks)
			if err != nil {
				Logf("processor: signature for %s hand: %v", c.provisional, err)
			} else {
				d.Score = signature.Match(sig, locked)
				d.Matched = d.Score >= p.config.SignatureThreshold && p.continuous(prev, c.provisional, c.wrist, timestampMs)
			}
		}

		event.Detected = append(event.Detected, d)
		if !d.Matched {
			continue
		}
		accepted = append(accepted, c)
	}
	return accepted
}

// continuous reports whether wrist stays close to the accepted wrists of
// the previous frame. A stale or missing sample for role imposes no
// constraint; otherwise wrist must be near any fresh sample, so a player
// whose hands both sit on one side keeps both.
func (p *Processor) continuous(prev [2]wristSample, role detector.Role, wrist detector.Point3D, timestampMs float64) bool {
	fresh := func(s wristSample) bool {
		return s.ok && timestampMs-s.timestampMs <= p.config.ContinuityWindowMs
	}
	if !fresh(prev[role]) {
		return true
	}
	for _, s := range prev {
		if fresh(s) && detector.Distance2D(wrist, s.pos) <= p.config.ContinuityThreshold {
			return true
		}
	}
	return false
}

// assignRoles maps sorted hands onto the two roles. Hands between the
// leftmost and rightmost are ignored.
func (p *Processor) assignRoles(sorted []candidate) [2]*candidate {
	var roles [2]*candidate
	switch len(sorted) {
	case 0:
	case 1:
		roles[p.roleForX(sorted[0].wrist.X)] = &sorted[0]
	default:
		roles[detector.RoleLeft] = &sorted[0]
		roles[detector.RoleRight] = &sorted[len(sorted)-1]
	}
	return roles
}

func (p *Processor) roleForX(x float64) detector.Role {
	if x < p.config.SplitX {
		return detector.RoleLeft
	}
	return detector.RoleRight
}

// processHand filters, maps and classifies one role's hand, returning its
// state and its unfiltered cursor.
func (p *Processor) processHand(role detector.Role, c candidate, timestampMs float64) (HandState, cursor.Point) {
	raw := c.hand.Landmarks
	smoothed := p.filters.FilterHand(role, raw, timestampMs)

	state := HandState{
		Role:       role,
		Handedness: c.hand.Handedness,
		Landmarks:  smoothed,
		Cursor:     p.mappers[role].ToCursor(aimPoint(smoothed)),
		Gesture:    p.classifier.Classify(raw, smoothed),
	}
	return state, p.rawMappers[role].ToCursor(aimPoint(raw))
}

// aimPoint is the index fingertip, or the wrist if the tip is missing.
func aimPoint(landmarks []detector.Point3D) cursor.Point {
	if len(landmarks) > detector.IndexTip {
		tip := landmarks[detector.IndexTip]
		return cursor.Point{X: tip.X, Y: tip.Y}
	}
	if len(landmarks) > detector.Wrist {
		w := landmarks[detector.Wrist]
		return cursor.Point{X: w.X, Y: w.Y}
	}
	return cursor.Center
}

// stable compares both cursors against the previous frame's and records
// them. The first event is never stable.
func (p *Processor) stable(smoothed, raw cursor.Point) bool {
	stable := p.havePrevious &&
		cursor.Distance(smoothed, p.lastCursor) <= p.config.StabilityTolerance &&
		cursor.Distance(raw, p.lastRawCursor) <= p.config.StabilityTolerance*rawToleranceFactor

	p.lastCursor, p.lastRawCursor = smoothed, raw
	p.havePrevious = true
	return stable
}
