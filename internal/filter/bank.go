package filter

import "github.com/ayusman/mudra/internal/detector"

// Axis identifies one coordinate of a landmark.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// FilteredLandmarks are the landmark indices smoothed by a Bank. Gesture and
// cursor logic only read these points; all others pass through unfiltered.
var FilteredLandmarks = []int{
	detector.Wrist,
	detector.ThumbMCP,
	detector.ThumbTip,
	detector.IndexTip,
	detector.MiddleTip,
	detector.RingTip,
	detector.PinkyTip,
}

// ChannelKey identifies one scalar filter channel.
type ChannelKey struct {
	Role  detector.Role
	Index int
	Axis  Axis
}

// Bank owns one OneEuro filter per channel, created on first use.
// A Bank is not safe for concurrent use.
type Bank struct {
	config   Config
	channels map[ChannelKey]*OneEuro
	filtered [detector.NumLandmarks]bool
}

// NewBank creates an empty filter bank.
func NewBank(config Config) *Bank {
	b := &Bank{
		config:   config,
		channels: make(map[ChannelKey]*OneEuro),
	}
	for _, idx := range FilteredLandmarks {
		b.filtered[idx] = true
	}
	return b
}

// Channel returns the filter for key, creating it if needed.
func (b *Bank) Channel(key ChannelKey) *OneEuro {
	f, ok := b.channels[key]
	if !ok {
		f = NewOneEuro(b.config)
		b.channels[key] = f
	}
	return f
}

// Len returns the number of channels created so far.
func (b *Bank) Len() int {
	return len(b.channels)
}

// FilterHand returns a copy of landmarks with the curated points smoothed
// through role's channels.
func (b *Bank) FilterHand(role detector.Role, landmarks []detector.Point3D, timestampMs float64) []detector.Point3D {
	out := make([]detector.Point3D, len(landmarks))
	copy(out, landmarks)

	for i := range out {
		if i >= detector.NumLandmarks || !b.filtered[i] {
			continue
		}
		p := out[i]
		out[i] = detector.Point3D{
			X: b.Channel(ChannelKey{Role: role, Index: i, Axis: AxisX}).Filter(p.X, timestampMs),
			Y: b.Channel(ChannelKey{Role: role, Index: i, Axis: AxisY}).Filter(p.Y, timestampMs),
			Z: b.Channel(ChannelKey{Role: role, Index: i, Axis: AxisZ}).Filter(p.Z, timestampMs),
		}
	}
	return out
}

// ResetRole returns every channel of role to its first-sample state.
func (b *Bank) ResetRole(role detector.Role) {
	for key, f := range b.channels {
		if key.Role == role {
			f.Reset()
		}
	}
}
