// Package tracker reads camera frames, runs hand detection on them and
// publishes timestamped multi-hand frames.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
)

// Config controls the capture rate.
type Config struct {
	// ActiveFPS is the rate while hands are in view.
	ActiveFPS int `json:"active_fps"`
	// IdleFPS is the rate after no hand has been seen for IdleTimeoutMs.
	IdleFPS       int `json:"idle_fps"`
	IdleTimeoutMs int `json:"idle_timeout_ms"`
}

// DefaultConfig returns 30 FPS active, 5 FPS idle after two seconds.
func DefaultConfig() Config {
	return Config{
		ActiveFPS:     30,
		IdleFPS:       5,
		IdleTimeoutMs: 2000,
	}
}

// Validate checks the rates.
func (c Config) Validate() error {
	var errs []error
	if c.ActiveFPS <= 0 {
		errs = append(errs, fmt.Errorf("active_fps must be positive, got %d", c.ActiveFPS))
	}
	if c.IdleFPS <= 0 || c.IdleFPS > c.ActiveFPS {
		errs = append(errs, fmt.Errorf("idle_fps must be in (0, active_fps], got %d", c.IdleFPS))
	}
	if c.IdleTimeoutMs <= 0 {
		errs = append(errs, fmt.Errorf("idle_timeout_ms must be positive, got %d", c.IdleTimeoutMs))
	}
	return errors.Join(errs...)
}

// Tracker is the frame source for the processing loop.
type Tracker struct {
	config   Config
	camera   capture.Camera
	detector detector.Detector

	mu          sync.Mutex
	subscribers map[int]func(detector.MultiHandFrame)
	nextID      int
	frames      int
	start       time.Time
}

// New creates a tracker over camera and det. Neither is opened or closed by
// New; Run opens the camera and closes it on return.
func New(config Config, camera capture.Camera, det detector.Detector) *Tracker {
	return &Tracker{
		config:      config,
		camera:      camera,
		detector:    det,
		subscribers: make(map[int]func(detector.MultiHandFrame)),
	}
}

// Subscribe registers fn for every published frame. fn runs on the Run
// goroutine and must not block. The returned function detaches it.
func (t *Tracker) Subscribe(fn func(detector.MultiHandFrame)) (unsubscribe func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextID
	t.nextID++
	t.subscribers[id] = fn

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.subscribers, id)
	}
}

// Frames returns the number of frames published so far.
func (t *Tracker) Frames() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frames
}

// ElapsedMs returns the time since Run started, in the timebase of published
// frame timestamps. It is zero before Run starts.
func (t *Tracker) ElapsedMs() float64 {
	t.mu.Lock()
	start := t.start
	t.mu.Unlock()
	if start.IsZero() {
		return 0
	}
	return sinceMs(start, time.Now())
}

// Run captures until ctx is cancelled. Frames with no hands are published
// too, so consumers see the player leave.
//
// Loop:
// 1. Read a frame at the current rate
// 2. Detect hands and publish them with a millisecond timestamp
// 3. Drop to IdleFPS after IdleTimeoutMs without hands; return to
// ActiveFPS as soon as a hand appears
func (t *Tracker) Run(ctx context.Context) error {
	if err := t.camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	defer func() {
		if err := t.camera.Close(); err != nil {
			log.Printf("Error closing camera: %v", err)
		}
	}()

	start := time.Now()
	t.mu.Lock()
	t.start = start
	t.mu.Unlock()

	lastHands := start
	active := true
	t.camera.SetFPS(t.config.ActiveFPS)

	ticker := time.NewTicker(interval(t.config.ActiveFPS))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		frame, err := t.camera.ReadFrame()
		if err != nil {
			if errors.Is(err, capture.ErrCameraNotOpen) {
				return err
			}
			log.Printf("Error reading frame: %v", err)
			continue
		}

		hands, err := t.detector.Detect(frame)
		frame.Close()
		if err != nil {
			log.Printf("Error detecting hands: %v", err)
			continue
		}

		now := time.Now()
		t.publish(detector.MultiHandFrame{
			TimestampMs: sinceMs(start, now),
			Hands:       hands,
		}.Stamp())

		switch {
		case len(hands) > 0:
			lastHands = now
			if !active {
				active = true
				t.camera.SetFPS(t.config.ActiveFPS)
				ticker.Reset(interval(t.config.ActiveFPS))
				log.Println("Hands in view, switched to active rate")
			}
		case active && now.Sub(lastHands) > time.Duration(t.config.IdleTimeoutMs)*time.Millisecond:
			active = false
			t.camera.SetFPS(t.config.IdleFPS)
			ticker.Reset(interval(t.config.IdleFPS))
			log.Println("No hands in view, switched to idle rate")
		}
	}
}

func (t *Tracker) publish(frame detector.MultiHandFrame) {
	t.mu.Lock()
	t.frames++
	subs := make([]func(detector.MultiHandFrame), 0, len(t.subscribers))
	for _, fn := range t.subscribers {
		subs = append(subs, fn)
	}
	t.mu.Unlock()

	for _, fn := range subs {
		fn(frame)
	}
}

func sinceMs(start, now time.Time) float64 {
	return float64(now.Sub(start).Microseconds()) / 1000
}

func interval(fps int) time.Duration {
	return time.Second / time.Duration(fps)
}
