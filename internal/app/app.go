// Package app wires the tracker, calibration session, processor and store
// into the running mudra application.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/ayusman/mudra/internal/calibration"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/cursor"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/processor"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/tracker"
)

// frameBuffer is how many tracker frames may queue ahead of the processing
// loop before new ones are dropped.
const frameBuffer = 4

// Options holds the collaborators of an App. Camera and Detector are
// optional; when nil the configured camera is used and MediaPipe is tried
// before falling back to the mock detector.
type Options struct {
	Config   config.Config
	Store    *store.Store
	Camera   capture.Camera
	Detector detector.Detector
}

// Status is a snapshot of the application for the tray and HTTP API.
type Status struct {
	Enabled         bool               `json:"enabled"`
	Running         bool               `json:"running"`
	Calibration     calibration.Status `json:"calibration"`
	Offset          cursor.Point       `json:"offset"`
	SignatureLocked bool               `json:"signature_locked"`
}

// App is the main application. The processor and calibration session are
// only touched with core held; the processing loop holds it per frame and
// per tick.
type App struct {
	config   config.Config
	store    *store.Store
	camera   capture.Camera
	detector detector.Detector
	tracker  *tracker.Tracker

	core      sync.Mutex
	processor *processor.Processor
	session   *calibration.Session

	mu          sync.RWMutex
	enabled     bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	subscribers map[int]func(processor.Event)
	nextID      int
}

// New creates an App. The latest stored calibration offset, if any, is
// applied to the processor so the cursor is centred before the player
// recalibrates.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	proc, err := processor.New(cfg.Processor)
	if err != nil {
		return nil, err
	}
	session, err := calibration.NewSession(cfg.Calibration, gesture.NewPoseEstimator(cfg.Processor.Gesture))
	if err != nil {
		return nil, err
	}

	a := &App{
		config:      cfg,
		store:       opts.Store,
		camera:      opts.Camera,
		detector:    opts.Detector,
		processor:   proc,
		session:     session,
		enabled:     true,
		subscribers: make(map[int]func(processor.Event)),
	}

	if a.camera == nil {
		a.camera = capture.NewCamera(cfg.Camera)
	}

	// Try MediaPipe first, fall back to mock detector
	if a.detector == nil {
		if mp, err := detector.NewMediaPipeDetector(cfg.Detector); err == nil {
			a.detector = mp
			log.Println("Using MediaPipe hand detection")
		} else {
			log.Printf("MediaPipe not available (%v), using mock detector", err)
			a.detector = detector.NewMockDetector()
		}
	}

	a.tracker = tracker.New(cfg.Tracker, a.camera, a.detector)
	proc.Subscribe(a.publish)
	session.OnLock(a.onLock)

	if err := a.restoreCalibration(); err != nil {
		log.Printf("Failed to restore calibration: %v", err)
	}

	return a, nil
}

func (a *App) restoreCalibration() error {
	if a.store == nil {
		return nil
	}
	latest, err := a.store.Calibrations().Latest()
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	a.processor.SetCalibration(cursor.Point{X: latest.OffsetX, Y: latest.OffsetY})
	log.Printf("Restored calibration %s (offset %.3f, %.3f)", latest.ID, latest.OffsetX, latest.OffsetY)
	return nil
}

// SetEnabled enables or disables processing. Frames and calibration ticks
// are discarded while disabled.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled returns whether processing is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// IsRunning reports whether the pipeline has been started.
func (a *App) IsRunning() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cancel != nil
}

// Subscribe registers fn for every processed event. fn runs on the
// processing goroutine and must not block. The returned function detaches
// it.
func (a *App) Subscribe(fn func(processor.Event)) (unsubscribe func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.nextID
	a.nextID++
	a.subscribers[id] = fn

	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.subscribers, id)
	}
}

func (a *App) publish(event processor.Event) {
	a.mu.RLock()
	subs := make([]func(processor.Event), 0, len(a.subscribers))
	for _, fn := range a.subscribers {
		subs = append(subs, fn)
	}
	a.mu.RUnlock()

	for _, fn := range subs {
		fn(event)
	}
}

// Start begins the tracker and the processing loop.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Don't start if already running
	if a.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	frames := make(chan detector.MultiHandFrame, frameBuffer)
	unsubscribe := a.tracker.Subscribe(func(f detector.MultiHandFrame) {
		select {
		case frames <- f:
		default:
		}
	})

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		defer unsubscribe()
		if err := a.tracker.Run(ctx); err != nil {
			log.Printf("Tracker stopped: %v", err)
		}
	}()
	go func() {
		defer a.wg.Done()
		a.runPipeline(ctx, frames)
	}()

	log.Println("Processing pipeline started")
	return nil
}

// Stop halts the pipeline and releases the detector. It waits for the
// tracker and the processing loop to return.
func (a *App) Stop() {
	a.mu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	a.wg.Wait()

	if err := a.detector.Close(); err != nil {
		log.Printf("Error closing detector: %v", err)
	}

	log.Println("Processing pipeline stopped")
}

// Recalibrate discards the current calibration progress or lock and clears
// the signature lock. The last offset stays applied until a new lock.
func (a *App) Recalibrate() {
	a.core.Lock()
	defer a.core.Unlock()

	a.session.Reset()
	a.processor.ClearSignatureLock()
	log.Println("Calibration restarted")
}

// ClearSignatureLock stops identity gating without touching the offset.
func (a *App) ClearSignatureLock() {
	a.core.Lock()
	defer a.core.Unlock()

	a.processor.ClearSignatureLock()
	log.Println("Signature lock cleared")
}

// Status returns the current application snapshot.
func (a *App) Status() Status {
	a.mu.RLock()
	enabled, running := a.enabled, a.cancel != nil
	a.mu.RUnlock()

	a.core.Lock()
	defer a.core.Unlock()

	return Status{
		Enabled:         enabled,
		Running:         running,
		Calibration:     a.session.Status(),
		Offset:          a.processor.Calibration(),
		SignatureLocked: a.processor.SignatureLocked(),
	}
}

// History returns up to limit stored calibrations, newest first.
func (a *App) History(limit int) ([]*store.Calibration, error) {
	if a.store == nil {
		return nil, nil
	}
	return a.store.Calibrations().List(limit)
}

// Tracker returns the frame source.
func (a *App) Tracker() *tracker.Tracker {
	return a.tracker
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	return a.camera
}
