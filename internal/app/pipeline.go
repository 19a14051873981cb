package app

import (
	"context"
	"log"
	"time"

	"github.com/ayusman/mudra/internal/calibration"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/store"
)

// runPipeline is the processing loop. It is the only goroutine that feeds
// the calibration session and the processor.
//
// Pipeline logic:
// 1. Receive a tracker frame
// 2. While calibration has not locked, feed the frame to the session
// 3. Run the frame through the processor, which publishes the event
// 4. On every calibration tick, advance the session on the tracker clock
// 5. On lock, hand the offset and signatures to the processor and persist
// the calibration
func (a *App) runPipeline(ctx context.Context, frames <-chan detector.MultiHandFrame) {
	ticker := time.NewTicker(time.Duration(a.config.Calibration.TickIntervalMs * float64(time.Millisecond)))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-frames:
			if !a.IsEnabled() {
				continue
			}
			a.handleFrame(frame)
		case <-ticker.C:
			if !a.IsEnabled() {
				continue
			}
			a.tick(a.tracker.ElapsedMs())
		}
	}
}

func (a *App) handleFrame(frame detector.MultiHandFrame) {
	a.core.Lock()
	defer a.core.Unlock()

	if a.session.State() != calibration.Locked {
		a.session.ObserveFrame(frame)
	}
	a.processor.Process(frame)
}

func (a *App) tick(nowMs float64) {
	a.core.Lock()
	defer a.core.Unlock()

	if a.session.State() == calibration.Locked {
		return
	}
	a.session.Tick(nowMs)
}

// onLock runs inside Session.Tick with core held.
func (a *App) onLock(result calibration.Result) {
	a.processor.SetCalibration(result.Offset)
	if len(result.Signatures) > 0 {
		a.processor.SetLockedSignatures(result.Signatures)
	}

	if a.store == nil {
		return
	}

	record := &store.Calibration{
		ID:         result.ID.String(),
		OffsetX:    result.Offset.X,
		OffsetY:    result.Offset.Y,
		Samples:    result.Samples,
		DurationMs: a.config.Calibration.StabilityRequiredMs,
	}
	for _, role := range detector.Roles {
		if _, ok := result.Signatures[role]; ok {
			record.LockedRoles = append(record.LockedRoles, role.String())
		}
	}

	if err := a.store.Calibrations().Create(record); err != nil {
		log.Printf("Failed to save calibration %s: %v", record.ID, err)
	}
}
