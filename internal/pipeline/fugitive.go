package pipeline

import (
	"context"
	"image"
	"time"

	"github.com/kozaktomas/pose-guard/internal/constants"
	"github.com/kozaktomas/pose-guard/internal/facematch"
	"github.com/kozaktomas/pose-guard/internal/sink"
)

const fugitiveLabel = "FUGITIVE!"

// frameLimiter allows one firing per window of frames.
type frameLimiter struct {
	window uint64
	fired  bool
	last   uint64
}

func (l *frameLimiter) allow(frame uint64) bool {
	if l.fired && frame-l.last < l.window {
		return false
	}
	l.fired = true
	l.last = frame
	return true
}

func (l *frameLimiter) reset() {
	l.fired = false
	l.last = 0
}

// watchFugitive compares every face in the frame with the active fugitive profile.
// Matches are always drawn; alerts are rate limited by frame number.
func (e *Engine) watchFugitive(ctx context.Context, frame image.Image, canvas *image.RGBA, fd *frameDetections, now time.Time) {
	f := e.reg.Fugitive()
	if f == nil {
		return
	}

	for _, d := range e.detections(ctx, frame, fd) {
		dist := e.opts.Distance(d.Embedding, f.Embedding)
		if !(dist < e.opts.Tolerance) {
			continue
		}

		drawBox(canvas, d.Box, colorRed, 4)
		drawLabel(canvas, d.Box.X, d.Box.Y-10, fugitiveLabel, colorRed)

		if !e.fugitiveLimiter.allow(e.frameNo) {
			continue
		}
		e.alarm.Play()
		path := e.snapshot(ctx, canvas, "FUGITIVE", now)
		e.writeLog(ctx, sink.Record{
			Time:       now,
			Name:       f.Name,
			Action:     constants.ActionDetected,
			Status:     sink.StatusAlert,
			ImagePath:  path,
			Confidence: facematch.Confidence(dist),
		})
		e.emitAlert("Fugitive Detected: "+f.Name, now)
	}
}
