package pipeline

import (
	"context"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/kozaktomas/pose-guard/internal/constants"
	"github.com/kozaktomas/pose-guard/internal/sink"
)

// reidentify files every unclaimed detection under a session person record.
func (e *Engine) reidentify(ctx context.Context, canvas *image.RGBA, dets []detection, used []bool, now time.Time) {
	persons := e.reg.Persons()
	for i, d := range dets {
		if used[i] {
			continue
		}
		rec, created := persons.Observe(d.Embedding, e.opts.Distance, e.opts.Tolerance, now)
		if !created {
			drawBox(canvas, d.Box, colorCyan, 2)
			drawLabel(canvas, d.Box.X, d.Box.Y-10, "PRO: "+rec.ID, colorCyan)
			continue
		}

		e.logger.Info("new person", zap.String("id", rec.ID), zap.Int("persons", persons.Len()))
		e.writeLog(ctx, sink.Record{
			Time:      now,
			Name:      rec.ID,
			Action:    constants.ActionNotAvailable,
			Status:    sink.StatusDetected,
			ImagePath: constants.PathNotAvailable,
		})
	}
}
