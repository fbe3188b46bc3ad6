package pipeline

import (
	"context"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/kozaktomas/pose-guard/internal/facematch"
	"github.com/kozaktomas/pose-guard/internal/registry"
)

// detection is a face found in the current frame.
type detection struct {
	Box       facematch.Box
	Embedding []float32
}

// match pairs a target with the detection it claimed.
type match struct {
	Target    *registry.Target
	Detection int
	Distance  float64
}

// matchTargets assigns detections to targets greedily. Targets are served in the given
// order; each takes the closest unused detection strictly below tolerance, and on equal
// distances the lowest detection index. The returned slice flags detections that were claimed.
func matchTargets(targets []*registry.Target, dets []detection, distance facematch.DistanceFunc, tolerance float64) ([]match, []bool) {
	used := make([]bool, len(dets))
	var matches []match
	for _, t := range targets {
		best := -1
		bestDist := tolerance
		for i, d := range dets {
			if used[i] {
				continue
			}
			if dist := distance(d.Embedding, t.Embedding); dist < bestDist {
				best, bestDist = i, dist
			}
		}
		if best < 0 {
			continue
		}
		used[best] = true
		matches = append(matches, match{Target: t, Detection: best, Distance: bestDist})
	}
	return matches, used
}

// frameDetections runs detection and embedding at most once per frame.
type frameDetections struct {
	done bool
	dets []detection
}

func (e *Engine) detections(ctx context.Context, frame image.Image, fd *frameDetections) []detection {
	if fd.done {
		return fd.dets
	}
	fd.done = true

	boxes, err := e.faces.Detect(ctx, frame)
	if err != nil {
		e.logger.Warn("face detection failed", zap.Uint64("frame", e.frameNo), zap.Error(err))
		return nil
	}
	for _, box := range boxes {
		emb, err := e.faces.Embed(ctx, frame, box)
		if err != nil {
			e.logger.Warn("face embedding failed", zap.Uint64("frame", e.frameNo), zap.Any("box", box), zap.Error(err))
			continue
		}
		fd.dets = append(fd.dets, detection{Box: box, Embedding: emb})
	}
	return fd.dets
}

// redetect runs a full re-detection cycle: match selected targets, restart their
// trackers and hand leftovers to re-identification.
func (e *Engine) redetect(ctx context.Context, frame image.Image, canvas *image.RGBA, fd *frameDetections, now time.Time) {
	dets := e.detections(ctx, frame, fd)
	if len(dets) == 0 {
		return
	}

	matches, used := matchTargets(e.reg.Selected(), dets, e.opts.Distance, e.opts.Tolerance)
	for _, m := range matches {
		t := m.Target
		box := dets[m.Detection].Box

		tr := e.newTracker()
		if err := tr.Init(frame, box); err != nil {
			e.logger.Warn("tracker init failed", zap.String("target", t.Name), zap.Error(err))
			t.Hide()
			continue
		}
		t.Box = box
		t.Visible = true
		t.Confidence = facematch.Confidence(m.Distance)
		t.Tracker = tr
	}

	if e.proMode {
		e.reidentify(ctx, canvas, dets, used, now)
	}
}

// updateTrackers advances every selected target that still holds a tracker.
func (e *Engine) updateTrackers(frame image.Image) {
	for _, t := range e.reg.Selected() {
		if t.Tracker == nil {
			continue
		}
		box, ok := t.Tracker.Update(frame)
		if !ok {
			t.Hide()
			continue
		}
		t.Box = box
	}
}
