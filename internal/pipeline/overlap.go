package pipeline

import (
	"github.com/kozaktomas/pose-guard/internal/facematch"
	"github.com/kozaktomas/pose-guard/internal/registry"
)

// resolveOverlaps hides the lower-confidence target of every visible pair whose boxes
// overlap by more than threshold. Pairs are visited as (i, j), i < j, in the given order
// and each suppression takes effect before the next pair is checked. On equal confidence
// the earlier target is kept.
func resolveOverlaps(targets []*registry.Target, threshold float64) []*registry.Target {
	var suppressed []*registry.Target
	for i := 0; i < len(targets); i++ {
		for j := i + 1; j < len(targets); j++ {
			a, b := targets[i], targets[j]
			if !a.Visible || !b.Visible {
				continue
			}
			if facematch.IoU(a.Box, b.Box) <= threshold {
				continue
			}
			loser := b
			if a.Confidence < b.Confidence {
				loser = a
			}
			loser.Hide()
			suppressed = append(suppressed, loser)
		}
	}
	return suppressed
}
