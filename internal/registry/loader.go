package registry

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/kozaktomas/pose-guard/internal/facematch"
	"github.com/kozaktomas/pose-guard/internal/fingerprint"
)

// ErrNoFace is returned when an image contains no detectable face.
var ErrNoFace = errors.New("no face detected")

// EmbeddingCache stores profile embeddings keyed by name and image fingerprint.
type EmbeddingCache interface {
	Get(ctx context.Context, name string, fp fingerprint.Fingerprint) ([]float32, bool, error)
	Put(ctx context.Context, name string, fp fingerprint.Fingerprint, embedding []float32) error
}

// EmbedFirstFace detects faces in img and embeds the first one.
func EmbedFirstFace(ctx context.Context, faces fingerprint.FaceService, img image.Image) ([]float32, facematch.Box, error) {
	boxes, err := faces.Detect(ctx, img)
	if err != nil {
		return nil, facematch.Box{}, err
	}
	if len(boxes) == 0 {
		return nil, facematch.Box{}, ErrNoFace
	}
	emb, err := faces.Embed(ctx, img, boxes[0])
	if err != nil {
		return nil, facematch.Box{}, err
	}
	return emb, boxes[0], nil
}

// LoadResult is the outcome of a profile reload.
type LoadResult struct {
	Targets []*Target
	// Warnings lists per-profile problems; the affected profiles are skipped.
	Warnings []error
}

// Loader builds targets from the profile directory.
type Loader struct {
	Faces fingerprint.FaceService
	Cache EmbeddingCache // optional

	// OnProgress is called after each profile with the number processed so far.
	OnProgress func(done, total int)
}

// Load scans dir and embeds every profile. Profiles that cannot be read or contain
// no face are reported as warnings. Only a directory read error fails the load.
func (l *Loader) Load(ctx context.Context, dir string, now time.Time) (*LoadResult, error) {
	profiles, err := ScanProfiles(dir)
	if err != nil {
		return nil, err
	}

	result := &LoadResult{}
	for i, p := range profiles {
		emb, err := l.embedProfile(ctx, p, result)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			result.Warnings = append(result.Warnings, fmt.Errorf("%s: %w", p.Path, err))
		} else {
			result.Targets = append(result.Targets, NewTarget(p.Name, emb, now))
		}
		if l.OnProgress != nil {
			l.OnProgress(i+1, len(profiles))
		}
	}
	return result, nil
}

// embedProfile returns the embedding for p. Cache failures are added to result as warnings.
func (l *Loader) embedProfile(ctx context.Context, p Profile, result *LoadResult) ([]float32, error) {
	f, err := os.Open(p.Path)
	if err != nil {
		return nil, fmt.Errorf("opening profile: %w", err)
	}
	img, err := fingerprint.DecodeImage(f)
	f.Close()
	if err != nil {
		return nil, err
	}

	var fp fingerprint.Fingerprint
	if l.Cache != nil {
		fp = fingerprint.Of(img)
		emb, ok, err := l.Cache.Get(ctx, p.Name, fp)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Errorf("%s: reading embedding cache: %w", p.Path, err))
		} else if ok {
			return emb, nil
		}
	}

	emb, _, err := EmbedFirstFace(ctx, l.Faces, img)
	if err != nil {
		return nil, err
	}

	if l.Cache != nil {
		if err := l.Cache.Put(ctx, p.Name, fp, emb); err != nil {
			result.Warnings = append(result.Warnings, fmt.Errorf("%s: caching embedding: %w", p.Path, err))
		}
	}
	return emb, nil
}
