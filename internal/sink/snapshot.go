package sink

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/pose-guard/internal/facematch"
	"github.com/kozaktomas/pose-guard/internal/fingerprint"
)

const snapshotLayout = "20060102_150405"

// JPEGSnapshots writes snapshots as <dir>/<prefix>_<yyyyMMdd_HHmmss>.jpg.
type JPEGSnapshots struct {
	dir     string
	quality int
}

// NewJPEGSnapshots creates a snapshot sink writing into dir.
func NewJPEGSnapshots(dir string, quality int) *JPEGSnapshots {
	return &JPEGSnapshots{dir: dir, quality: quality}
}

// Save implements SnapshotSink. A second snapshot with the same prefix in the same
// second gets a numeric suffix instead of overwriting the first.
func (s *JPEGSnapshots) Save(_ context.Context, img image.Image, prefix string, at time.Time) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating snapshot directory: %w", err)
	}

	data, err := fingerprint.EncodeJPEG(img, s.quality)
	if err != nil {
		return "", err
	}

	base := facematch.SafeName(prefix) + "_" + at.Format(snapshotLayout)
	path := filepath.Join(s.dir, base+".jpg")
	for n := 2; ; n++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if errors.Is(err, os.ErrExist) {
			path = filepath.Join(s.dir, base+"_"+strconv.Itoa(n)+".jpg")
			continue
		}
		if err != nil {
			return "", fmt.Errorf("creating snapshot: %w", err)
		}
		_, werr := f.Write(data)
		cerr := f.Close()
		if err := errors.Join(werr, cerr); err != nil {
			return "", fmt.Errorf("writing snapshot: %w", err)
		}
		return path, nil
	}
}

// PruneSnapshots removes .jpg files in dir last modified before now minus retention.
// It returns the number of files removed.
func PruneSnapshots(dir string, retention time.Duration, now time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading snapshot directory: %w", err)
	}

	cutoff := now.Add(-retention)
	removed := 0
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".jpg") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
