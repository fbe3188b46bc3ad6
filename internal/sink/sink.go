// Package sink persists guard events: the append-only event log and alert snapshots.
package sink

import (
	"context"
	"errors"
	"image"
	"time"
)

// Event statuses written to the log.
const (
	StatusAlert        = "ALERT"
	StatusMissing      = "MISSING"
	StatusAlertTimeout = "ALERT_TIMEOUT"
	StatusDetected     = "DETECTED"
)

// Record is one line of the event log.
type Record struct {
	Time       time.Time `json:"timestamp"`
	Name       string    `json:"name"`
	Action     string    `json:"action"`
	Status     string    `json:"status"`
	ImagePath  string    `json:"image_path"`
	Confidence float64   `json:"confidence"`
}

// LogSink appends event records.
type LogSink interface {
	Write(ctx context.Context, rec Record) error
}

// SnapshotSink stores an annotated frame and returns the path it was written to.
type SnapshotSink interface {
	Save(ctx context.Context, img image.Image, prefix string, at time.Time) (string, error)
}

// MultiLog fans a record out to several sinks. Every sink is attempted.
type MultiLog []LogSink

// Write implements LogSink.
func (m MultiLog) Write(ctx context.Context, rec Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
