// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Face matching constants
const (
	// DefaultTolerance is the default maximum embedding distance for a face to
	// count as the same identity. Comparisons are strict: distance < tolerance.
	DefaultTolerance = 0.5

	// OverlapIoUThreshold is the IoU above which two tracked identities are
	// considered the same physical face and the lower-confidence one is dropped
	OverlapIoUThreshold = 0.35

	// IoUEpsilon keeps IoU finite for degenerate (zero-area) boxes
	IoUEpsilon = 1e-5

	// FaceChipSize is the edge length of the normalized face chip stored as a profile
	FaceChipSize = 150

	// FaceChipPadding is the relative padding added around a face box before cropping
	FaceChipPadding = 0.25
)

// Alerting constants
const (
	// DefaultAlertInterval is the default absence time before an alert fires
	DefaultAlertInterval = 10 * time.Second

	// AlertCooldown is the minimum time between consecutive alert tones for one target
	AlertCooldown = 2 * time.Second

	// WarningRemaining is the remaining countdown below which the timeout overlay turns red
	WarningRemaining = 3 * time.Second

	// FugitiveAlertWindow is the number of frames between two fugitive alerts
	FugitiveAlertWindow = 60
)

// Processing constants
const (
	// DefaultRedetectInterval is the default number of frames between full re-detection cycles
	DefaultRedetectInterval = 30

	// FrameQueueSize is the capacity of the pipeline inbox; frames beyond it are dropped
	FrameQueueSize = 8

	// EventChannelBuffer is the buffer size for event listener channels
	EventChannelBuffer = 64

	// DefaultSnapshotRetentionDays is how long alert snapshots are kept on disk
	DefaultSnapshotRetentionDays = 30

	// SnapshotJPEGQuality is the JPEG quality used for snapshots and profile chips
	SnapshotJPEGQuality = 90
)

// Log placeholders used where no action classification exists
const (
	ActionNotAvailable = "N/A"
	ActionNone         = "NONE"
	ActionDetected     = "DETECTED"
	PathNotAvailable   = "N/A"
)
