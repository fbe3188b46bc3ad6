package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

const (
	// EventLogFile is the CSV file name inside the log directory.
	EventLogFile = "events.csv"

	timestampLayout = "2006-01-02 15:04:05"
)

var csvHeader = []string{"Timestamp", "Name", "Action", "Status", "Image_Path", "Confidence"}

// CSVLog appends records to <dir>/events.csv.
type CSVLog struct {
	mu   sync.Mutex
	file *os.File
	w    *csv.Writer
}

// OpenCSVLog opens (or creates) the event log in dir. A new file starts with a header row.
func OpenCSVLog(dir string) (*CSVLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	path := filepath.Join(dir, EventLogFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat event log: %w", err)
	}

	l := &CSVLog{file: f, w: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := l.writeRow(csvHeader); err != nil {
			f.Close()
			return nil, err
		}
	}
	return l, nil
}

// Write implements LogSink.
func (l *CSVLog) Write(_ context.Context, rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.writeRow([]string{
		rec.Time.Format(timestampLayout),
		rec.Name,
		rec.Action,
		rec.Status,
		rec.ImagePath,
		strconv.FormatFloat(rec.Confidence, 'f', 4, 64),
	})
}

func (l *CSVLog) writeRow(row []string) error {
	if err := l.w.Write(row); err != nil {
		return fmt.Errorf("writing event log: %w", err)
	}
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		return fmt.Errorf("flushing event log: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (l *CSVLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
