package sink

import (
	"context"
	"encoding/csv"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestCSVLog_HeaderAndAppend(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.Local)

	l, err := OpenCSVLog(dir)
	if err != nil {
		t.Fatalf("OpenCSVLog() error: %v", err)
	}
	if err := l.Write(context.Background(), Record{Time: at, Name: "Ann", Action: "N/A", Status: StatusMissing, ImagePath: "N/A"}); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	// Reopening must not repeat the header.
	l, err = OpenCSVLog(dir)
	if err != nil {
		t.Fatal(err)
	}
	_ = l.Write(context.Background(), Record{Time: at, Name: "Bob, Jr", Action: "NONE", Status: StatusAlertTimeout, ImagePath: "snap.jpg", Confidence: 0.75})
	_ = l.Close()

	f, err := os.Open(filepath.Join(dir, EventLogFile))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("reading csv: %v", err)
	}

	want := [][]string{
		{"Timestamp", "Name", "Action", "Status", "Image_Path", "Confidence"},
		{"2024-05-06 07:08:09", "Ann", "N/A", "MISSING", "N/A", "0.0000"},
		{"2024-05-06 07:08:09", "Bob, Jr", "NONE", "ALERT_TIMEOUT", "snap.jpg", "0.7500"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("csv rows mismatch (-want +got):\n%s", diff)
	}
}

func TestJPEGSnapshots_Save(t *testing.T) {
	dir := t.TempDir()
	s := NewJPEGSnapshots(dir, 80)
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	p1, err := s.Save(context.Background(), img, "ALERT_Ann", at)
	if err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if want := filepath.Join(dir, "ALERT_Ann_20240102_030405.jpg"); p1 != want {
		t.Errorf("path = %s, want %s", p1, want)
	}

	p2, err := s.Save(context.Background(), img, "ALERT_Ann", at)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "ALERT_Ann_20240102_030405_2.jpg"); p2 != want {
		t.Errorf("second path = %s, want %s", p2, want)
	}
}

func TestPruneSnapshots(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	files := map[string]time.Duration{
		"old.jpg":   -40 * 24 * time.Hour,
		"fresh.jpg": -time.Hour,
		"old.txt":   -40 * 24 * time.Hour,
	}
	for name, age := range files {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.Chtimes(p, now.Add(age), now.Add(age)); err != nil {
			t.Fatal(err)
		}
	}

	n, err := PruneSnapshots(dir, 30*24*time.Hour, now)
	if err != nil {
		t.Fatalf("PruneSnapshots() error: %v", err)
	}
	if n != 1 {
		t.Errorf("removed %d files, want 1", n)
	}
	if _, err := os.Stat(filepath.Join(dir, "old.jpg")); !errors.Is(err, os.ErrNotExist) {
		t.Error("old.jpg should be removed")
	}
	if _, err := os.Stat(filepath.Join(dir, "old.txt")); err != nil {
		t.Error("non-jpg files must be kept")
	}

	if n, err := PruneSnapshots(filepath.Join(dir, "missing"), time.Hour, now); n != 0 || err != nil {
		t.Errorf("missing dir: %d, %v", n, err)
	}
}

type recordingLog struct {
	records []Record
	err     error
}

func (r *recordingLog) Write(_ context.Context, rec Record) error {
	r.records = append(r.records, rec)
	return r.err
}

func TestMultiLog(t *testing.T) {
	a := &recordingLog{}
	b := &recordingLog{err: errors.New("disk full")}
	c := &recordingLog{}

	err := MultiLog{a, b, c}.Write(context.Background(), Record{Name: "x"})
	if err == nil || err.Error() != "disk full" {
		t.Errorf("expected joined error, got %v", err)
	}
	if len(a.records) != 1 || len(c.records) != 1 {
		t.Error("every sink must receive the record")
	}
}
