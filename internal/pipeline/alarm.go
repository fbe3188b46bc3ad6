package pipeline

import (
	"io"
	"sync"
)

// Alarm plays the audible alert tone.
type Alarm interface {
	Play()
}

// BellAlarm writes the terminal bell character.
type BellAlarm struct {
	mu sync.Mutex
	W  io.Writer
}

// Play implements Alarm.
func (b *BellAlarm) Play() {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, _ = io.WriteString(b.W, "\a")
}

type silentAlarm struct{}

func (silentAlarm) Play() {}
