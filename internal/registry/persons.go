package registry

import (
	"strconv"
	"time"

	"github.com/kozaktomas/pose-guard/internal/facematch"
)

const personPrefix = "Person_"

// PersonRecord is an unknown face seen in pro mode. The embedding is the first sample and never updated.
type PersonRecord struct {
	ID        string
	Embedding []float32
	FirstSeen time.Time
	LastSeen  time.Time
	Count     int
}

// PersonBook stores person records in creation order.
// With a positive limit the least recently seen record is evicted to make room for a new one.
type PersonBook struct {
	records []*PersonRecord
	counter int
	limit   int
}

// NewPersonBook creates a book; limit <= 0 means unbounded.
func NewPersonBook(limit int) *PersonBook {
	return &PersonBook{limit: limit}
}

// Observe matches embedding against existing records. The first record in creation order
// closer than tolerance is refreshed and returned; otherwise a new record is created.
func (b *PersonBook) Observe(embedding []float32, distance facematch.DistanceFunc, tolerance float64, now time.Time) (*PersonRecord, bool) {
	for _, p := range b.records {
		if distance(embedding, p.Embedding) < tolerance {
			p.LastSeen = now
			p.Count++
			return p, false
		}
	}
	return b.create(embedding, now), true
}

func (b *PersonBook) create(embedding []float32, now time.Time) *PersonRecord {
	if b.limit > 0 && len(b.records) >= b.limit {
		b.evictOldest()
	}
	b.counter++
	p := &PersonRecord{
		ID:        personPrefix + strconv.Itoa(b.counter),
		Embedding: embedding,
		FirstSeen: now,
		LastSeen:  now,
		Count:     1,
	}
	b.records = append(b.records, p)
	return p
}

func (b *PersonBook) evictOldest() {
	oldest := 0
	for i, p := range b.records {
		if p.LastSeen.Before(b.records[oldest].LastSeen) {
			oldest = i
		}
	}
	b.records = append(b.records[:oldest], b.records[oldest+1:]...)
}

// Len returns the number of live records.
func (b *PersonBook) Len() int {
	return len(b.records)
}

// Records returns the records in creation order.
func (b *PersonBook) Records() []*PersonRecord {
	return b.records
}
