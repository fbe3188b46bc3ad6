package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/kozaktomas/pose-guard/internal/sink"
)

// EventRepository is a sink.LogSink backed by the guard_events table.
type EventRepository struct {
	pool *Pool
}

// NewEventRepository creates a new event repository.
func NewEventRepository(pool *Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

// Write inserts one event log record.
func (r *EventRepository) Write(ctx context.Context, rec sink.Record) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO guard_events (event_time, name, action, status, image_path, confidence)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.Time, rec.Name, rec.Action, rec.Status, rec.ImagePath, rec.Confidence)
	if err != nil {
		return fmt.Errorf("insert guard event: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first. A non-empty statuses list filters by status.
func (r *EventRepository) Recent(ctx context.Context, limit int, statuses []string) ([]sink.Record, error) {
	query := `
		SELECT event_time, name, action, status, image_path, confidence
		FROM guard_events
		WHERE cardinality($1::text[]) = 0 OR status = ANY($1)
		ORDER BY event_time DESC, id DESC
		LIMIT $2
	`
	if statuses == nil {
		statuses = []string{}
	}
	rows, err := r.pool.Query(ctx, query, pq.Array(statuses), limit)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	defer rows.Close()

	var out []sink.Record
	for rows.Next() {
		var rec sink.Record
		if err := rows.Scan(&rec.Time, &rec.Name, &rec.Action, &rec.Status, &rec.ImagePath, &rec.Confidence); err != nil {
			return nil, fmt.Errorf("scan guard event: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate guard events: %w", err)
	}
	return out, nil
}

// Count returns the number of stored events.
func (r *EventRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM guard_events").Scan(&count); err != nil {
		return 0, fmt.Errorf("count guard events: %w", err)
	}
	return count, nil
}
