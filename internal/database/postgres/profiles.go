package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/pose-guard/internal/fingerprint"
)

// ProfileEmbeddingCache stores profile embeddings keyed by target name. An entry is
// only valid while the profile image keeps the fingerprint it was computed for.
type ProfileEmbeddingCache struct {
	pool *Pool
}

// NewProfileEmbeddingCache creates a new profile embedding cache.
func NewProfileEmbeddingCache(pool *Pool) *ProfileEmbeddingCache {
	return &ProfileEmbeddingCache{pool: pool}
}

// Get returns the cached embedding for name when its fingerprint matches fp.
func (c *ProfileEmbeddingCache) Get(ctx context.Context, name string, fp fingerprint.Fingerprint) ([]float32, bool, error) {
	var stored string
	var vec pgvector.Vector
	err := c.pool.QueryRow(ctx, `
		SELECT fingerprint, embedding FROM profile_embeddings WHERE name = $1
	`, name).Scan(&stored, &vec)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query profile embedding: %w", err)
	}
	if stored != fp.String() {
		return nil, false, nil
	}
	return vec.Slice(), true, nil
}

// Put stores or replaces the embedding for name.
func (c *ProfileEmbeddingCache) Put(ctx context.Context, name string, fp fingerprint.Fingerprint, embedding []float32) error {
	_, err := c.pool.Exec(ctx, `
		INSERT INTO profile_embeddings (name, fingerprint, embedding, dim, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (name) DO UPDATE SET
			fingerprint = EXCLUDED.fingerprint,
			embedding = EXCLUDED.embedding,
			dim = EXCLUDED.dim,
			updated_at = NOW()
	`, name, fp.String(), pgvector.NewVector(embedding), len(embedding))
	if err != nil {
		return fmt.Errorf("upsert profile embedding: %w", err)
	}
	return nil
}

// Delete drops the cached embedding for name.
func (c *ProfileEmbeddingCache) Delete(ctx context.Context, name string) error {
	if _, err := c.pool.Exec(ctx, "DELETE FROM profile_embeddings WHERE name = $1", name); err != nil {
		return fmt.Errorf("delete profile embedding: %w", err)
	}
	return nil
}

// Nearest returns the cached profile closest to embedding by L2 distance.
func (c *ProfileEmbeddingCache) Nearest(ctx context.Context, embedding []float32) (string, float64, error) {
	var name string
	var dist float64
	err := c.pool.QueryRow(ctx, `
		SELECT name, embedding <-> $1 AS distance
		FROM profile_embeddings
		WHERE dim = $2
		ORDER BY embedding <-> $1
		LIMIT 1
	`, pgvector.NewVector(embedding), len(embedding)).Scan(&name, &dist)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, nil
	}
	if err != nil {
		return "", 0, fmt.Errorf("query nearest profile: %w", err)
	}
	return name, dist, nil
}
