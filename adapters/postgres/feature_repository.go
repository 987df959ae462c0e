package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"phonostat/domain/core"
	"phonostat/domain/feature"
	"phonostat/ports"
)

// featureRepository implements the FeatureRepository interface
type featureRepository struct {
	db *sqlx.DB
}

// NewFeatureRepository creates a new feature vector repository
func NewFeatureRepository(db *sqlx.DB) ports.FeatureRepository {
	return &featureRepository{db: db}
}

// Get retrieves a feature vector by its (raw_name, version) key
func (r *featureRepository) Get(ctx context.Context, rawName string, version feature.Version) (*feature.Vector, error) {
	const query = `SELECT vector FROM feature_vectors WHERE raw_name = $1 AND version = $2`

	var payload []byte
	err := r.db.QueryRowContext(ctx, query, rawName, string(version)).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s@%s", core.ErrFeatureNotFound, rawName, version)
		}
		return nil, fmt.Errorf("failed to get feature vector: %w", err)
	}

	var v feature.Vector
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal feature vector: %w", err)
	}
	return &v, nil
}

// Put stores a feature vector, replacing any existing row for the key.
// Vectors are pure functions of the key so a replace is always a no-op
// content-wise; upsert keeps retries idempotent.
func (r *featureRepository) Put(ctx context.Context, v feature.Vector) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal feature vector: %w", err)
	}

	const query = `INSERT INTO feature_vectors (raw_name, version, vector)
		VALUES ($1, $2, $3)
		ON CONFLICT (raw_name, version) DO UPDATE SET vector = EXCLUDED.vector`

	if _, err := r.db.ExecContext(ctx, query, v.RawName, string(v.Version), payload); err != nil {
		return fmt.Errorf("failed to store feature vector: %w", err)
	}
	return nil
}

// DeleteVersion drops every vector for one extractor version
func (r *featureRepository) DeleteVersion(ctx context.Context, version feature.Version) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM feature_vectors WHERE version = $1`, string(version))
	if err != nil {
		return 0, fmt.Errorf("failed to delete version %s: %w", version, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted rows: %w", err)
	}
	return n, nil
}
