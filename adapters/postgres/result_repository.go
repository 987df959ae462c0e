package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"

	"phonostat/domain/core"
	"phonostat/domain/result"
	"phonostat/ports"
)

// resultRepository implements the ResultRepository interface
type resultRepository struct {
	db *sqlx.DB
}

// NewResultRepository creates a new test result repository
func NewResultRepository(db *sqlx.DB) ports.ResultRepository {
	return &resultRepository{db: db}
}

// Get retrieves a test result by its (dataset_hash, spec_hash, seed) key
func (r *resultRepository) Get(ctx context.Context, datasetHash core.DatasetHash, specHash core.SpecHash, seed int64) (*result.TestResult, error) {
	const query = `SELECT result FROM test_results
		WHERE dataset_hash = $1 AND spec_hash = $2 AND seed = $3`

	var payload []byte
	err := r.db.QueryRowContext(ctx, query, string(datasetHash), string(specHash), seed).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s/%s/%s", core.ErrResultNotFound,
				datasetHash, specHash, strconv.FormatInt(seed, 10))
		}
		return nil, fmt.Errorf("failed to get test result: %w", err)
	}

	var res result.TestResult
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, fmt.Errorf("failed to unmarshal test result: %w", err)
	}
	return &res, nil
}

// Put stores a test result. Results are pure given the key, so conflicting
// writes carry identical content and the upsert keeps retries idempotent.
func (r *resultRepository) Put(ctx context.Context, datasetHash core.DatasetHash, res result.TestResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal test result: %w", err)
	}

	const query = `INSERT INTO test_results (dataset_hash, spec_hash, seed, result)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (dataset_hash, spec_hash, seed) DO UPDATE SET result = EXCLUDED.result`

	if _, err := r.db.ExecContext(ctx, query, string(datasetHash), string(res.SpecHash), res.Seed, payload); err != nil {
		return fmt.Errorf("failed to store test result: %w", err)
	}
	return nil
}
