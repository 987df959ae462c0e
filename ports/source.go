package ports

import (
	"context"

	"phonostat/domain/core"
	"phonostat/domain/entity"
)

// EntitySourcePort feeds deduplicated, type-validated entity batches from the
// surrounding collector layer. Completeness is not guaranteed: missing
// outcomes are expected and handled test-scoped by the builder/battery.
type EntitySourcePort interface {
	Fetch(ctx context.Context, domain core.DomainKey) ([]entity.NamedEntity, error)
}
