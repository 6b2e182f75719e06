package ports

import (
	"context"

	"view-analytics-service/internal/analytics/core/domain"
	"view-analytics-service/internal/analytics/core/filter"
)

// ComputeFunc produces the rows of a query on a cache miss.
type ComputeFunc func(ctx context.Context) ([]domain.Row, error)

// ResultCachePort fronts query execution with a read-through cache keyed by
// the query kind and the normalized filter.
type ResultCachePort interface {
	GetOrCompute(ctx context.Context, kind string, where filter.Node, compute ComputeFunc) ([]domain.Row, error)
}
