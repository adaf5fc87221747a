// Package query defines the three query value types the index executes:
// plain filter queries, KNN vector queries and vector range queries. Each
// binds a filter expression (trivial when unset) to the vector parameters
// and result shaping for one engine round trip.
package query

import (
	"github.com/kailas-cloud/vecdex"
	"github.com/kailas-cloud/vecdex/filter"
)

// DefaultNumResults bounds a query that does not set its own limit.
const DefaultNumResults = 10

// Query is one of *FilterQuery, *VectorQuery or *RangeQuery.
type Query interface {
	Validate() error
}

// FilterQuery returns records matching a filter expression, with optional
// sorting and pagination. A zero Filter matches everything.
type FilterQuery struct {
	Filter       filter.Expression
	ReturnFields []string
	NumResults   int
	Offset       int
	SortBy       string
	SortAsc      bool
}

// Validate checks call-time invariants before any engine exchange.
func (q *FilterQuery) Validate() error {
	if q.NumResults < 0 {
		return vectra.NewValidationError("num results must be positive, got %d", q.NumResults)
	}
	if q.Offset < 0 {
		return vectra.NewValidationError("offset must not be negative, got %d", q.Offset)
	}
	return nil
}

// Limit returns the effective result bound.
func (q *FilterQuery) Limit() int {
	if q.NumResults == 0 {
		return DefaultNumResults
	}
	return q.NumResults
}

// VectorQuery returns the NumResults nearest records to Vector in the named
// vector field, optionally pre-filtered.
type VectorQuery struct {
	Vector       []float32
	Field        string
	Filter       filter.Expression
	NumResults   int
	ReturnFields []string
	ReturnScore  bool
}

// Validate checks call-time invariants. The vector length against the
// field's declared dims is checked at execution, where the schema is bound.
func (q *VectorQuery) Validate() error {
	if len(q.Vector) == 0 {
		return vectra.NewValidationError("query vector is required")
	}
	if q.Field == "" {
		return vectra.NewValidationError("vector field name is required")
	}
	if q.NumResults < 0 {
		return vectra.NewValidationError("num results must be positive, got %d", q.NumResults)
	}
	return nil
}

// Limit returns the effective result bound.
func (q *VectorQuery) Limit() int {
	if q.NumResults == 0 {
		return DefaultNumResults
	}
	return q.NumResults
}

// RangeQuery returns records within DistanceThreshold of Vector. The engine
// range operator works in distance; rows beyond the threshold that slip
// through are dropped client-side.
type RangeQuery struct {
	Vector            []float32
	Field             string
	DistanceThreshold float64
	Filter            filter.Expression
	NumResults        int
	ReturnFields      []string
	ReturnScore       bool
}

// Validate checks call-time invariants. The threshold is a cosine-normalized
// distance in [0, 2].
func (q *RangeQuery) Validate() error {
	if len(q.Vector) == 0 {
		return vectra.NewValidationError("query vector is required")
	}
	if q.Field == "" {
		return vectra.NewValidationError("vector field name is required")
	}
	if q.DistanceThreshold < 0 || q.DistanceThreshold > 2 {
		return vectra.NewValidationError(
			"distance threshold must be in [0, 2], got %g", q.DistanceThreshold)
	}
	if q.NumResults < 0 {
		return vectra.NewValidationError("num results must be positive, got %d", q.NumResults)
	}
	return nil
}

// Limit returns the effective result bound.
func (q *RangeQuery) Limit() int {
	if q.NumResults == 0 {
		return DefaultNumResults
	}
	return q.NumResults
}
