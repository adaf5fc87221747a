package query

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/vecdex"
)

func isValidation(err error) bool {
	var ve *vectra.ValidationError
	return errors.As(err, &ve)
}

func TestFilterQuery_Validate(t *testing.T) {
	q := &FilterQuery{}
	if err := q.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := (&FilterQuery{NumResults: -1}).Validate(); !isValidation(err) {
		t.Errorf("err = %v, want ValidationError", err)
	}
	if err := (&FilterQuery{Offset: -1}).Validate(); !isValidation(err) {
		t.Errorf("err = %v, want ValidationError", err)
	}
}

func TestFilterQuery_Limit(t *testing.T) {
	if got := (&FilterQuery{}).Limit(); got != DefaultNumResults {
		t.Errorf("limit = %d, want %d", got, DefaultNumResults)
	}
	if got := (&FilterQuery{NumResults: 25}).Limit(); got != 25 {
		t.Errorf("limit = %d, want 25", got)
	}
}

func TestVectorQuery_Validate(t *testing.T) {
	q := &VectorQuery{Vector: []float32{1, 2}, Field: "embedding"}
	if err := q.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := (&VectorQuery{Field: "embedding"}).Validate(); !isValidation(err) {
		t.Errorf("missing vector: err = %v, want ValidationError", err)
	}
	if err := (&VectorQuery{Vector: []float32{1}}).Validate(); !isValidation(err) {
		t.Errorf("missing field: err = %v, want ValidationError", err)
	}
	if err := (&VectorQuery{Vector: []float32{1}, Field: "v", NumResults: -5}).Validate(); !isValidation(err) {
		t.Errorf("negative limit: err = %v, want ValidationError", err)
	}
}

func TestRangeQuery_Validate(t *testing.T) {
	q := &RangeQuery{Vector: []float32{1}, Field: "embedding", DistanceThreshold: 0.2}
	if err := q.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Threshold bounds are inclusive.
	for _, threshold := range []float64{0, 2} {
		q := &RangeQuery{Vector: []float32{1}, Field: "v", DistanceThreshold: threshold}
		if err := q.Validate(); err != nil {
			t.Errorf("threshold %g: unexpected error: %v", threshold, err)
		}
	}
	for _, threshold := range []float64{-0.1, 2.1} {
		q := &RangeQuery{Vector: []float32{1}, Field: "v", DistanceThreshold: threshold}
		if err := q.Validate(); !isValidation(err) {
			t.Errorf("threshold %g: err = %v, want ValidationError", threshold, err)
		}
	}
}

func TestRangeQuery_MissingVector(t *testing.T) {
	if err := (&RangeQuery{Field: "v"}).Validate(); !isValidation(err) {
		t.Errorf("err = %v, want ValidationError", err)
	}
}
