package schema

import (
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/vecdex"
)

func TestTagField_Render(t *testing.T) {
	args, err := TagField("city").Render()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "city TAG SEPARATOR ,"
	if got := strings.Join(args, " "); got != want {
		t.Errorf("args = %q, want %q", got, want)
	}
}

func TestTagField_CaseSensitiveSortable(t *testing.T) {
	f := TagField("sku")
	f.CaseSensitive = true
	f.Sortable = true

	args, err := f.Render()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "sku TAG SEPARATOR , CASESENSITIVE SORTABLE"
	if got := strings.Join(args, " "); got != want {
		t.Errorf("args = %q, want %q", got, want)
	}
}

func TestTextField_Render(t *testing.T) {
	args, err := TextField("title").Render()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Weight 1 is the engine default and is omitted.
	want := "title TEXT"
	if got := strings.Join(args, " "); got != want {
		t.Errorf("args = %q, want %q", got, want)
	}
}

func TestTextField_AllOptions(t *testing.T) {
	f := TextField("body")
	f.Weight = 2.5
	f.NoStem = true
	f.PhoneticMatcher = "dm:en"
	f.WithSuffixTrie = true

	args, err := f.Render()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "body TEXT WEIGHT 2.5 NOSTEM PHONETIC dm:en WITHSUFFIXTRIE"
	if got := strings.Join(args, " "); got != want {
		t.Errorf("args = %q, want %q", got, want)
	}
}

func TestField_Alias(t *testing.T) {
	f := NumericField("$.price")
	f.Alias = "price"

	args, err := f.Render()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "$.price AS price NUMERIC"
	if got := strings.Join(args, " "); got != want {
		t.Errorf("args = %q, want %q", got, want)
	}
	if f.RetrievalName() != "price" {
		t.Errorf("retrieval name = %q, want price", f.RetrievalName())
	}
}

func TestVectorField_FlatDefaults(t *testing.T) {
	args, err := VectorField("embedding", 128, AlgorithmFlat).Render()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "embedding VECTOR FLAT 6 TYPE FLOAT32 DIM 128 DISTANCE_METRIC COSINE"
	if got := strings.Join(args, " "); got != want {
		t.Errorf("args = %q, want %q", got, want)
	}
}

func TestVectorField_FlatBlockSize(t *testing.T) {
	f := VectorField("embedding", 4, AlgorithmFlat)
	f.BlockSize = 1000

	args, err := f.Render()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "embedding VECTOR FLAT 8 TYPE FLOAT32 DIM 4 DISTANCE_METRIC COSINE BLOCK_SIZE 1000"
	if got := strings.Join(args, " "); got != want {
		t.Errorf("args = %q, want %q", got, want)
	}
}

func TestVectorField_HNSWDefaults(t *testing.T) {
	args, err := VectorField("embedding", 768, AlgorithmHNSW).Render()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "embedding VECTOR HNSW 14 TYPE FLOAT32 DIM 768 DISTANCE_METRIC COSINE " +
		"M 16 EF_CONSTRUCTION 200 EF_RUNTIME 10 EPSILON 0.01"
	if got := strings.Join(args, " "); got != want {
		t.Errorf("args = %q, want %q", got, want)
	}
}

func TestVectorField_CaseInsensitiveEnums(t *testing.T) {
	f := VectorField("v", 8, "hnsw")
	f.DataType = "float64"
	f.DistanceMetric = "l2"

	args, err := f.Render()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "HNSW") || !strings.Contains(joined, "TYPE FLOAT64") ||
		!strings.Contains(joined, "DISTANCE_METRIC L2") {
		t.Errorf("enums not normalized: %q", joined)
	}
}

func TestVectorField_InvalidAlgorithm(t *testing.T) {
	_, err := VectorField("v", 8, "ivfpq").Render()
	if !errors.Is(err, vectra.ErrInvalidEnum) {
		t.Fatalf("err = %v, want ErrInvalidEnum", err)
	}
	var se *vectra.SchemaError
	if !errors.As(err, &se) || se.Name != "v" {
		t.Errorf("expected SchemaError naming the field, got %v", err)
	}
}

func TestVectorField_InvalidMetric(t *testing.T) {
	f := VectorField("v", 8, AlgorithmFlat)
	f.DistanceMetric = "HAMMING"
	if _, err := f.Render(); !errors.Is(err, vectra.ErrInvalidEnum) {
		t.Fatalf("err = %v, want ErrInvalidEnum", err)
	}
}

func TestVectorField_ZeroDims(t *testing.T) {
	_, err := VectorField("v", 0, AlgorithmFlat).Render()
	if !errors.Is(err, vectra.ErrDimMismatch) {
		t.Fatalf("err = %v, want ErrDimMismatch", err)
	}
}

func TestField_MissingName(t *testing.T) {
	_, err := TagField("").Render()
	if !errors.Is(err, vectra.ErrMissingName) {
		t.Fatalf("err = %v, want ErrMissingName", err)
	}
}

func TestField_RenderDeterministic(t *testing.T) {
	f := VectorField("embedding", 768, AlgorithmHNSW)
	first, err := f.Render()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := f.Render()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(first, " ") != strings.Join(second, " ") {
		t.Errorf("renders differ: %v vs %v", first, second)
	}
}
