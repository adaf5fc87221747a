package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/vecdex"
	"github.com/kailas-cloud/vecdex/index"
	"github.com/kailas-cloud/vecdex/query"
	"github.com/kailas-cloud/vecdex/schema"
)

// stubVectorizer returns a fixed embedding.
type stubVectorizer struct {
	dims   int
	vector []float32
	err    error
}

func (s *stubVectorizer) Embed(_ context.Context, _ string) ([]float32, error) {
	return s.vector, s.err
}

func (s *stubVectorizer) EmbedMany(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = s.vector
	}
	return out, s.err
}

func (s *stubVectorizer) Dims() int { return s.dims }

// mockStore implements the store contract with function fields.
type mockStore struct {
	create func(ctx context.Context, overwrite, dropData bool) error
	load   func(ctx context.Context, records []index.Record, opts index.LoadOptions) ([]string, error)
	query  func(ctx context.Context, q query.Query) ([]index.Record, error)
	clear  func(ctx context.Context) (int, error)
	delete func(ctx context.Context, dropData bool) error
	expire func(ctx context.Context, key string, ttl time.Duration) error
}

func (m *mockStore) Create(ctx context.Context, overwrite, dropData bool) error {
	return m.create(ctx, overwrite, dropData)
}
func (m *mockStore) Load(ctx context.Context, records []index.Record, opts index.LoadOptions) ([]string, error) {
	return m.load(ctx, records, opts)
}
func (m *mockStore) Query(ctx context.Context, q query.Query) ([]index.Record, error) {
	return m.query(ctx, q)
}
func (m *mockStore) Clear(ctx context.Context) (int, error) { return m.clear(ctx) }
func (m *mockStore) Delete(ctx context.Context, dropData bool) error {
	return m.delete(ctx, dropData)
}
func (m *mockStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return m.expire(ctx, key, ttl)
}
func (m *mockStore) Schema() *schema.IndexSchema { return nil }

func newTestCache(t *testing.T, m *mockStore, opts ...Option) *SemanticCache {
	t.Helper()
	c, err := New(&stubVectorizer{dims: 4, vector: []float32{1, 0, 0, 0}}, opts...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.store = m
	return c
}

func TestNew_Defaults(t *testing.T) {
	c, err := New(&stubVectorizer{dims: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Threshold() != DefaultThreshold {
		t.Errorf("threshold = %g, want %g", c.Threshold(), DefaultThreshold)
	}

	s := c.Index().Schema()
	if s.Name() != DefaultIndexName || s.Prefix() != DefaultPrefix {
		t.Errorf("identity = %q/%q", s.Name(), s.Prefix())
	}
	f, ok := s.Field(FieldVector)
	if !ok || f.Dims != 4 || f.Algorithm != schema.AlgorithmFlat {
		t.Errorf("vector field = %+v", f)
	}
}

func TestNew_BadThreshold(t *testing.T) {
	for _, threshold := range []float64{-0.1, 1.5} {
		_, err := New(&stubVectorizer{dims: 4}, WithThreshold(threshold))
		var ve *vectra.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("threshold %g: err = %v, want ValidationError", threshold, err)
		}
	}
}

func TestNew_BadDims(t *testing.T) {
	_, err := New(&stubVectorizer{dims: 0})
	var ve *vectra.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestSetThreshold(t *testing.T) {
	c := newTestCache(t, &mockStore{})
	if err := c.SetThreshold(0.75); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Threshold() != 0.75 {
		t.Errorf("threshold = %g, want 0.75", c.Threshold())
	}
	if err := c.SetThreshold(1.2); err == nil {
		t.Fatal("expected error for out-of-range threshold")
	}
}

func TestCheck_Hit(t *testing.T) {
	var gotQuery *query.RangeQuery
	m := &mockStore{
		query: func(_ context.Context, q query.Query) ([]index.Record, error) {
			gotQuery = q.(*query.RangeQuery)
			return []index.Record{{
				"id":             "llmcache:abc",
				FieldPrompt:      "what is the capital of france",
				FieldResponse:    "Paris",
				index.ScoreField: 0.05,
			}}, nil
		},
	}

	c := newTestCache(t, m)
	hit, err := c.Check(context.Background(), "capital of france?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hit == nil {
		t.Fatal("expected a hit")
	}
	if hit.Response != "Paris" {
		t.Errorf("response = %q, want Paris", hit.Response)
	}
	if hit.Similarity != 0.95 {
		t.Errorf("similarity = %g, want 0.95", hit.Similarity)
	}

	// Threshold 0.9 maps to a distance radius of 0.1.
	if got := gotQuery.DistanceThreshold; got < 0.0999 || got > 0.1001 {
		t.Errorf("distance threshold = %g, want 0.1", got)
	}
}

func TestCheck_Miss(t *testing.T) {
	m := &mockStore{
		query: func(_ context.Context, _ query.Query) ([]index.Record, error) {
			return nil, nil
		},
	}

	c := newTestCache(t, m)
	hit, err := c.Check(context.Background(), "never seen before")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hit != nil {
		t.Errorf("hit = %+v, want nil", hit)
	}
}

func TestCheck_RefreshesTTL(t *testing.T) {
	var refreshed string
	m := &mockStore{
		query: func(_ context.Context, _ query.Query) ([]index.Record, error) {
			return []index.Record{{
				"id":             "llmcache:abc",
				FieldPrompt:      "q",
				FieldResponse:    "a",
				index.ScoreField: 0.01,
			}}, nil
		},
		expire: func(_ context.Context, key string, ttl time.Duration) error {
			refreshed = key
			if ttl != time.Hour {
				t.Errorf("ttl = %v, want 1h", ttl)
			}
			return nil
		},
	}

	c := newTestCache(t, m, WithTTL(time.Hour))
	if _, err := c.Check(context.Background(), "q"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if refreshed != "llmcache:abc" {
		t.Errorf("refreshed key = %q", refreshed)
	}
}

func TestCheck_EmbedError(t *testing.T) {
	c, err := New(&stubVectorizer{dims: 4, err: errors.New("provider down")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.store = &mockStore{}
	if _, err := c.Check(context.Background(), "q"); err == nil {
		t.Fatal("expected error from vectorizer")
	}
}

func TestStore(t *testing.T) {
	var gotRecords []index.Record
	var gotOpts index.LoadOptions
	m := &mockStore{
		load: func(_ context.Context, records []index.Record, opts index.LoadOptions) ([]string, error) {
			gotRecords = records
			gotOpts = opts
			return []string{"llmcache:deadbeef"}, nil
		},
	}

	c := newTestCache(t, m, WithTTL(time.Minute))
	key, err := c.Store(context.Background(), "question", "answer", map[string]any{"model": "gpt"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "llmcache:deadbeef" {
		t.Errorf("key = %q", key)
	}

	if gotOpts.KeyField != "id" || gotOpts.TTL != time.Minute {
		t.Errorf("opts = %+v", gotOpts)
	}
	rec := gotRecords[0]
	if rec[FieldPrompt] != "question" || rec[FieldResponse] != "answer" {
		t.Errorf("record = %v", rec)
	}
	if rec["model"] != "gpt" {
		t.Errorf("metadata not stored: %v", rec)
	}
	// The id is the sha256 of the prompt, stable across calls.
	if rec["id"] != promptID("question") {
		t.Errorf("id = %v", rec["id"])
	}
	if _, ok := rec[FieldVector].([]float32); !ok {
		t.Errorf("vector missing: %v", rec)
	}
}

func TestStore_MetadataCannotShadow(t *testing.T) {
	var gotRecords []index.Record
	m := &mockStore{
		load: func(_ context.Context, records []index.Record, _ index.LoadOptions) ([]string, error) {
			gotRecords = records
			return []string{"k"}, nil
		},
	}

	c := newTestCache(t, m)
	_, err := c.Store(context.Background(), "q", "a", map[string]any{FieldResponse: "spoofed"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotRecords[0][FieldResponse] != "a" {
		t.Errorf("reserved field overwritten: %v", gotRecords[0])
	}
}

func TestClear(t *testing.T) {
	m := &mockStore{
		clear: func(_ context.Context) (int, error) { return 3, nil },
	}

	c := newTestCache(t, m)
	n, err := c.Clear(context.Background())
	if err != nil || n != 3 {
		t.Fatalf("got (%d, %v), want (3, nil)", n, err)
	}
}
