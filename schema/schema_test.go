package schema

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kailas-cloud/vecdex"
)

func TestNew_Defaults(t *testing.T) {
	s, err := New("products", []Field{TagField("brand")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Prefix() != "products" {
		t.Errorf("prefix = %q, want products", s.Prefix())
	}
	if s.KeySeparator() != ":" {
		t.Errorf("separator = %q, want :", s.KeySeparator())
	}
	if s.Storage() != StorageHash {
		t.Errorf("storage = %q, want HASH", s.Storage())
	}
}

func TestNew_MissingName(t *testing.T) {
	_, err := New("", nil)
	if !errors.Is(err, vectra.ErrMissingName) {
		t.Fatalf("err = %v, want ErrMissingName", err)
	}
}

func TestNew_DuplicateField(t *testing.T) {
	_, err := New("idx", []Field{TagField("a"), TextField("a")})
	if !errors.Is(err, vectra.ErrDuplicateField) {
		t.Fatalf("err = %v, want ErrDuplicateField", err)
	}
}

func TestNew_DuplicateViaAlias(t *testing.T) {
	aliased := TextField("$.title")
	aliased.Alias = "title"
	_, err := New("idx", []Field{TextField("title"), aliased})
	if !errors.Is(err, vectra.ErrDuplicateField) {
		t.Fatalf("err = %v, want ErrDuplicateField", err)
	}
}

func TestKey(t *testing.T) {
	s, err := New("docs", []Field{TextField("body")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.Key("42"); got != "docs:42" {
		t.Errorf("key = %q, want docs:42", got)
	}
	if got := s.KeyPattern(); got != "docs:*" {
		t.Errorf("pattern = %q, want docs:*", got)
	}
}

func TestKey_EmptyPrefix(t *testing.T) {
	s, err := New("docs", []Field{TextField("body")}, WithPrefix(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.Key("42"); got != "42" {
		t.Errorf("key = %q, want 42", got)
	}
	if got := s.KeyPattern(); got != "*" {
		t.Errorf("pattern = %q, want *", got)
	}
}

func TestKey_CustomSeparator(t *testing.T) {
	s, err := New("docs", []Field{TextField("body")},
		WithPrefix("app"), WithKeySeparator("/"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.Key("42"); got != "app/42" {
		t.Errorf("key = %q, want app/42", got)
	}
}

func TestAddRemoveField(t *testing.T) {
	s, err := New("idx", []Field{TagField("a")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := s.AddField(NumericField("b")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.HasField("b") {
		t.Error("expected field b after AddField")
	}

	if err := s.AddField(TagField("a")); !errors.Is(err, vectra.ErrDuplicateField) {
		t.Fatalf("err = %v, want ErrDuplicateField", err)
	}

	s.RemoveField("a")
	if s.HasField("a") {
		t.Error("field a still present after RemoveField")
	}
	// Removing a missing field is a no-op.
	s.RemoveField("missing")
}

func TestSetVectorDims(t *testing.T) {
	s, err := New("idx", []Field{VectorField("v", 4, AlgorithmFlat)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := s.SetVectorDims("v", 768); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f, _ := s.Field("v")
	if f.Dims != 768 {
		t.Errorf("dims = %d, want 768", f.Dims)
	}

	if err := s.SetVectorDims("v", 0); !errors.Is(err, vectra.ErrDimMismatch) {
		t.Fatalf("err = %v, want ErrDimMismatch", err)
	}
	if err := s.SetVectorDims("missing", 8); !errors.Is(err, vectra.ErrUnknownField) {
		t.Fatalf("err = %v, want ErrUnknownField", err)
	}
}

func TestRenderFields_Order(t *testing.T) {
	s, err := New("idx", []Field{TagField("a"), NumericField("b")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	args, err := s.RenderFields()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if args[0] != "a" {
		t.Errorf("first field = %q, want a", args[0])
	}
}

func TestFromMap(t *testing.T) {
	s, err := FromMap(map[string]any{
		"index": map[string]any{
			"name":         "products",
			"prefix":       "prod",
			"storage_type": "json",
		},
		"fields": map[string]any{
			"tag":  []any{map[string]any{"name": "brand"}},
			"text": []any{map[string]any{"name": "title", "weight": 2.0}},
			"vector": []any{map[string]any{
				"name":      "embedding",
				"dims":      128,
				"algorithm": "flat",
			}},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Name() != "products" || s.Prefix() != "prod" {
		t.Errorf("identity = %q/%q", s.Name(), s.Prefix())
	}
	if s.Storage() != StorageJSON {
		t.Errorf("storage = %q, want JSON", s.Storage())
	}
	if len(s.Fields()) != 3 {
		t.Fatalf("fields = %d, want 3", len(s.Fields()))
	}
	f, ok := s.Field("embedding")
	if !ok || f.Dims != 128 || f.Algorithm != AlgorithmFlat {
		t.Errorf("embedding field = %+v", f)
	}
}

func TestFromMap_MissingName(t *testing.T) {
	_, err := FromMap(map[string]any{"index": map[string]any{}})
	if !errors.Is(err, vectra.ErrMissingName) {
		t.Fatalf("err = %v, want ErrMissingName", err)
	}
	_, err = FromMap(map[string]any{})
	if !errors.Is(err, vectra.ErrMissingName) {
		t.Fatalf("err = %v, want ErrMissingName", err)
	}
}

func TestFromMap_BadStorage(t *testing.T) {
	_, err := FromMap(map[string]any{
		"index": map[string]any{"name": "x", "storage_type": "bson"},
	})
	if !errors.Is(err, vectra.ErrInvalidEnum) {
		t.Fatalf("err = %v, want ErrInvalidEnum", err)
	}
}

func TestFromYAMLFile(t *testing.T) {
	decl := `
index:
  name: reviews
  prefix: rev
fields:
  tag:
    - name: author
  numeric:
    - name: rating
      sortable: true
  vector:
    - name: embedding
      dims: 384
      algorithm: hnsw
      m: 24
`
	path := filepath.Join(t.TempDir(), "schema.yaml")
	if err := os.WriteFile(path, []byte(decl), 0o600); err != nil {
		t.Fatalf("write schema file: %v", err)
	}

	s, err := FromYAMLFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Name() != "reviews" || s.Prefix() != "rev" {
		t.Errorf("identity = %q/%q", s.Name(), s.Prefix())
	}

	rating, ok := s.Field("rating")
	if !ok || !rating.Sortable {
		t.Errorf("rating field = %+v", rating)
	}
	emb, ok := s.Field("embedding")
	if !ok || emb.Algorithm != AlgorithmHNSW || emb.M != 24 {
		t.Errorf("embedding field = %+v", emb)
	}
}

func TestFromYAMLFile_Missing(t *testing.T) {
	if _, err := FromYAMLFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
