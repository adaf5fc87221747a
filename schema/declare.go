package schema

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/vecdex"
)

// FromMap builds an IndexSchema from a nested declaration of the shape
//
//	{index: {name, prefix?, key_separator?, storage_type?},
//	 fields: {tag?: [...], text?: [...], numeric?: [...], geo?: [...], vector?: [...]}}
//
// Missing index.name fails with ErrMissingName; field name collisions with
// ErrDuplicateField; bad enum values with ErrInvalidEnum.
func FromMap(decl map[string]any) (*IndexSchema, error) {
	indexDecl, _ := asMap(decl["index"])
	if indexDecl == nil {
		return nil, vectra.NewSchemaError("", vectra.ErrMissingName)
	}

	name := asString(indexDecl["name"])
	if name == "" {
		return nil, vectra.NewSchemaError("", vectra.ErrMissingName)
	}

	opts := []Option{}
	if prefix, ok := indexDecl["prefix"]; ok {
		opts = append(opts, WithPrefix(asString(prefix)))
	}
	if sep, ok := indexDecl["key_separator"]; ok {
		opts = append(opts, WithKeySeparator(asString(sep)))
	}
	if st, ok := indexDecl["storage_type"]; ok {
		storage, err := parseStorageType(asString(st))
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithStorage(storage))
	}

	fieldsDecl, _ := asMap(decl["fields"])
	fields, err := parseFields(fieldsDecl)
	if err != nil {
		return nil, err
	}

	return New(name, fields, opts...)
}

// FromYAMLFile loads a declaration file in the FromMap shape.
func FromYAMLFile(path string) (*IndexSchema, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}

	var decl map[string]any
	if err := yaml.Unmarshal(data, &decl); err != nil {
		return nil, fmt.Errorf("parse schema file %s: %w", path, err)
	}
	return FromMap(decl)
}

// parseFields walks the per-kind field lists in a fixed kind order so the
// resulting declaration order is reproducible.
func parseFields(decl map[string]any) ([]Field, error) {
	var fields []Field
	for _, kind := range []FieldType{TypeTag, TypeText, TypeNumeric, TypeGeo, TypeVector} {
		list, ok := asSlice(decl[string(kind)])
		if !ok {
			continue
		}
		for _, item := range list {
			attrs, ok := asMap(item)
			if !ok {
				return nil, vectra.NewValidationError("field declaration under %q must be a mapping", kind)
			}
			f, err := parseField(kind, attrs)
			if err != nil {
				return nil, err
			}
			fields = append(fields, f)
		}
	}
	return fields, nil
}

func parseField(kind FieldType, attrs map[string]any) (Field, error) {
	name := asString(attrs["name"])
	if name == "" {
		return Field{}, vectra.NewSchemaError("", vectra.ErrMissingName)
	}

	var f Field
	switch kind {
	case TypeTag:
		f = TagField(name)
		if sep, ok := attrs["separator"]; ok {
			f.Separator = asString(sep)
		}
		f.CaseSensitive = asBool(attrs["case_sensitive"])

	case TypeText:
		f = TextField(name)
		if w, ok := attrs["weight"]; ok {
			f.Weight = asFloat(w)
		}
		f.NoStem = asBool(attrs["no_stem"])
		f.PhoneticMatcher = asString(attrs["phonetic_matcher"])
		f.WithSuffixTrie = asBool(attrs["with_suffix_trie"])

	case TypeNumeric:
		f = NumericField(name)

	case TypeGeo:
		f = GeoField(name)

	case TypeVector:
		f = VectorField(name, asInt(attrs["dims"]), Algorithm(asString(attrs["algorithm"])))
		if dt, ok := attrs["datatype"]; ok {
			f.DataType = DataType(asString(dt))
		}
		if m, ok := attrs["distance_metric"]; ok {
			f.DistanceMetric = DistanceMetric(asString(m))
		}
		f.BlockSize = asInt(attrs["block_size"])
		if m := asInt(attrs["m"]); m > 0 {
			f.M = m
		}
		if ef := asInt(attrs["ef_construction"]); ef > 0 {
			f.EFConstruction = ef
		}
		if ef := asInt(attrs["ef_runtime"]); ef > 0 {
			f.EFRuntime = ef
		}
		if eps := asFloat(attrs["epsilon"]); eps > 0 {
			f.Epsilon = eps
		}
	}

	f.Alias = asString(attrs["as_name"])
	f.Sortable = asBool(attrs["sortable"])
	return f, nil
}

// --- loose typing helpers for yaml/map declarations ---

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func asSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}
