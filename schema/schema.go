// Package schema models declarative index descriptions: typed field schemas
// and the index identity (name, key prefix, storage encoding) they hang off.
package schema

import (
	"strings"

	"github.com/kailas-cloud/vecdex"
)

// StorageType selects the record encoding the index is built over.
type StorageType string

// Storage type constants.
const (
	StorageHash StorageType = "HASH"
	StorageJSON StorageType = "JSON"
)

// DefaultKeySeparator joins the key prefix and the record id.
const DefaultKeySeparator = ":"

// IndexSchema is the source of truth for an index: identity, key construction
// and the ordered field collection. Constructed once from a declaration;
// immutable except through the explicit mutation methods.
type IndexSchema struct {
	name         string
	prefix       string
	keySeparator string
	storage      StorageType
	fields       []Field
}

// Option configures an IndexSchema during construction.
type Option func(*IndexSchema)

// WithPrefix overrides the key prefix. An explicitly empty prefix makes
// record ids the full keys.
func WithPrefix(prefix string) Option {
	return func(s *IndexSchema) { s.prefix = prefix }
}

// WithKeySeparator overrides the prefix/id separator (default ":").
func WithKeySeparator(sep string) Option {
	return func(s *IndexSchema) { s.keySeparator = sep }
}

// WithStorage selects HASH or JSON record storage (default HASH).
func WithStorage(st StorageType) Option {
	return func(s *IndexSchema) { s.storage = st }
}

// New creates an IndexSchema. The prefix defaults to the index name and the
// separator to ":". Field names (or aliases) must be unique.
func New(name string, fields []Field, opts ...Option) (*IndexSchema, error) {
	if name == "" {
		return nil, vectra.NewSchemaError("", vectra.ErrMissingName)
	}

	s := &IndexSchema{
		name:         name,
		prefix:       name,
		keySeparator: DefaultKeySeparator,
		storage:      StorageHash,
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, f := range fields {
		if err := s.AddField(f); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Name returns the index name.
func (s *IndexSchema) Name() string { return s.name }

// Prefix returns the key prefix, possibly empty.
func (s *IndexSchema) Prefix() string { return s.prefix }

// KeySeparator returns the prefix/id separator.
func (s *IndexSchema) KeySeparator() string { return s.keySeparator }

// Storage returns the record storage type.
func (s *IndexSchema) Storage() StorageType { return s.storage }

// Fields returns the fields in declaration order.
func (s *IndexSchema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Field looks a field up by its retrieval name.
func (s *IndexSchema) Field(name string) (Field, bool) {
	for _, f := range s.fields {
		if f.RetrievalName() == name {
			return f, true
		}
	}
	return Field{}, false
}

// HasField reports whether a field with the given retrieval name exists.
func (s *IndexSchema) HasField(name string) bool {
	_, ok := s.Field(name)
	return ok
}

// Key builds the storage key for a record id: prefix + separator + id when
// the prefix is non-empty, the id unchanged otherwise. Every key the index
// reads or writes goes through this rule.
func (s *IndexSchema) Key(id string) string {
	if s.prefix == "" {
		return id
	}
	return s.prefix + s.keySeparator + id
}

// KeyPattern returns the scan pattern matching all keys under the prefix.
func (s *IndexSchema) KeyPattern() string {
	if s.prefix == "" {
		return "*"
	}
	return s.prefix + s.keySeparator + "*"
}

// AddField appends a field, re-validating name uniqueness.
func (s *IndexSchema) AddField(f Field) error {
	if f.Name == "" {
		return vectra.NewSchemaError("", vectra.ErrMissingName)
	}
	name := f.RetrievalName()
	if s.HasField(name) {
		return vectra.NewSchemaError(name, vectra.ErrDuplicateField)
	}
	if _, err := f.Render(); err != nil {
		return err
	}
	s.fields = append(s.fields, f)
	return nil
}

// RemoveField deletes the field with the given retrieval name; it is a no-op
// when absent.
func (s *IndexSchema) RemoveField(name string) {
	for i, f := range s.fields {
		if f.RetrievalName() == name {
			s.fields = append(s.fields[:i], s.fields[i+1:]...)
			return
		}
	}
}

// SetVectorDims adjusts the dims of a vector field after the fact, e.g. once
// a vectorizer with a published dimension is bound.
func (s *IndexSchema) SetVectorDims(name string, dims int) error {
	if dims <= 0 {
		return vectra.NewSchemaError(name, vectra.ErrDimMismatch)
	}
	for i, f := range s.fields {
		if f.RetrievalName() == name && f.Type == TypeVector {
			s.fields[i].Dims = dims
			return nil
		}
	}
	return vectra.NewSchemaError(name, vectra.ErrUnknownField)
}

// RenderFields renders every field in declaration order into one flat engine
// schema arg slice. Order is stable so repeated index-creation commands are
// byte-identical.
func (s *IndexSchema) RenderFields() ([]string, error) {
	var args []string
	for _, f := range s.fields {
		fieldArgs, err := f.Render()
		if err != nil {
			return nil, err
		}
		args = append(args, fieldArgs...)
	}
	return args, nil
}

func parseStorageType(v string) (StorageType, error) {
	switch StorageType(strings.ToUpper(v)) {
	case StorageHash, "":
		return StorageHash, nil
	case StorageJSON:
		return StorageJSON, nil
	}
	return "", vectra.NewSchemaError(v, vectra.ErrInvalidEnum)
}
