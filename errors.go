package vectra

import (
	"errors"
	"fmt"
)

// Sentinel errors for schema and connection failures.
var (
	// ErrMissingName signals a schema declaration without an index name.
	ErrMissingName = errors.New("index name is required")
	// ErrDuplicateField signals a field name collision within a schema.
	ErrDuplicateField = errors.New("duplicate field name")
	// ErrInvalidEnum signals an unrecognized algorithm, datatype or distance metric.
	ErrInvalidEnum = errors.New("invalid enum value")
	// ErrUnknownField signals a filter referencing a field absent from the schema.
	ErrUnknownField = errors.New("unknown field")
	// ErrDimMismatch signals a vector whose length differs from the field dims.
	ErrDimMismatch = errors.New("vector dimension mismatch")
	// ErrNotConnected signals an operation attempted with no bound engine client.
	ErrNotConnected = errors.New("index is not connected")
)

// SchemaError wraps a sentinel with the offending field or index name.
type SchemaError struct {
	Name string // field or index name, may be empty
	Err  error
}

func (e *SchemaError) Error() string {
	if e.Name == "" {
		return "schema: " + e.Err.Error()
	}
	return fmt.Sprintf("schema: %s: %s", e.Name, e.Err.Error())
}

func (e *SchemaError) Unwrap() error { return e.Err }

// NewSchemaError creates a SchemaError for the given name.
func NewSchemaError(name string, err error) error {
	return &SchemaError{Name: name, Err: err}
}

// ValidationError signals bad call-time input, detected before any engine
// exchange is issued.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return "validation: " + e.Msg }

// NewValidationError creates a ValidationError with a formatted message.
func NewValidationError(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// EngineError wraps an engine command failure with the command name.
// The engine diagnostic text is preserved, never swallowed.
type EngineError struct {
	Op  string
	Err error
}

func (e *EngineError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *EngineError) Unwrap() error { return e.Err }
