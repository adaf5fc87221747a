package index

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/vecdex/internal/vec"
	"github.com/kailas-cloud/vecdex/schema"
)

// Record maps field names to values. Values written through Load and read
// back through Fetch or Query are coerced by the declared field kind:
// numeric fields to float64, vector fields to []float32, everything else to
// strings.
type Record map[string]any

// encodeHashFields flattens a record into the string field map a hash write
// expects. Vectors become fixed-width little-endian buffers per the field's
// declared datatype.
func (i *SearchIndex) encodeHashFields(rec Record) map[string]string {
	fields := make(map[string]string, len(rec))
	for name, value := range rec {
		fields[name] = i.encodeValue(name, value)
	}
	return fields
}

func (i *SearchIndex) encodeValue(name string, value any) string {
	switch v := value.(type) {
	case []float32:
		return string(vec.Encode(v, i.fieldDataType(name)))
	case []byte:
		return string(v)
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// decodeHashFields lifts raw engine strings back into typed values using the
// bound schema.
func (i *SearchIndex) decodeHashFields(raw map[string]string) Record {
	rec := make(Record, len(raw))
	for name, value := range raw {
		rec[name] = i.decodeValue(name, value)
	}
	return rec
}

func (i *SearchIndex) decodeValue(name, value string) any {
	f, ok := i.schema.Field(name)
	if !ok {
		return value
	}

	switch f.Type {
	case schema.TypeNumeric:
		if n, err := strconv.ParseFloat(value, 64); err == nil {
			return n
		}
		return value

	case schema.TypeVector:
		// JSON-stored vectors come back as arrays, hash-stored ones as
		// raw buffers.
		if strings.HasPrefix(value, "[") {
			var floats []float32
			if err := json.Unmarshal([]byte(value), &floats); err == nil {
				return floats
			}
		}
		if v, err := vec.Decode([]byte(value), dataTypeOf(f)); err == nil {
			return v
		}
		return value

	default:
		return value
	}
}

// decodeJSONDocument parses a JSON.GET reply (an array wrapping the root
// document) into a Record.
func (i *SearchIndex) decodeJSONDocument(data []byte) (Record, error) {
	var docs []map[string]any
	if err := json.Unmarshal(data, &docs); err != nil {
		// Root path without array wrapping.
		var doc map[string]any
		if err2 := json.Unmarshal(data, &doc); err2 != nil {
			return nil, fmt.Errorf("parse json document: %w", err)
		}
		docs = []map[string]any{doc}
	}
	if len(docs) == 0 {
		return nil, nil
	}

	rec := make(Record, len(docs[0]))
	for name, value := range docs[0] {
		rec[name] = i.coerceJSONValue(name, value)
	}
	return rec, nil
}

func (i *SearchIndex) coerceJSONValue(name string, value any) any {
	f, ok := i.schema.Field(name)
	if !ok {
		return value
	}
	if f.Type != schema.TypeVector {
		return value
	}
	list, ok := value.([]any)
	if !ok {
		return value
	}
	floats := make([]float32, len(list))
	for idx, item := range list {
		if n, ok := item.(float64); ok {
			floats[idx] = float32(n)
		}
	}
	return floats
}

func (i *SearchIndex) fieldDataType(name string) vec.DataType {
	f, ok := i.schema.Field(name)
	if !ok || f.Type != schema.TypeVector {
		return vec.Float32
	}
	return dataTypeOf(f)
}

func dataTypeOf(f schema.Field) vec.DataType {
	if f.DataType == schema.DataTypeFloat64 {
		return vec.Float64
	}
	return vec.Float32
}
