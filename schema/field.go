package schema

import (
	"strconv"
	"strings"

	"github.com/kailas-cloud/vecdex"
)

// FieldType enumerates the supported index field kinds.
type FieldType string

// Field kind constants.
const (
	TypeTag     FieldType = "tag"
	TypeText    FieldType = "text"
	TypeNumeric FieldType = "numeric"
	TypeGeo     FieldType = "geo"
	TypeVector  FieldType = "vector"
)

// Algorithm selects the vector indexing algorithm.
type Algorithm string

// Vector algorithm constants.
const (
	AlgorithmFlat Algorithm = "FLAT"
	AlgorithmHNSW Algorithm = "HNSW"
)

// DataType selects the vector element encoding.
type DataType string

// Vector datatype constants.
const (
	DataTypeFloat32 DataType = "FLOAT32"
	DataTypeFloat64 DataType = "FLOAT64"
)

// DistanceMetric selects the vector similarity metric.
type DistanceMetric string

// Distance metric constants.
const (
	DistanceL2     DistanceMetric = "L2"
	DistanceCosine DistanceMetric = "COSINE"
	DistanceIP     DistanceMetric = "IP"
)

// Field describes a single index field. It is a closed tagged variant: Type
// selects which attribute group is meaningful, and Render dispatches on it
// exhaustively.
type Field struct {
	Name     string
	Type     FieldType
	Alias    string // AS alias in the engine schema
	Sortable bool

	// TEXT options
	Weight          float64
	NoStem          bool
	PhoneticMatcher string
	WithSuffixTrie  bool

	// TAG options
	Separator     string
	CaseSensitive bool

	// VECTOR options
	Dims           int
	Algorithm      Algorithm
	DataType       DataType
	DistanceMetric DistanceMetric
	BlockSize      int     // FLAT only
	M              int     // HNSW max edges per node
	EFConstruction int     // HNSW build-time candidate list size
	EFRuntime      int     // HNSW query-time candidate list size
	Epsilon        float64 // HNSW range search boundary factor
}

// TagField creates a tag field with the default "," separator.
func TagField(name string) Field {
	return Field{Name: name, Type: TypeTag, Separator: ","}
}

// TextField creates a text field with the default weight of 1.
func TextField(name string) Field {
	return Field{Name: name, Type: TypeText, Weight: 1}
}

// NumericField creates a numeric field.
func NumericField(name string) Field {
	return Field{Name: name, Type: TypeNumeric}
}

// GeoField creates a geo field.
func GeoField(name string) Field {
	return Field{Name: name, Type: TypeGeo}
}

// VectorField creates a FLAT or HNSW vector field with engine defaults:
// FLOAT32 elements, cosine distance, and for HNSW M=16, EF_CONSTRUCTION=200,
// EF_RUNTIME=10, EPSILON=0.01.
func VectorField(name string, dims int, algo Algorithm) Field {
	return Field{
		Name:           name,
		Type:           TypeVector,
		Dims:           dims,
		Algorithm:      algo,
		DataType:       DataTypeFloat32,
		DistanceMetric: DistanceCosine,
		M:              16,
		EFConstruction: 200,
		EFRuntime:      10,
		Epsilon:        0.01,
	}
}

// RetrievalName returns the name the engine reports the field under.
func (f Field) RetrievalName() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

// Render maps the field to its engine schema args. The output is
// deterministic: identical fields yield identical slices. Enum attributes are
// case-normalized first; unrecognized values fail with ErrInvalidEnum.
func (f Field) Render() ([]string, error) {
	if f.Name == "" {
		return nil, vectra.NewSchemaError("", vectra.ErrMissingName)
	}

	args := []string{f.Name}
	if f.Alias != "" {
		args = append(args, "AS", f.Alias)
	}

	switch f.Type {
	case TypeTag:
		args = append(args, "TAG")
		if f.Separator != "" {
			args = append(args, "SEPARATOR", f.Separator)
		}
		if f.CaseSensitive {
			args = append(args, "CASESENSITIVE")
		}

	case TypeText:
		args = append(args, "TEXT")
		if f.Weight != 0 && f.Weight != 1 {
			args = append(args, "WEIGHT", strconv.FormatFloat(f.Weight, 'g', -1, 64))
		}
		if f.NoStem {
			args = append(args, "NOSTEM")
		}
		if f.PhoneticMatcher != "" {
			args = append(args, "PHONETIC", f.PhoneticMatcher)
		}
		if f.WithSuffixTrie {
			args = append(args, "WITHSUFFIXTRIE")
		}

	case TypeNumeric:
		args = append(args, "NUMERIC")

	case TypeGeo:
		args = append(args, "GEO")

	case TypeVector:
		vectorArgs, err := f.renderVector()
		if err != nil {
			return nil, err
		}
		args = append(args, vectorArgs...)

	default:
		return nil, vectra.NewSchemaError(f.Name, vectra.ErrInvalidEnum)
	}

	if f.Sortable {
		args = append(args, "SORTABLE")
	}

	return args, nil
}

func (f Field) renderVector() ([]string, error) {
	if f.Dims <= 0 {
		return nil, vectra.NewSchemaError(f.Name, vectra.ErrDimMismatch)
	}

	algo, err := normalizeAlgorithm(f.Algorithm)
	if err != nil {
		return nil, vectra.NewSchemaError(f.Name, err)
	}
	datatype, err := normalizeDataType(f.DataType)
	if err != nil {
		return nil, vectra.NewSchemaError(f.Name, err)
	}
	metric, err := normalizeMetric(f.DistanceMetric)
	if err != nil {
		return nil, vectra.NewSchemaError(f.Name, err)
	}

	attrs := []string{
		"TYPE", string(datatype),
		"DIM", strconv.Itoa(f.Dims),
		"DISTANCE_METRIC", string(metric),
	}

	switch algo {
	case AlgorithmFlat:
		if f.BlockSize > 0 {
			attrs = append(attrs, "BLOCK_SIZE", strconv.Itoa(f.BlockSize))
		}
	case AlgorithmHNSW:
		attrs = append(attrs,
			"M", strconv.Itoa(orDefault(f.M, 16)),
			"EF_CONSTRUCTION", strconv.Itoa(orDefault(f.EFConstruction, 200)),
			"EF_RUNTIME", strconv.Itoa(orDefault(f.EFRuntime, 10)),
			"EPSILON", strconv.FormatFloat(orDefaultFloat(f.Epsilon, 0.01), 'g', -1, 64),
		)
	}

	out := make([]string, 0, 3+len(attrs))
	out = append(out, "VECTOR", string(algo), strconv.Itoa(len(attrs)))
	out = append(out, attrs...)
	return out, nil
}

func normalizeAlgorithm(a Algorithm) (Algorithm, error) {
	switch Algorithm(strings.ToUpper(string(a))) {
	case AlgorithmFlat:
		return AlgorithmFlat, nil
	case AlgorithmHNSW:
		return AlgorithmHNSW, nil
	}
	return "", vectra.ErrInvalidEnum
}

func normalizeDataType(dt DataType) (DataType, error) {
	switch DataType(strings.ToUpper(string(dt))) {
	case DataTypeFloat32:
		return DataTypeFloat32, nil
	case DataTypeFloat64:
		return DataTypeFloat64, nil
	}
	return "", vectra.ErrInvalidEnum
}

func normalizeMetric(m DistanceMetric) (DistanceMetric, error) {
	switch DistanceMetric(strings.ToUpper(string(m))) {
	case DistanceL2:
		return DistanceL2, nil
	case DistanceCosine:
		return DistanceCosine, nil
	case DistanceIP:
		return DistanceIP, nil
	}
	return "", vectra.ErrInvalidEnum
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func orDefaultFloat(v, def float64) float64 {
	if v > 0 {
		return v
	}
	return def
}
