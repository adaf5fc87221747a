package engine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/rueidis"
)

// DistanceField is the alias under which vector queries yield the row
// distance. Parsed out of the field map into Row.Distance.
const DistanceField = "vector_distance"

// SearchMode selects how a request is translated into FT.SEARCH.
type SearchMode int

// Search modes.
const (
	ModePlain SearchMode = iota
	ModeKNN
	ModeRange
)

// SearchRequest is one search round trip. Query carries the pre-rendered
// filter string ("*" for match-all); vector modes add the encoded blob.
type SearchRequest struct {
	Index  string
	Query  string
	Mode   SearchMode
	Fields []string

	// Vector modes
	VectorField string
	Blob        []byte
	K           int
	Radius      float64 // ModeRange: distance threshold

	// ModePlain
	Offset  int
	Limit   int
	SortBy  string
	SortAsc bool
}

// Row is one decoded search result row.
type Row struct {
	Key         string
	Fields      map[string]string
	Distance    float64
	HasDistance bool
}

// SearchResult is an ordered FT.SEARCH reply.
type SearchResult struct {
	Total int
	Rows  []Row
}

// Search executes a search request and parses the reply. Row order is the
// engine's order.
func (c *Client) Search(ctx context.Context, req *SearchRequest) (*SearchResult, error) {
	if req.Index == "" {
		return nil, fmt.Errorf("index name is required")
	}

	args, err := buildSearchArgs(req)
	if err != nil {
		return nil, err
	}

	cmd := c.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := c.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, engineErr("FT.SEARCH", err)
	}

	return parseSearchResult(raw)
}

func buildSearchArgs(req *SearchRequest) ([]string, error) {
	switch req.Mode {
	case ModePlain:
		return buildPlainArgs(req), nil
	case ModeKNN:
		return buildKNNArgs(req)
	case ModeRange:
		return buildRangeArgs(req)
	}
	return nil, fmt.Errorf("unknown search mode %d", req.Mode)
}

func buildPlainArgs(req *SearchRequest) []string {
	args := []string{req.Index, req.Query}
	args = appendReturn(args, req.Fields)
	if req.SortBy != "" {
		dir := "DESC"
		if req.SortAsc {
			dir = "ASC"
		}
		args = append(args, "SORTBY", req.SortBy, dir)
	}
	args = append(args, "LIMIT", strconv.Itoa(req.Offset), strconv.Itoa(req.Limit))
	return args
}

func buildKNNArgs(req *SearchRequest) ([]string, error) {
	if err := validateVectorReq(req); err != nil {
		return nil, err
	}

	knn := fmt.Sprintf("[KNN %d @%s $BLOB AS %s]", req.K, req.VectorField, DistanceField)
	var queryStr string
	if req.Query == "" || req.Query == "*" {
		queryStr = "*=>" + knn
	} else {
		queryStr = "(" + req.Query + ")=>" + knn
	}

	args := []string{req.Index, queryStr}
	args = appendReturn(args, withDistanceField(req.Fields))
	args = append(args,
		"SORTBY", DistanceField,
		"LIMIT", "0", strconv.Itoa(req.K),
		"PARAMS", "2", "BLOB", string(req.Blob),
		"DIALECT", "2",
	)
	return args, nil
}

func buildRangeArgs(req *SearchRequest) ([]string, error) {
	if err := validateVectorReq(req); err != nil {
		return nil, err
	}

	base := fmt.Sprintf("@%s:[VECTOR_RANGE $radius $BLOB]=>{$yield_distance_as: %s}",
		req.VectorField, DistanceField)
	queryStr := base
	if req.Query != "" && req.Query != "*" {
		queryStr = "(" + base + " " + req.Query + ")"
	}

	args := []string{req.Index, queryStr}
	args = appendReturn(args, withDistanceField(req.Fields))
	args = append(args,
		"SORTBY", DistanceField,
		"LIMIT", "0", strconv.Itoa(req.K),
		"PARAMS", "4",
		"radius", strconv.FormatFloat(req.Radius, 'g', -1, 64),
		"BLOB", string(req.Blob),
		"DIALECT", "2",
	)
	return args, nil
}

func validateVectorReq(req *SearchRequest) error {
	if len(req.Blob) == 0 {
		return fmt.Errorf("vector blob is required")
	}
	if req.VectorField == "" {
		return fmt.Errorf("vector field is required")
	}
	if req.K <= 0 {
		return fmt.Errorf("k must be positive")
	}
	return nil
}

func appendReturn(args, fields []string) []string {
	if len(fields) == 0 {
		return args
	}
	args = append(args, "RETURN", strconv.Itoa(len(fields)))
	return append(args, fields...)
}

// withDistanceField ensures the distance alias is returned alongside the
// requested fields. Nil stays nil: no RETURN clause returns everything,
// including the alias.
func withDistanceField(fields []string) []string {
	if len(fields) == 0 {
		return nil
	}
	for _, f := range fields {
		if f == DistanceField {
			return fields
		}
	}
	out := make([]string, 0, len(fields)+1)
	out = append(out, fields...)
	return append(out, DistanceField)
}

// --- result parsing ---

func parseSearchResult(raw []rueidis.RedisMessage) (*SearchResult, error) {
	if len(raw) == 0 {
		return &SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return &SearchResult{Total: 0}, nil
	}

	rows := make([]Row, 0, total)
	// 2-stride: [total, key1, fields1, key2, fields2, ...]
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}

		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		row := Row{
			Key:    key,
			Fields: parseFieldPairs(fields),
		}

		if distStr, ok := row.Fields[DistanceField]; ok {
			if d, err := strconv.ParseFloat(distStr, 64); err == nil {
				row.Distance = d
				row.HasDistance = true
			}
			delete(row.Fields, DistanceField)
		}

		rows = append(rows, row)
	}

	return &SearchResult{Total: int(total), Rows: rows}, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}
