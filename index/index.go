// Package index is the engine-facing client: it materializes an IndexSchema
// against the engine, loads and fetches records, and executes queries.
package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/rueidis"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecdex"
	"github.com/kailas-cloud/vecdex/internal/engine"
	"github.com/kailas-cloud/vecdex/internal/vec"
	"github.com/kailas-cloud/vecdex/query"
	"github.com/kailas-cloud/vecdex/schema"
)

// ScoreField is the record key carrying the vector distance when a query
// asks for scores.
const ScoreField = engine.DistanceField

// engineAPI is the slice of the engine layer the index consumes.
type engineAPI interface {
	CreateIndex(ctx context.Context, name, storage string, prefixes, schemaArgs []string) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	ListIndexes(ctx context.Context) ([]string, error)
	HSetMulti(ctx context.Context, items []engine.HashItem) error
	JSONSetMulti(ctx context.Context, items []engine.JSONItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	JSONGet(ctx context.Context, key string) ([]byte, error)
	DelBatch(ctx context.Context, keys []string) (int, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Search(ctx context.Context, req *engine.SearchRequest) (*engine.SearchResult, error)
	Close()
}

// SearchIndex binds an IndexSchema to an engine connection. The schema is
// the only client-side state; everything else lives in the engine.
type SearchIndex struct {
	schema *schema.IndexSchema
	store  engineAPI
	owned  bool // store was created by Connect and is closed on Disconnect
	log    *zap.Logger
}

// Option configures a SearchIndex.
type Option func(*SearchIndex)

// WithLogger sets the operation logger (default: no-op).
func WithLogger(l *zap.Logger) Option {
	return func(i *SearchIndex) { i.log = l }
}

// New creates a SearchIndex over the given schema. The index is unusable
// until Connect or SetClient binds an engine handle.
func New(s *schema.IndexSchema, opts ...Option) *SearchIndex {
	i := &SearchIndex{schema: s, log: zap.NewNop()}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Schema returns the bound schema.
func (i *SearchIndex) Schema() *schema.IndexSchema { return i.schema }

// Name returns the index name.
func (i *SearchIndex) Name() string { return i.schema.Name() }

// Connect dials the engine at the given URL (e.g. "redis://localhost:6379")
// and binds the connection. The index owns this connection: Disconnect
// closes it.
func (i *SearchIndex) Connect(url string) error {
	opt, err := rueidis.ParseURL(url)
	if err != nil {
		return fmt.Errorf("parse engine url: %w", err)
	}
	opt.DisableCache = true
	opt.AlwaysRESP2 = true

	client, err := rueidis.NewClient(opt)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	i.store = engine.FromRueidis(client)
	i.owned = true
	return nil
}

// SetClient binds an existing connection, replacing any previous binding.
// The caller keeps ownership; Disconnect will not close it.
func (i *SearchIndex) SetClient(client rueidis.Client) {
	i.store = engine.FromRueidis(client)
	i.owned = false
}

// Disconnect releases the engine handle. Subsequent operations fail with
// ErrNotConnected until rebound.
func (i *SearchIndex) Disconnect() {
	if i.store != nil && i.owned {
		i.store.Close()
	}
	i.store = nil
	i.owned = false
}

func (i *SearchIndex) connected() (engineAPI, error) {
	if i.store == nil {
		return nil, vectra.ErrNotConnected
	}
	return i.store, nil
}

// Create materializes the index definition in the engine.
//
// When the index already exists and overwrite is false, Create succeeds
// without re-creating. The existence probe and the creation are two separate
// exchanges with no atomicity guarantee: concurrent callers can race to
// create the same index. With overwrite, the existing definition is dropped
// first; dropData additionally deletes every record under the key prefix.
func (i *SearchIndex) Create(ctx context.Context, overwrite, dropData bool) error {
	store, err := i.connected()
	if err != nil {
		return err
	}

	exists, err := store.IndexExists(ctx, i.schema.Name())
	if err != nil {
		return err
	}
	if exists {
		if !overwrite {
			i.log.Debug("index already exists, skipping create",
				zap.String("index", i.schema.Name()))
			return nil
		}
		if err := i.Delete(ctx, dropData); err != nil {
			return err
		}
	}

	schemaArgs, err := i.schema.RenderFields()
	if err != nil {
		return err
	}

	var prefixes []string
	if i.schema.Prefix() != "" {
		prefixes = []string{i.schema.Prefix() + i.schema.KeySeparator()}
	}

	if err := store.CreateIndex(ctx, i.schema.Name(), string(i.schema.Storage()), prefixes, schemaArgs); err != nil {
		return err
	}
	i.log.Debug("index created",
		zap.String("index", i.schema.Name()),
		zap.Int("fields", len(i.schema.Fields())))
	return nil
}

// Exists probes the engine's index catalog.
func (i *SearchIndex) Exists(ctx context.Context) (bool, error) {
	store, err := i.connected()
	if err != nil {
		return false, err
	}
	return store.IndexExists(ctx, i.schema.Name())
}

// ListAll returns every index name in the engine catalog.
func (i *SearchIndex) ListAll(ctx context.Context) ([]string, error) {
	store, err := i.connected()
	if err != nil {
		return nil, err
	}
	return store.ListIndexes(ctx)
}

// Delete removes the index definition. With dropData, every key under the
// prefix is scanned and deleted in batches; records written concurrently may
// survive depending on cursor timing.
func (i *SearchIndex) Delete(ctx context.Context, dropData bool) error {
	store, err := i.connected()
	if err != nil {
		return err
	}

	if err := store.DropIndex(ctx, i.schema.Name()); err != nil {
		return err
	}
	if dropData {
		if _, err := i.Clear(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Clear deletes every record under the key prefix and returns how many were
// removed. Best effort: the scan and the deletes are separate exchanges.
func (i *SearchIndex) Clear(ctx context.Context) (int, error) {
	store, err := i.connected()
	if err != nil {
		return 0, err
	}

	keys, err := store.Scan(ctx, i.schema.KeyPattern())
	if err != nil {
		return 0, err
	}
	return store.DelBatch(ctx, keys)
}

// LoadOptions shape a Load call.
type LoadOptions struct {
	// KeyField names the record field whose value becomes the key id.
	// When empty, a generated identifier is used.
	KeyField string
	// Preprocess transforms each record before writing. Returning a nil
	// record fails the load with a ValidationError.
	Preprocess func(Record) (Record, error)
	// TTL, when positive, expires each written key.
	TTL time.Duration
}

// Load writes records and returns their keys in record order. Keys derive
// from the schema key rule over the KeyField value. Input errors are
// detected before any write; a mid-batch engine failure leaves prior writes
// committed and is reported with the failing key.
func (i *SearchIndex) Load(ctx context.Context, records []Record, opts LoadOptions) ([]string, error) {
	store, err := i.connected()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	keys := make([]string, len(records))
	prepared := make([]Record, len(records))
	for idx, rec := range records {
		id, err := i.recordID(rec, opts.KeyField)
		if err != nil {
			return nil, err
		}
		keys[idx] = i.schema.Key(id)

		if opts.Preprocess != nil {
			rec, err = opts.Preprocess(rec)
			if err != nil {
				return nil, vectra.NewValidationError("preprocess: %v", err)
			}
			if rec == nil {
				return nil, vectra.NewValidationError("preprocess must return a record")
			}
		}
		prepared[idx] = rec
	}

	if err := i.writeRecords(ctx, store, keys, prepared); err != nil {
		return nil, err
	}

	if opts.TTL > 0 {
		for _, key := range keys {
			if err := store.Expire(ctx, key, opts.TTL); err != nil {
				return keys, err
			}
		}
	}

	i.log.Debug("records loaded",
		zap.String("index", i.schema.Name()),
		zap.Int("count", len(keys)))
	return keys, nil
}

func (i *SearchIndex) recordID(rec Record, keyField string) (string, error) {
	if keyField == "" {
		return uuid.NewString(), nil
	}
	value, ok := rec[keyField]
	if !ok {
		return "", vectra.NewValidationError("record is missing key field %q", keyField)
	}
	switch v := value.(type) {
	case string:
		if v == "" {
			return "", vectra.NewValidationError("record key field %q is empty", keyField)
		}
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case int:
		return strconv.Itoa(v), nil
	default:
		return fmt.Sprint(v), nil
	}
}

func (i *SearchIndex) writeRecords(ctx context.Context, store engineAPI, keys []string, records []Record) error {
	if i.schema.Storage() == schema.StorageJSON {
		items := make([]engine.JSONItem, len(records))
		for idx, rec := range records {
			data, err := json.Marshal(rec)
			if err != nil {
				return vectra.NewValidationError("record %s is not json-serializable: %v", keys[idx], err)
			}
			items[idx] = engine.JSONItem{Key: keys[idx], Data: data}
		}
		return store.JSONSetMulti(ctx, items)
	}

	items := make([]engine.HashItem, len(records))
	for idx, rec := range records {
		items[idx] = engine.HashItem{Key: keys[idx], Fields: i.encodeHashFields(rec)}
	}
	return store.HSetMulti(ctx, items)
}

// Fetch reads the record stored under the schema key for id. A missing key
// returns (nil, nil), not an error.
func (i *SearchIndex) Fetch(ctx context.Context, id string) (Record, error) {
	store, err := i.connected()
	if err != nil {
		return nil, err
	}

	key := i.schema.Key(id)

	if i.schema.Storage() == schema.StorageJSON {
		data, err := store.JSONGet(ctx, key)
		if err != nil {
			if errors.Is(err, engine.ErrKeyNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return i.decodeJSONDocument(data)
	}

	raw, err := store.HGetAll(ctx, key)
	if err != nil {
		if errors.Is(err, engine.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return i.decodeHashFields(raw), nil
}

// Query renders and executes a query, mapping rows into typed records in the
// engine's returned order. RangeQuery results are additionally filtered
// client-side: only rows with distance <= the threshold are kept, since the
// engine's range operator is expressed in distance, not similarity.
func (i *SearchIndex) Query(ctx context.Context, q query.Query) ([]Record, error) {
	store, err := i.connected()
	if err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	req, returnScore, err := i.buildRequest(q)
	if err != nil {
		return nil, err
	}

	res, err := store.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(res.Rows))
	for _, row := range res.Rows {
		if rq, ok := q.(*query.RangeQuery); ok && row.HasDistance && row.Distance > rq.DistanceThreshold {
			continue
		}
		rec := i.decodeHashFields(row.Fields)
		rec["id"] = row.Key
		if returnScore && row.HasDistance {
			rec[ScoreField] = row.Distance
		}
		records = append(records, rec)
	}

	i.log.Debug("query executed",
		zap.String("index", i.schema.Name()),
		zap.Int("returned", len(records)))
	return records, nil
}

func (i *SearchIndex) buildRequest(q query.Query) (*engine.SearchRequest, bool, error) {
	switch tq := q.(type) {
	case *query.FilterQuery:
		filterStr, err := tq.Filter.Render(i.schema)
		if err != nil {
			return nil, false, err
		}
		return &engine.SearchRequest{
			Index:   i.schema.Name(),
			Query:   filterStr,
			Mode:    engine.ModePlain,
			Fields:  tq.ReturnFields,
			Offset:  tq.Offset,
			Limit:   tq.Limit(),
			SortBy:  tq.SortBy,
			SortAsc: tq.SortAsc,
		}, false, nil

	case *query.VectorQuery:
		blob, err := i.encodeQueryVector(tq.Field, tq.Vector)
		if err != nil {
			return nil, false, err
		}
		filterStr, err := tq.Filter.Render(i.schema)
		if err != nil {
			return nil, false, err
		}
		return &engine.SearchRequest{
			Index:       i.schema.Name(),
			Query:       filterStr,
			Mode:        engine.ModeKNN,
			Fields:      tq.ReturnFields,
			VectorField: tq.Field,
			Blob:        blob,
			K:           tq.Limit(),
		}, tq.ReturnScore, nil

	case *query.RangeQuery:
		blob, err := i.encodeQueryVector(tq.Field, tq.Vector)
		if err != nil {
			return nil, false, err
		}
		filterStr, err := tq.Filter.Render(i.schema)
		if err != nil {
			return nil, false, err
		}
		return &engine.SearchRequest{
			Index:       i.schema.Name(),
			Query:       filterStr,
			Mode:        engine.ModeRange,
			Fields:      tq.ReturnFields,
			VectorField: tq.Field,
			Blob:        blob,
			K:           tq.Limit(),
			Radius:      tq.DistanceThreshold,
		}, tq.ReturnScore, nil
	}
	return nil, false, vectra.NewValidationError("unsupported query type %T", q)
}

func (i *SearchIndex) encodeQueryVector(field string, vector []float32) ([]byte, error) {
	f, ok := i.schema.Field(field)
	if !ok {
		return nil, vectra.NewSchemaError(field, vectra.ErrUnknownField)
	}
	if f.Type != schema.TypeVector {
		return nil, vectra.NewSchemaError(field, vectra.ErrUnknownField)
	}
	if len(vector) != f.Dims {
		return nil, vectra.NewSchemaError(field, vectra.ErrDimMismatch)
	}
	return vec.Encode(vector, dataTypeOf(f)), nil
}

// Incr atomically bumps a counter key. The increment and any subsequent
// record write are separate exchanges: a reader can observe the bump before
// the record is visible.
func (i *SearchIndex) Incr(ctx context.Context, key string) (int64, error) {
	store, err := i.connected()
	if err != nil {
		return 0, err
	}
	return store.Incr(ctx, key)
}

// Count reads a counter key, returning 0 when absent.
func (i *SearchIndex) Count(ctx context.Context, key string) (int64, error) {
	store, err := i.connected()
	if err != nil {
		return 0, err
	}
	data, err := store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, engine.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse counter %s: %w", key, err)
	}
	return n, nil
}

// Expire refreshes the TTL of a stored key.
func (i *SearchIndex) Expire(ctx context.Context, key string, ttl time.Duration) error {
	store, err := i.connected()
	if err != nil {
		return err
	}
	return store.Expire(ctx, key, ttl)
}
