// Package cache provides a semantic LLM response cache: prompts are matched
// by embedding similarity instead of exact text equality.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecdex"
	"github.com/kailas-cloud/vecdex/index"
	"github.com/kailas-cloud/vecdex/query"
	"github.com/kailas-cloud/vecdex/schema"
	"github.com/kailas-cloud/vecdex/vectorizer"
)

// Default cache settings.
const (
	DefaultIndexName = "cache"
	DefaultPrefix    = "llmcache"
	DefaultThreshold = 0.9
)

// Field names of a cache entry.
const (
	FieldPrompt     = "prompt"
	FieldResponse   = "response"
	FieldVector     = "prompt_vector"
	FieldInsertedAt = "inserted_at"
)

// store is the slice of the index client the cache consumes.
type store interface {
	Create(ctx context.Context, overwrite, dropData bool) error
	Load(ctx context.Context, records []index.Record, opts index.LoadOptions) ([]string, error)
	Query(ctx context.Context, q query.Query) ([]index.Record, error)
	Clear(ctx context.Context) (int, error)
	Delete(ctx context.Context, dropData bool) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Schema() *schema.IndexSchema
}

// Hit is a cache match above the similarity threshold.
type Hit struct {
	Key        string
	Prompt     string
	Response   string
	Similarity float64
}

// SemanticCache stores prompt/response pairs keyed by prompt embedding.
// A lookup embeds the incoming prompt and returns the closest stored entry
// whose cosine similarity clears the threshold.
type SemanticCache struct {
	store     store
	index     *index.SearchIndex
	embed     vectorizer.Vectorizer
	threshold float64
	ttl       time.Duration
	log       *zap.Logger
}

// Option configures a SemanticCache.
type Option func(*config)

type config struct {
	name      string
	prefix    string
	threshold float64
	ttl       time.Duration
	log       *zap.Logger
}

// WithIndexName overrides the index name (default "cache").
func WithIndexName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithPrefix overrides the key prefix (default "llmcache").
func WithPrefix(prefix string) Option {
	return func(c *config) { c.prefix = prefix }
}

// WithThreshold sets the similarity threshold for a hit, in [0, 1].
func WithThreshold(t float64) Option {
	return func(c *config) { c.threshold = t }
}

// WithTTL expires entries after the given duration. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(c *config) { c.ttl = ttl }
}

// WithLogger sets the operation logger (default: no-op).
func WithLogger(l *zap.Logger) Option {
	return func(c *config) { c.log = l }
}

// New builds a SemanticCache over the given vectorizer. The underlying index
// is created but unbound: connect it via Index().Connect or
// Index().SetClient, then call Init.
func New(embed vectorizer.Vectorizer, opts ...Option) (*SemanticCache, error) {
	cfg := config{
		name:      DefaultIndexName,
		prefix:    DefaultPrefix,
		threshold: DefaultThreshold,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.threshold < 0 || cfg.threshold > 1 {
		return nil, vectra.NewValidationError("threshold must be in [0, 1], got %g", cfg.threshold)
	}
	if embed.Dims() <= 0 {
		return nil, vectra.NewValidationError("vectorizer must report positive dims")
	}

	s, err := schema.New(cfg.name, []schema.Field{
		schema.TextField(FieldPrompt),
		schema.TextField(FieldResponse),
		schema.NumericField(FieldInsertedAt),
		schema.VectorField(FieldVector, embed.Dims(), schema.AlgorithmFlat),
	}, schema.WithPrefix(cfg.prefix))
	if err != nil {
		return nil, err
	}

	idx := index.New(s, index.WithLogger(cfg.log))
	return &SemanticCache{
		store:     idx,
		index:     idx,
		embed:     embed,
		threshold: cfg.threshold,
		ttl:       cfg.ttl,
		log:       cfg.log,
	}, nil
}

// Index exposes the underlying index for connection binding.
func (c *SemanticCache) Index() *index.SearchIndex { return c.index }

// Init materializes the cache index in the engine. Idempotent.
func (c *SemanticCache) Init(ctx context.Context) error {
	return c.store.Create(ctx, false, false)
}

// Threshold returns the current similarity threshold.
func (c *SemanticCache) Threshold() float64 { return c.threshold }

// SetThreshold adjusts the similarity threshold for subsequent lookups.
func (c *SemanticCache) SetThreshold(t float64) error {
	if t < 0 || t > 1 {
		return vectra.NewValidationError("threshold must be in [0, 1], got %g", t)
	}
	c.threshold = t
	return nil
}

// SetTTL adjusts the expiry applied to new entries and refreshed hits.
func (c *SemanticCache) SetTTL(ttl time.Duration) { c.ttl = ttl }

// Check embeds the prompt and returns the closest stored entry whose cosine
// similarity is at least the threshold, or nil when nothing qualifies. A hit
// refreshes the entry's TTL when one is configured.
func (c *SemanticCache) Check(ctx context.Context, prompt string) (*Hit, error) {
	vector, err := c.embed.Embed(ctx, prompt)
	if err != nil {
		return nil, err
	}

	q := &query.RangeQuery{
		Vector:            vector,
		Field:             FieldVector,
		DistanceThreshold: 1 - c.threshold,
		ReturnFields:      []string{FieldPrompt, FieldResponse},
		ReturnScore:       true,
		NumResults:        1,
	}
	records, err := c.store.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		c.log.Debug("cache miss")
		return nil, nil
	}

	rec := records[0]
	hit := &Hit{
		Key:        asString(rec["id"]),
		Prompt:     asString(rec[FieldPrompt]),
		Response:   asString(rec[FieldResponse]),
		Similarity: 1,
	}
	if d, ok := rec[index.ScoreField].(float64); ok {
		hit.Similarity = 1 - d
	}

	if c.ttl > 0 && hit.Key != "" {
		if err := c.store.Expire(ctx, hit.Key, c.ttl); err != nil {
			return nil, err
		}
	}

	c.log.Debug("cache hit", zap.Float64("similarity", hit.Similarity))
	return hit, nil
}

// Store writes a prompt/response pair and returns its key. The entry id is
// the SHA-256 of the prompt, so storing the same prompt twice overwrites.
// Metadata fields are stored alongside the entry but not indexed.
func (c *SemanticCache) Store(ctx context.Context, prompt, response string, metadata map[string]any) (string, error) {
	vector, err := c.embed.Embed(ctx, prompt)
	if err != nil {
		return "", err
	}

	rec := index.Record{
		"id":            promptID(prompt),
		FieldPrompt:     prompt,
		FieldResponse:   response,
		FieldVector:     vector,
		FieldInsertedAt: float64(time.Now().Unix()),
	}
	for name, value := range metadata {
		if _, reserved := rec[name]; !reserved {
			rec[name] = value
		}
	}
	keys, err := c.store.Load(ctx, []index.Record{rec}, index.LoadOptions{
		KeyField: "id",
		TTL:      c.ttl,
	})
	if err != nil {
		return "", err
	}
	return keys[0], nil
}

// Clear deletes every cache entry, keeping the index definition.
func (c *SemanticCache) Clear(ctx context.Context) (int, error) {
	return c.store.Clear(ctx)
}

// Drop removes the cache index and all entries.
func (c *SemanticCache) Drop(ctx context.Context) error {
	return c.store.Delete(ctx, true)
}

func promptID(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
