package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecdex"
	"github.com/kailas-cloud/vecdex/filter"
	"github.com/kailas-cloud/vecdex/index"
	"github.com/kailas-cloud/vecdex/query"
	"github.com/kailas-cloud/vecdex/schema"
	"github.com/kailas-cloud/vecdex/vectorizer"
)

// Remaining field names of a semantic session record.
const (
	FieldPrompt     = "prompt"
	FieldResponse   = "response"
	FieldTimestamp  = "timestamp"
	FieldCount      = "count"
	FieldTokenCount = "token_count"
	FieldVector     = "exchange_vector"
)

// DefaultDistanceThreshold bounds how far an exchange may be from the query
// embedding and still count as relevant context.
const DefaultDistanceThreshold = 0.3

// semanticStore is the slice of the index client the manager consumes.
type semanticStore interface {
	Create(ctx context.Context, overwrite, dropData bool) error
	Load(ctx context.Context, records []index.Record, opts index.LoadOptions) ([]string, error)
	Query(ctx context.Context, q query.Query) ([]index.Record, error)
	Clear(ctx context.Context) (int, error)
	Delete(ctx context.Context, dropData bool) error
	Incr(ctx context.Context, key string) (int64, error)
	Count(ctx context.Context, key string) (int64, error)
}

// SemanticSessionManager stores conversation exchanges with an embedding of
// each exchange, so context retrieval can rank history by relevance to the
// next prompt instead of recency alone.
type SemanticSessionManager struct {
	name      string
	scope     Scope
	store     semanticStore
	index     *index.SearchIndex
	embed     vectorizer.Vectorizer
	threshold float64
	log       *zap.Logger
}

// SemanticOption configures a SemanticSessionManager.
type SemanticOption func(*semanticConfig)

type semanticConfig struct {
	prefix    string
	threshold float64
	log       *zap.Logger
}

// WithSessionPrefix overrides the key prefix (default: the manager name).
func WithSessionPrefix(prefix string) SemanticOption {
	return func(c *semanticConfig) { c.prefix = prefix }
}

// WithDistanceThreshold sets the relevance cutoff for FetchContext, in [0, 2].
func WithDistanceThreshold(t float64) SemanticOption {
	return func(c *semanticConfig) { c.threshold = t }
}

// WithSessionLogger sets the operation logger (default: no-op).
func WithSessionLogger(l *zap.Logger) SemanticOption {
	return func(c *semanticConfig) { c.log = l }
}

// NewSemantic builds a manager named name, scoped by scope. The underlying
// index is created but unbound: connect it via Index().Connect or
// Index().SetClient, then call Init.
func NewSemantic(name string, embed vectorizer.Vectorizer, scope Scope, opts ...SemanticOption) (*SemanticSessionManager, error) {
	if name == "" {
		return nil, vectra.ErrMissingName
	}
	if embed.Dims() <= 0 {
		return nil, vectra.NewValidationError("vectorizer must report positive dims")
	}

	cfg := semanticConfig{
		prefix:    name,
		threshold: DefaultDistanceThreshold,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.threshold < 0 || cfg.threshold > 2 {
		return nil, vectra.NewValidationError("distance threshold must be in [0, 2], got %g", cfg.threshold)
	}

	s, err := schema.New(name, []schema.Field{
		schema.TextField(FieldPrompt),
		schema.TextField(FieldResponse),
		schema.NumericField(FieldTimestamp),
		schema.NumericField(FieldCount),
		schema.NumericField(FieldTokenCount),
		schema.TagField(FieldSessionID),
		schema.TagField(FieldUserID),
		schema.TagField(FieldAppID),
		schema.VectorField(FieldVector, embed.Dims(), schema.AlgorithmFlat),
	}, schema.WithPrefix(cfg.prefix))
	if err != nil {
		return nil, err
	}

	idx := index.New(s, index.WithLogger(cfg.log))
	return &SemanticSessionManager{
		name:      name,
		scope:     scope,
		store:     idx,
		index:     idx,
		embed:     embed,
		threshold: cfg.threshold,
		log:       cfg.log,
	}, nil
}

// Index exposes the underlying index for connection binding.
func (m *SemanticSessionManager) Index() *index.SearchIndex { return m.index }

// Scope returns the manager's scope.
func (m *SemanticSessionManager) Scope() Scope { return m.scope }

// WithScope returns a copy of the manager bound to a different scope. The
// underlying index and vectorizer are shared.
func (m *SemanticSessionManager) WithScope(scope Scope) *SemanticSessionManager {
	clone := *m
	clone.scope = scope
	return &clone
}

// Init materializes the session index in the engine. Idempotent.
func (m *SemanticSessionManager) Init(ctx context.Context) error {
	return m.store.Create(ctx, false, false)
}

// AddExchange records one prompt/response turn and returns its key. The
// scope counter is bumped first and the record written second; a concurrent
// reader can observe the new count before the exchange is searchable.
func (m *SemanticSessionManager) AddExchange(ctx context.Context, prompt, response string) (string, error) {
	return m.addExchange(ctx, prompt, response, 0)
}

// AddExchangeTokens is AddExchange with the token count of the turn recorded
// for usage queries.
func (m *SemanticSessionManager) AddExchangeTokens(ctx context.Context, prompt, response string, tokens int) (string, error) {
	return m.addExchange(ctx, prompt, response, tokens)
}

func (m *SemanticSessionManager) addExchange(ctx context.Context, prompt, response string, tokens int) (string, error) {
	count, err := m.store.Incr(ctx, m.scope.counterKey(m.name))
	if err != nil {
		return "", err
	}

	vector, err := m.embed.Embed(ctx, prompt+"\n"+response)
	if err != nil {
		return "", err
	}

	now := time.Now()
	rec := index.Record{
		"id":           exchangeID(m.scope, prompt, now),
		FieldPrompt:    prompt,
		FieldResponse:  response,
		FieldTimestamp: float64(now.UnixMilli()) / 1000,
		FieldCount:     float64(count),
		FieldVector:    vector,
	}
	if tokens > 0 {
		rec[FieldTokenCount] = float64(tokens)
	}
	if m.scope.AppID != "" {
		rec[FieldAppID] = m.scope.AppID
	}
	if m.scope.UserID != "" {
		rec[FieldUserID] = m.scope.UserID
	}
	if m.scope.SessionID != "" {
		rec[FieldSessionID] = m.scope.SessionID
	}

	keys, err := m.store.Load(ctx, []index.Record{rec}, index.LoadOptions{KeyField: "id"})
	if err != nil {
		return "", err
	}

	m.log.Debug("exchange recorded",
		zap.String("session", m.scope.SessionID),
		zap.Int64("count", count))
	return keys[0], nil
}

// FetchContext returns up to topK past exchanges relevant to prompt, oldest
// first, formatted as alternating user/llm messages. When nothing within the
// distance threshold is found, the most recent history is returned instead.
func (m *SemanticSessionManager) FetchContext(ctx context.Context, prompt string, topK int) ([]Message, error) {
	if topK <= 0 {
		topK = query.DefaultNumResults
	}

	vector, err := m.embed.Embed(ctx, prompt)
	if err != nil {
		return nil, err
	}

	q := &query.RangeQuery{
		Vector:            vector,
		Field:             FieldVector,
		Filter:            m.scope.Filter(),
		DistanceThreshold: m.threshold,
		ReturnFields:      []string{FieldPrompt, FieldResponse, FieldTimestamp},
		NumResults:        topK,
	}
	records, err := m.store.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		m.log.Debug("no relevant context, falling back to recent history")
		return m.ConversationHistory(ctx, topK)
	}

	return toMessages(records), nil
}

// ConversationHistory returns the scope's last n exchanges, oldest first.
// The window is cut by the exchange counter, so history survives engine-side
// result ordering quirks; rows are re-sorted by timestamp client-side.
func (m *SemanticSessionManager) ConversationHistory(ctx context.Context, n int) ([]Message, error) {
	if n <= 0 {
		n = query.DefaultNumResults
	}

	expr := m.scope.Filter()
	total, err := m.store.Count(ctx, m.scope.counterKey(m.name))
	if err != nil {
		return nil, err
	}
	if total > int64(n) {
		expr = expr.And(filterCountFrom(total - int64(n) + 1))
	}

	q := &query.FilterQuery{
		Filter:       expr,
		ReturnFields: []string{FieldPrompt, FieldResponse, FieldTimestamp},
		NumResults:   n,
		SortBy:       FieldTimestamp,
		SortAsc:      true,
	}
	records, err := m.store.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	return toMessages(records), nil
}

// Clear deletes every stored exchange, keeping the index definition.
func (m *SemanticSessionManager) Clear(ctx context.Context) (int, error) {
	return m.store.Clear(ctx)
}

// Delete removes the session index and all exchanges.
func (m *SemanticSessionManager) Delete(ctx context.Context) error {
	return m.store.Delete(ctx, true)
}

// toMessages sorts exchange records by timestamp and flattens each into a
// user message followed by an llm message.
func toMessages(records []index.Record) []Message {
	sort.SliceStable(records, func(a, b int) bool {
		return recTimestamp(records[a]) < recTimestamp(records[b])
	})

	msgs := make([]Message, 0, len(records)*2)
	for _, rec := range records {
		ts := recTimestamp(rec)
		if prompt, ok := rec[FieldPrompt].(string); ok {
			msgs = append(msgs, Message{Role: RoleUser, Content: prompt, Timestamp: ts})
		}
		if response, ok := rec[FieldResponse].(string); ok {
			msgs = append(msgs, Message{Role: RoleLLM, Content: response, Timestamp: ts})
		}
	}
	return msgs
}

func filterCountFrom(from int64) filter.Expression {
	return filter.Num(FieldCount).Ge(float64(from))
}

func recTimestamp(rec index.Record) float64 {
	ts, _ := rec[FieldTimestamp].(float64)
	return ts
}

func exchangeID(scope Scope, prompt string, at time.Time) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s:%s:%s:%d",
		scope.SessionID, scope.UserID, prompt, at.UnixNano()))
	return hex.EncodeToString(sum[:])
}
