package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/rueidis"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecdex"
	"github.com/kailas-cloud/vecdex/internal/engine"
)

// listStore is the slice of the engine the standard manager consumes.
type listStore interface {
	RPush(ctx context.Context, key string, values ...string) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	RPop(ctx context.Context, key string) error
	Del(ctx context.Context, key string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// StandardSessionManager keeps a scope's transcript as an engine list of
// JSON messages, in insertion order. No embeddings, no index: recency is the
// only retrieval signal.
type StandardSessionManager struct {
	name  string
	scope Scope
	store listStore
	ttl   time.Duration
	log   *zap.Logger
}

// StandardOption configures a StandardSessionManager.
type StandardOption func(*StandardSessionManager)

// WithTranscriptTTL expires the transcript after the given duration of
// inactivity. Zero keeps it forever.
func WithTranscriptTTL(ttl time.Duration) StandardOption {
	return func(m *StandardSessionManager) { m.ttl = ttl }
}

// WithStandardLogger sets the operation logger (default: no-op).
func WithStandardLogger(l *zap.Logger) StandardOption {
	return func(m *StandardSessionManager) { m.log = l }
}

// NewStandard builds a list-backed manager. Bind a connection with
// SetClient before use.
func NewStandard(name string, scope Scope, opts ...StandardOption) (*StandardSessionManager, error) {
	if name == "" {
		return nil, vectra.ErrMissingName
	}
	m := &StandardSessionManager{
		name:  name,
		scope: scope,
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// SetClient binds an existing connection. The caller keeps ownership.
func (m *StandardSessionManager) SetClient(client rueidis.Client) {
	m.store = engine.FromRueidis(client)
}

// Scope returns the manager's scope.
func (m *StandardSessionManager) Scope() Scope { return m.scope }

// WithScope returns a copy of the manager bound to a different scope,
// sharing the connection.
func (m *StandardSessionManager) WithScope(scope Scope) *StandardSessionManager {
	clone := *m
	clone.scope = scope
	return &clone
}

// key is the transcript list key for the scope.
func (m *StandardSessionManager) key() string {
	parts := make([]string, 0, 5)
	parts = append(parts, m.name)
	for _, p := range []string{m.scope.AppID, m.scope.UserID, m.scope.SessionID} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	parts = append(parts, "messages")
	return strings.Join(parts, ":")
}

func (m *StandardSessionManager) connected() (listStore, error) {
	if m.store == nil {
		return nil, vectra.ErrNotConnected
	}
	return m.store, nil
}

// Add appends one message to the transcript. A zero timestamp is stamped
// with the current time.
func (m *StandardSessionManager) Add(ctx context.Context, msg Message) error {
	store, err := m.connected()
	if err != nil {
		return err
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = float64(time.Now().UnixMilli()) / 1000
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := store.RPush(ctx, m.key(), string(data)); err != nil {
		return err
	}
	if m.ttl > 0 {
		if err := store.Expire(ctx, m.key(), m.ttl); err != nil {
			return err
		}
	}
	return nil
}

// AddExchange appends a prompt/response turn as two messages.
func (m *StandardSessionManager) AddExchange(ctx context.Context, prompt, response string) error {
	ts := float64(time.Now().UnixMilli()) / 1000
	if err := m.Add(ctx, Message{Role: RoleUser, Content: prompt, Timestamp: ts}); err != nil {
		return err
	}
	return m.Add(ctx, Message{Role: RoleLLM, Content: response, Timestamp: ts})
}

// GetRecent returns the last n messages, oldest first. Non-positive n
// returns the whole transcript.
func (m *StandardSessionManager) GetRecent(ctx context.Context, n int) ([]Message, error) {
	store, err := m.connected()
	if err != nil {
		return nil, err
	}

	start := int64(0)
	if n > 0 {
		start = int64(-n)
	}
	raw, err := store.LRange(ctx, m.key(), start, -1)
	if err != nil {
		return nil, err
	}

	msgs := make([]Message, 0, len(raw))
	for _, item := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("parse transcript entry: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Drop removes the most recent message. No-op on an empty transcript.
func (m *StandardSessionManager) Drop(ctx context.Context) error {
	store, err := m.connected()
	if err != nil {
		return err
	}
	return store.RPop(ctx, m.key())
}

// DropBefore removes every message older than cutoff by rewriting the list.
// Not atomic: messages appended between the read and the rewrite are lost.
func (m *StandardSessionManager) DropBefore(ctx context.Context, cutoff time.Time) error {
	store, err := m.connected()
	if err != nil {
		return err
	}

	msgs, err := m.GetRecent(ctx, 0)
	if err != nil {
		return err
	}

	limit := float64(cutoff.UnixMilli()) / 1000
	kept := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Timestamp < limit {
			continue
		}
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("marshal message: %w", err)
		}
		kept = append(kept, string(data))
	}

	if err := store.Del(ctx, m.key()); err != nil {
		return err
	}
	if len(kept) == 0 {
		return nil
	}
	if err := store.RPush(ctx, m.key(), kept...); err != nil {
		return err
	}

	m.log.Debug("transcript trimmed",
		zap.Int("kept", len(kept)),
		zap.Int("dropped", len(msgs)-len(kept)))
	return nil
}

// Clear deletes the whole transcript.
func (m *StandardSessionManager) Clear(ctx context.Context) error {
	store, err := m.connected()
	if err != nil {
		return err
	}
	return store.Del(ctx, m.key())
}
