package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"
)

// HashItem holds one key+fields pair for a pipelined hash write.
type HashItem struct {
	Key    string
	Fields map[string]string
}

// JSONItem holds one key+document pair for a pipelined JSON write.
type JSONItem struct {
	Key  string
	Data []byte
}

// HSet writes the fields of one hash record.
func (c *Client) HSet(ctx context.Context, key string, fields map[string]string) error {
	cmd := c.b().Hset().Key(key).FieldValue()
	for k, v := range fields {
		cmd = cmd.FieldValue(k, v)
	}
	if err := c.do(ctx, cmd.Build()).Error(); err != nil {
		return engineErr("HSET", err)
	}
	return nil
}

// HSetMulti writes multiple hashes in a single pipelined round trip. On a
// per-key failure the error names the key; earlier writes stay committed.
func (c *Client) HSetMulti(ctx context.Context, items []HashItem) error {
	if len(items) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, len(items))
	for i, item := range items {
		cmd := c.b().Hset().Key(item.Key).FieldValue()
		for k, v := range item.Fields {
			cmd = cmd.FieldValue(k, v)
		}
		cmds[i] = cmd.Build()
	}

	results := c.client.DoMulti(ctx, cmds...)
	for i, res := range results {
		if err := res.Error(); err != nil {
			return engineErr("HSET", fmt.Errorf("key %s: %w", items[i].Key, err))
		}
	}
	return nil
}

// HGetAll returns all fields of a hash; ErrKeyNotFound when the key is absent.
func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	cmd := c.b().Hgetall().Key(key).Build()
	m, err := c.do(ctx, cmd).AsStrMap()
	if err != nil {
		return nil, engineErr("HGETALL", err)
	}
	if len(m) == 0 {
		return nil, ErrKeyNotFound
	}
	return m, nil
}

// JSONSet stores a JSON document at the root path.
func (c *Client) JSONSet(ctx context.Context, key string, data []byte) error {
	cmd := c.b().Arbitrary("JSON.SET").Keys(key).Args("$", string(data)).Build()
	if err := c.do(ctx, cmd).Error(); err != nil {
		return engineErr("JSON.SET", err)
	}
	return nil
}

// JSONSetMulti stores multiple JSON documents in one pipelined round trip.
func (c *Client) JSONSetMulti(ctx context.Context, items []JSONItem) error {
	if len(items) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, len(items))
	for i, item := range items {
		cmds[i] = c.b().Arbitrary("JSON.SET").Keys(item.Key).Args("$", string(item.Data)).Build()
	}

	results := c.client.DoMulti(ctx, cmds...)
	for i, res := range results {
		if err := res.Error(); err != nil {
			return engineErr("JSON.SET", fmt.Errorf("key %s: %w", items[i].Key, err))
		}
	}
	return nil
}

// JSONGet retrieves a JSON document; ErrKeyNotFound when absent.
func (c *Client) JSONGet(ctx context.Context, key string) ([]byte, error) {
	cmd := c.b().Arbitrary("JSON.GET").Keys(key).Args("$").Build()
	raw, err := c.do(ctx, cmd).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, ErrKeyNotFound
		}
		return nil, engineErr("JSON.GET", err)
	}
	if raw == "" {
		return nil, ErrKeyNotFound
	}
	return []byte(raw), nil
}

// Del deletes a key.
func (c *Client) Del(ctx context.Context, key string) error {
	cmd := c.b().Del().Key(key).Build()
	if err := c.do(ctx, cmd).Error(); err != nil {
		return engineErr("DEL", err)
	}
	return nil
}

// DelBatch deletes keys in one pipelined round trip and returns how many
// delete commands succeeded. Best effort: a failure partway does not undo
// earlier deletes.
func (c *Client) DelBatch(ctx context.Context, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	cmds := make([]rueidis.Completed, len(keys))
	for i, key := range keys {
		cmds[i] = c.b().Del().Key(key).Build()
	}

	deleted := 0
	results := c.client.DoMulti(ctx, cmds...)
	for i, res := range results {
		if err := res.Error(); err != nil {
			return deleted, engineErr("DEL", fmt.Errorf("key %s: %w", keys[i], err))
		}
		deleted++
	}
	return deleted, nil
}

// Scan iterates keys matching a pattern. Keys written concurrently may or
// may not appear depending on cursor timing.
func (c *Client) Scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64

	for {
		cmd := c.b().Scan().Cursor(cursor).Match(pattern).Count(100).Build()
		res, err := c.do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, engineErr("SCAN", err)
		}
		keys = append(keys, res.Elements...)
		cursor = res.Cursor
		if cursor == 0 {
			break
		}
	}

	return keys, nil
}

// Expire sets a TTL on a key.
func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) error {
	cmd := c.b().Expire().Key(key).Seconds(int64(ttl.Seconds())).Build()
	if err := c.do(ctx, cmd).Error(); err != nil {
		return engineErr("EXPIRE", err)
	}
	return nil
}

// Incr atomically increments a counter and returns the new value.
func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	cmd := c.b().Incr().Key(key).Build()
	n, err := c.do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, engineErr("INCR", err)
	}
	return n, nil
}

// Get retrieves a plain value; ErrKeyNotFound when absent.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := c.b().Get().Key(key).Build()
	data, err := c.do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, ErrKeyNotFound
		}
		return nil, engineErr("GET", err)
	}
	return data, nil
}

// RPush appends values to a list.
func (c *Client) RPush(ctx context.Context, key string, values ...string) error {
	cmd := c.b().Rpush().Key(key).Element(values...).Build()
	if err := c.do(ctx, cmd).Error(); err != nil {
		return engineErr("RPUSH", err)
	}
	return nil
}

// LRange returns list elements in [start, stop].
func (c *Client) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	cmd := c.b().Lrange().Key(key).Start(start).Stop(stop).Build()
	out, err := c.do(ctx, cmd).AsStrSlice()
	if err != nil {
		return nil, engineErr("LRANGE", err)
	}
	return out, nil
}

// RPop removes the last list element.
func (c *Client) RPop(ctx context.Context, key string) error {
	cmd := c.b().Rpop().Key(key).Build()
	if err := c.do(ctx, cmd).Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return nil
		}
		return engineErr("RPOP", err)
	}
	return nil
}
