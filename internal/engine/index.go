package engine

import (
	"context"
	"errors"
	"strconv"
)

// CreateIndex issues FT.CREATE with the given storage encoding, key prefixes
// and pre-rendered schema args.
func (c *Client) CreateIndex(ctx context.Context, name, storage string, prefixes, schemaArgs []string) error {
	if name == "" {
		return errors.New("index name is required")
	}
	if len(schemaArgs) == 0 {
		return errors.New("at least one field is required")
	}

	args := []string{name, "ON", storage}
	if len(prefixes) > 0 {
		args = append(args, "PREFIX", strconv.Itoa(len(prefixes)))
		args = append(args, prefixes...)
	}
	args = append(args, "SCHEMA")
	args = append(args, schemaArgs...)

	cmd := c.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := c.do(ctx, cmd).Error(); err != nil {
		if isEngineErr(err, "index already exists") {
			return ErrIndexExists
		}
		return engineErr("FT.CREATE", err)
	}
	return nil
}

// DropIndex removes an index definition. Stored records are untouched;
// deleting them is the caller's scan-and-delete concern.
func (c *Client) DropIndex(ctx context.Context, name string) error {
	cmd := c.b().Arbitrary("FT.DROPINDEX").Args(name).Build()
	if err := c.do(ctx, cmd).Error(); err != nil {
		if isEngineErr(err, "unknown index name") || isEngineErr(err, "no such index") {
			return ErrIndexNotFound
		}
		return engineErr("FT.DROPINDEX", err)
	}
	return nil
}

// IndexExists probes the index catalog via FT.INFO; "unknown index name"
// means absent.
func (c *Client) IndexExists(ctx context.Context, name string) (bool, error) {
	cmd := c.b().Arbitrary("FT.INFO").Args(name).Build()
	if err := c.do(ctx, cmd).Error(); err != nil {
		if isEngineErr(err, "unknown index name") || isEngineErr(err, "no such index") {
			return false, nil
		}
		return false, engineErr("FT.INFO", err)
	}
	return true, nil
}

// ListIndexes returns every index name in the catalog.
func (c *Client) ListIndexes(ctx context.Context) ([]string, error) {
	cmd := c.b().Arbitrary("FT._LIST").Build()
	names, err := c.do(ctx, cmd).AsStrSlice()
	if err != nil {
		return nil, engineErr("FT._LIST", err)
	}
	return names, nil
}
