package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"
)

func TestCreateIndex_Args(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match(
			"FT.CREATE", "idx", "ON", "HASH",
			"PREFIX", "1", "idx:",
			"SCHEMA", "title", "TEXT",
		)).
		Return(mock.Result(mock.RedisString("OK")))

	cl := NewClientForTest(c)
	err := cl.CreateIndex(context.Background(), "idx", "HASH",
		[]string{"idx:"}, []string{"title", "TEXT"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateIndex_NoPrefix(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match(
			"FT.CREATE", "idx", "ON", "JSON",
			"SCHEMA", "title", "TEXT",
		)).
		Return(mock.Result(mock.RedisString("OK")))

	cl := NewClientForTest(c)
	err := cl.CreateIndex(context.Background(), "idx", "JSON", nil, []string{"title", "TEXT"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateIndex_AlreadyExists(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.CREATE"
		})).
		Return(mock.Result(mock.RedisError("Index already exists")))

	cl := NewClientForTest(c)
	err := cl.CreateIndex(context.Background(), "idx", "HASH", nil, []string{"f", "TEXT"})
	if !errors.Is(err, ErrIndexExists) {
		t.Fatalf("err = %v, want ErrIndexExists", err)
	}
}

func TestCreateIndex_Validation(t *testing.T) {
	cl := NewClientForTest(nil)
	if err := cl.CreateIndex(context.Background(), "", "HASH", nil, []string{"f", "TEXT"}); err == nil {
		t.Fatal("expected error for empty name")
	}
	if err := cl.CreateIndex(context.Background(), "idx", "HASH", nil, nil); err == nil {
		t.Fatal("expected error for empty schema")
	}
}

func TestDropIndex_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.DROPINDEX", "idx")).
		Return(mock.Result(mock.RedisError("Unknown Index name")))

	cl := NewClientForTest(c)
	err := cl.DropIndex(context.Background(), "idx")
	if !errors.Is(err, ErrIndexNotFound) {
		t.Fatalf("err = %v, want ErrIndexNotFound", err)
	}
}

func TestIndexExists(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.INFO", "present")).
		Return(mock.Result(mock.RedisString("...")))
	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.INFO", "absent")).
		Return(mock.Result(mock.RedisError("Unknown Index name")))

	cl := NewClientForTest(c)

	ok, err := cl.IndexExists(context.Background(), "present")
	if err != nil || !ok {
		t.Fatalf("got (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = cl.IndexExists(context.Background(), "absent")
	if err != nil || ok {
		t.Fatalf("got (%v, %v), want (false, nil)", ok, err)
	}
}

func TestListIndexes(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT._LIST")).
		Return(mock.Result(mock.RedisArray(
			mock.RedisString("idx1"),
			mock.RedisString("idx2"),
		)))

	cl := NewClientForTest(c)
	names, err := cl.ListIndexes(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(names) != 2 || names[0] != "idx1" {
		t.Errorf("names = %v", names)
	}
}
