package redisrooms

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/redis/go-redis/v9"
)

func TestBatchErrorAggregatesEveryFailure(t *testing.T) {
	ctx := context.Background()

	ok := redis.NewIntCmd(ctx, "sadd", "k", "v")
	bad1 := redis.NewBoolCmd(ctx, "expire", "k")
	bad1.SetErr(errors.New("boom one"))
	bad2 := redis.NewIntCmd(ctx, "srem", "k", "v")
	bad2.SetErr(errors.New("boom two"))

	err := batchError([]redis.Cmder{ok, bad1, bad2}, errors.New("boom one"))
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	for _, want := range []string{"expire", "boom one", "srem", "boom two"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("aggregated error %q missing %q", err, want)
		}
	}
}

func TestBatchErrorNilOnSuccess(t *testing.T) {
	ctx := context.Background()
	ok := redis.NewIntCmd(ctx, "sadd", "k", "v")
	if err := batchError([]redis.Cmder{ok}, nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestBatchErrorIgnoresNilReplies(t *testing.T) {
	ctx := context.Background()
	miss := redis.NewStringCmd(ctx, "get", "k")
	miss.SetErr(redis.Nil)
	if err := batchError([]redis.Cmder{miss}, redis.Nil); err != nil {
		t.Fatalf("expected redis.Nil to be ignored, got %v", err)
	}
}

func TestBatchErrorSurfacesExecFailure(t *testing.T) {
	// Exec can fail before any individual command carries an error.
	err := batchError(nil, errors.New("connection refused"))
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("expected exec error surfaced, got %v", err)
	}
}
