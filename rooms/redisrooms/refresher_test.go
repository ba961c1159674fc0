package redisrooms

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"

	"github.com/interactdo/primus-rooms-metroplex-adapter/rooms"
)

func TestHeartbeatRequiresSpark(t *testing.T) {
	a, err := New(Config{Client: testClient(), Address: "127.0.0.1:3000"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := a.Heartbeat(context.Background(), ""); err != rooms.ErrSparkRequired {
		t.Fatalf("expected ErrSparkRequired, got %v", err)
	}
}

func TestRefreshLoopReportsFailuresAndContinues(t *testing.T) {
	mock := clock.NewMock()
	var failures atomic.Int32
	a, err := New(Config{
		// Nothing listens on port 1; every sweep fails.
		Client:            redis.NewClient(&redis.Options{Addr: "localhost:1"}),
		Address:           "127.0.0.1:3000",
		Clock:             mock,
		OnBackgroundError: func(error) { failures.Add(1) },
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	a.Start()
	defer a.Stop()

	deadline := time.Now().Add(10 * time.Second)
	for failures.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("expected repeated failure reports, got %d", failures.Load())
		}
		mock.Add(a.refreshEvery)
		time.Sleep(10 * time.Millisecond)
	}
}
