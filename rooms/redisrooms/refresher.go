package redisrooms

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/interactdo/primus-rooms-metroplex-adapter/rooms"
)

// Start launches the periodic refresh loop that keeps this instance's room
// keys from expiring while the process is alive. The tick interval is the room
// TTL divided by the drift factor, so every key is re-armed strictly before it
// could lapse. Starting a started adapter is a no-op.
func (a *Adapter) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopCh != nil {
		return
	}
	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	go a.refreshLoop(a.stopCh, a.doneCh)
}

// Stop halts the refresh loop and waits for it to exit. Stopping a stopped
// adapter is a no-op.
func (a *Adapter) Stop() {
	a.mu.Lock()
	stopCh, doneCh := a.stopCh, a.doneCh
	a.stopCh, a.doneCh = nil, nil
	a.mu.Unlock()
	if stopCh == nil {
		return
	}
	close(stopCh)
	<-doneCh
}

func (a *Adapter) refreshLoop(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)
	ticker := a.clk.Ticker(a.refreshEvery)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			// A failed sweep is reported, not fatal; the next tick retries.
			if err := a.refreshOwnRooms(context.Background()); err != nil {
				a.observe(fmt.Errorf("refresh room keys: %w", err))
			}
		}
	}
}

// refreshOwnRooms re-arms the TTL of every room key owned by this instance.
func (a *Adapter) refreshOwnRooms(ctx context.Context) error {
	keys, err := a.scanKeys(ctx, a.ownRoomsPattern())
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	cmds, err := a.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, key := range keys {
			p.Expire(ctx, key, a.roomTTL)
		}
		return nil
	})
	return batchError(cmds, err)
}

// Heartbeat re-arms one spark's membership key. The transport calls this on
// every heartbeat it receives for the spark; no batching across sparks.
func (a *Adapter) Heartbeat(ctx context.Context, sparkID string) error {
	if sparkID == "" {
		return rooms.ErrSparkRequired
	}
	if err := a.client.Expire(ctx, a.sparkKey(sparkID), a.sparkTTL).Err(); err != nil {
		return fmt.Errorf("expire %q: %w", a.sparkKey(sparkID), err)
	}
	return nil
}
