package redisrooms

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/multierr"

	"github.com/interactdo/primus-rooms-metroplex-adapter/rooms"
)

// Broadcast resolves the target rooms (or the whole namespace) to spark ids,
// applies the exclusion list and the transform, and fans the payload out to
// the forwarder in bounded batches. There is no retry or replay; a spark
// listed in several requested rooms receives one delivery per occurrence.
func (a *Adapter) Broadcast(ctx context.Context, frames [][]byte, opts rooms.BroadcastOptions) error {
	if a.forwarder == nil {
		return rooms.ErrNoForwarder
	}
	transform := opts.Transform
	if transform == nil {
		transform = rooms.FirstFrame
	}
	payload := transform(frames)

	var (
		sparkIDs []string
		err      error
	)
	if len(opts.Rooms) > 0 {
		sparkIDs, err = a.resolveRooms(ctx, opts.Rooms)
	} else {
		sparkIDs, err = a.allSparks(ctx)
	}
	if err != nil {
		return err
	}
	sparkIDs = exclude(sparkIDs, opts.Except)

	for start := 0; start < len(sparkIDs); start += a.batchSize {
		batch := sparkIDs[start:min(start+a.batchSize, len(sparkIDs))]
		if err := a.forwarder.ForwardToSparks(ctx, batch, payload); err != nil {
			return fmt.Errorf("forward to sparks: %w", err)
		}
	}
	return nil
}

// resolveRooms looks up every room's members concurrently and concatenates the
// results in the rooms' given order.
func (a *Adapter) resolveRooms(ctx context.Context, roomNames []string) ([]string, error) {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		errs   error
		byRoom = make([][]string, len(roomNames))
	)
	for i, room := range roomNames {
		wg.Add(1)
		go func(i int, room string) {
			defer wg.Done()
			members, err := a.Clients(ctx, room)
			if err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("room %q: %w", room, err))
				mu.Unlock()
				return
			}
			byRoom[i] = members
		}(i, room)
	}
	wg.Wait()
	if errs != nil {
		return nil, fmt.Errorf("resolve rooms: %w", errs)
	}
	var sparkIDs []string
	for _, members := range byRoom {
		sparkIDs = append(sparkIDs, members...)
	}
	return sparkIDs, nil
}

// allSparks scans every spark key in the namespace and derives the ids from
// the key names. This is the unoptimized whole-namespace path; room-targeted
// broadcasts never take it.
func (a *Adapter) allSparks(ctx context.Context) ([]string, error) {
	keys, err := a.scanKeys(ctx, a.sparkPrefix()+"*")
	if err != nil {
		return nil, err
	}
	sparkIDs := make([]string, 0, len(keys))
	for _, key := range keys {
		sparkIDs = append(sparkIDs, strings.TrimPrefix(key, a.sparkPrefix()))
	}
	return sparkIDs, nil
}

func exclude(sparkIDs, except []string) []string {
	if len(except) == 0 || len(sparkIDs) == 0 {
		return sparkIDs
	}
	skip := make(map[string]struct{}, len(except))
	for _, id := range except {
		skip[id] = struct{}{}
	}
	kept := sparkIDs[:0]
	for _, id := range sparkIDs {
		if _, drop := skip[id]; !drop {
			kept = append(kept, id)
		}
	}
	return kept
}
