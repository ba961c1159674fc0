package memoryrooms

import (
	"context"
	"fmt"
	"sync"

	"github.com/interactdo/primus-rooms-metroplex-adapter/rooms"
)

const defaultBroadcastBatch = 50000

// Config contains configuration options for the in-memory adapter.
type Config struct {
	// Forwarder delivers broadcast payloads. Optional; Broadcast fails with
	// rooms.ErrNoForwarder when unset.
	Forwarder rooms.Forwarder
	// BroadcastBatch bounds how many spark ids are handed to the Forwarder per
	// call. Default: 50000.
	BroadcastBatch int
}

// Adapter is an in-memory implementation of rooms.Adapter.
type Adapter struct {
	mu      sync.RWMutex
	byRoom  map[string]map[string]struct{}
	bySpark map[string]map[string]struct{}

	forwarder rooms.Forwarder
	batchSize int
}

func New(cfg Config) *Adapter {
	batch := cfg.BroadcastBatch
	if batch <= 0 {
		batch = defaultBroadcastBatch
	}
	return &Adapter{
		byRoom:    make(map[string]map[string]struct{}),
		bySpark:   make(map[string]map[string]struct{}),
		forwarder: cfg.Forwarder,
		batchSize: batch,
	}
}

func (a *Adapter) Add(ctx context.Context, sparkID, room string) error {
	if sparkID == "" {
		return rooms.ErrSparkRequired
	}
	if room == "" {
		return rooms.ErrRoomRequired
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.byRoom[room] == nil {
		a.byRoom[room] = make(map[string]struct{})
	}
	a.byRoom[room][sparkID] = struct{}{}
	if a.bySpark[sparkID] == nil {
		a.bySpark[sparkID] = make(map[string]struct{})
	}
	a.bySpark[sparkID][room] = struct{}{}
	return nil
}

func (a *Adapter) Del(ctx context.Context, sparkID, room string) error {
	if sparkID == "" {
		return rooms.ErrSparkRequired
	}
	if room == "" {
		return rooms.ErrRoomRequired
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.removeLocked(sparkID, room)
	return nil
}

func (a *Adapter) DelAll(ctx context.Context, sparkID string) error {
	if sparkID == "" {
		return rooms.ErrSparkRequired
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for room := range a.bySpark[sparkID] {
		a.removeLocked(sparkID, room)
	}
	delete(a.bySpark, sparkID)
	return nil
}

// removeLocked drops one membership from both indices and discards either set
// when it loses its last member, mirroring how Redis drops empty sets.
func (a *Adapter) removeLocked(sparkID, room string) {
	if members := a.byRoom[room]; members != nil {
		delete(members, sparkID)
		if len(members) == 0 {
			delete(a.byRoom, room)
		}
	}
	if memberOf := a.bySpark[sparkID]; memberOf != nil {
		delete(memberOf, room)
		if len(memberOf) == 0 {
			delete(a.bySpark, sparkID)
		}
	}
}

func (a *Adapter) Rooms(ctx context.Context, sparkID string) ([]string, error) {
	if sparkID == "" {
		return nil, rooms.ErrSparkRequired
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return setToSlice(a.bySpark[sparkID]), nil
}

func (a *Adapter) AllRooms(ctx context.Context) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.byRoom))
	for room := range a.byRoom {
		names = append(names, room)
	}
	return names, nil
}

func (a *Adapter) Clients(ctx context.Context, room string) ([]string, error) {
	if room == "" {
		return nil, rooms.ErrRoomRequired
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return setToSlice(a.byRoom[room]), nil
}

func (a *Adapter) Empty(ctx context.Context, room string) error {
	if room == "" {
		return rooms.ErrRoomRequired
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for sparkID := range a.byRoom[room] {
		a.removeLocked(sparkID, room)
	}
	delete(a.byRoom, room)
	return nil
}

func (a *Adapter) IsEmpty(ctx context.Context, room string) (bool, error) {
	if room == "" {
		return false, rooms.ErrRoomRequired
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.byRoom[room]) == 0, nil
}

func (a *Adapter) Clear(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.byRoom = make(map[string]map[string]struct{})
	a.bySpark = make(map[string]map[string]struct{})
	return nil
}

func (a *Adapter) Broadcast(ctx context.Context, frames [][]byte, opts rooms.BroadcastOptions) error {
	if a.forwarder == nil {
		return rooms.ErrNoForwarder
	}
	transform := opts.Transform
	if transform == nil {
		transform = rooms.FirstFrame
	}
	payload := transform(frames)

	a.mu.RLock()
	var sparkIDs []string
	if len(opts.Rooms) > 0 {
		for _, room := range opts.Rooms {
			sparkIDs = append(sparkIDs, setToSlice(a.byRoom[room])...)
		}
	} else {
		for sparkID := range a.bySpark {
			sparkIDs = append(sparkIDs, sparkID)
		}
	}
	a.mu.RUnlock()

	if len(opts.Except) > 0 {
		skip := make(map[string]struct{}, len(opts.Except))
		for _, id := range opts.Except {
			skip[id] = struct{}{}
		}
		kept := sparkIDs[:0]
		for _, id := range sparkIDs {
			if _, drop := skip[id]; !drop {
				kept = append(kept, id)
			}
		}
		sparkIDs = kept
	}

	for start := 0; start < len(sparkIDs); start += a.batchSize {
		batch := sparkIDs[start:min(start+a.batchSize, len(sparkIDs))]
		if err := a.forwarder.ForwardToSparks(ctx, batch, payload); err != nil {
			return fmt.Errorf("forward to sparks: %w", err)
		}
	}
	return nil
}

func setToSlice(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	return out
}

// Compile-time interface check
var _ rooms.Adapter = (*Adapter)(nil)
