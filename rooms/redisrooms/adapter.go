package redisrooms

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/interactdo/primus-rooms-metroplex-adapter/rooms"
)

// Add registers the spark in the room on this instance and mirrors the room
// into the spark's own set, re-arming both TTLs, as one pipeline. The pipeline
// runs back to back but is not transactional: on partial failure the applied
// commands stay applied and the failures surface as one aggregated error.
func (a *Adapter) Add(ctx context.Context, sparkID, room string) error {
	if sparkID == "" {
		return rooms.ErrSparkRequired
	}
	if room == "" {
		return rooms.ErrRoomRequired
	}
	cmds, err := a.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.SAdd(ctx, a.roomKey(room), sparkID)
		p.Expire(ctx, a.roomKey(room), a.roomTTL)
		p.SAdd(ctx, a.sparkKey(sparkID), room)
		p.Expire(ctx, a.sparkKey(sparkID), a.sparkTTL)
		return nil
	})
	return batchError(cmds, err)
}

// Del removes the single (spark, room) membership from both indices.
func (a *Adapter) Del(ctx context.Context, sparkID, room string) error {
	if sparkID == "" {
		return rooms.ErrSparkRequired
	}
	if room == "" {
		return rooms.ErrRoomRequired
	}
	cmds, err := a.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.SRem(ctx, a.roomKey(room), sparkID)
		p.SRem(ctx, a.sparkKey(sparkID), room)
		return nil
	})
	return batchError(cmds, err)
}

// DelAll reads the spark's room list, then removes it from each of those
// rooms' sets on this instance and deletes the spark's own set, in one
// best-effort pipeline.
func (a *Adapter) DelAll(ctx context.Context, sparkID string) error {
	if sparkID == "" {
		return rooms.ErrSparkRequired
	}
	memberOf, err := a.client.SMembers(ctx, a.sparkKey(sparkID)).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("smembers %q: %w", a.sparkKey(sparkID), err)
	}
	cmds, err := a.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, room := range memberOf {
			p.SRem(ctx, a.roomKey(room), sparkID)
		}
		p.Del(ctx, a.sparkKey(sparkID))
		return nil
	})
	return batchError(cmds, err)
}

// Rooms returns the rooms the spark belongs to. A missing key means the spark
// is in no rooms, not an error.
func (a *Adapter) Rooms(ctx context.Context, sparkID string) ([]string, error) {
	if sparkID == "" {
		return nil, rooms.ErrSparkRequired
	}
	memberOf, err := a.client.SMembers(ctx, a.sparkKey(sparkID)).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("smembers %q: %w", a.sparkKey(sparkID), err)
	}
	return memberOf, nil
}

// AllRooms scans every instance's membership keys and derives the distinct
// room names from the key suffixes. Rooms are never stored standalone; this
// derived set is the only room listing there is.
func (a *Adapter) AllRooms(ctx context.Context) ([]string, error) {
	keys, err := a.scanKeys(ctx, a.allRoomsPattern())
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(keys))
	var names []string
	for _, key := range keys {
		room := roomFromKey(key)
		if _, dup := seen[room]; dup {
			continue
		}
		seen[room] = struct{}{}
		names = append(names, room)
	}
	return names, nil
}

// Clients returns the room's members across every server instance. No
// cross-instance dedup is applied: a spark's connection lives on exactly one
// instance.
func (a *Adapter) Clients(ctx context.Context, room string) ([]string, error) {
	if room == "" {
		return nil, rooms.ErrRoomRequired
	}
	keys, err := a.scanKeys(ctx, a.roomPattern(room))
	if err != nil {
		return nil, err
	}
	return a.scanSetMembers(ctx, keys)
}

// Empty removes the room everywhere: it deletes the room's key on every
// instance and strips the room from each affected spark's room list.
func (a *Adapter) Empty(ctx context.Context, room string) error {
	if room == "" {
		return rooms.ErrRoomRequired
	}
	keys, err := a.scanKeys(ctx, a.roomPattern(room))
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	members, err := a.scanSetMembers(ctx, keys)
	if err != nil {
		return err
	}
	cmds, err := a.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, keys...)
		for _, sparkID := range members {
			p.SRem(ctx, a.sparkKey(sparkID), room)
		}
		return nil
	})
	return batchError(cmds, err)
}

// IsEmpty reports whether no instance holds a membership key for the room.
// Redis discards a set key with its last member, so key presence is
// membership presence.
func (a *Adapter) IsEmpty(ctx context.Context, room string) (bool, error) {
	if room == "" {
		return false, rooms.ErrRoomRequired
	}
	keys, err := a.scanKeys(ctx, a.roomPattern(room))
	if err != nil {
		return false, err
	}
	return len(keys) == 0, nil
}

// Clear deletes every key under the namespace, including other instances'
// still-live data. Irreversible; maintenance only.
func (a *Adapter) Clear(ctx context.Context) error {
	keys, err := a.scanKeys(ctx, a.namespace+":*")
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := a.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("del namespace keys: %w", err)
	}
	return nil
}
