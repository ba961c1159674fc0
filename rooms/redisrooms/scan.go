package redisrooms

import (
	"context"
	"fmt"
)

// scanKeys enumerates every key matching pattern with bounded cursor SCANs,
// never one unbounded listing. The store may return a key in more than one
// batch; duplicates are dropped here. A failing round trip aborts the whole
// scan and discards the partial accumulation.
func (a *Adapter) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var (
		keys   []string
		seen   map[string]struct{}
		cursor uint64
	)
	for {
		batch, next, err := a.client.Scan(ctx, cursor, pattern, a.scanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("scan %q: %w", pattern, err)
		}
		for _, k := range batch {
			if seen == nil {
				seen = make(map[string]struct{})
			}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

// scanSetMembers reads the members of every given set key with bounded SSCANs
// and concatenates the results. Members are not deduplicated across keys: in
// steady state a spark is held by exactly one instance, so two room keys do
// not share members.
func (a *Adapter) scanSetMembers(ctx context.Context, keys []string) ([]string, error) {
	var members []string
	for _, key := range keys {
		var cursor uint64
		for {
			batch, next, err := a.client.SScan(ctx, key, cursor, "", a.scanCount).Result()
			if err != nil {
				return nil, fmt.Errorf("sscan %q: %w", key, err)
			}
			members = append(members, batch...)
			if next == 0 {
				break
			}
			cursor = next
		}
	}
	return members, nil
}
