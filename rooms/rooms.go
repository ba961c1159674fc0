package rooms

import (
	"context"
	"errors"
)

var (
	// ErrSparkRequired indicates an operation was called with an empty spark id.
	ErrSparkRequired = errors.New("spark id required")
	// ErrRoomRequired indicates an operation was called with an empty room name.
	ErrRoomRequired = errors.New("room name required")
	// ErrNoForwarder is returned by Broadcast when the adapter was constructed
	// without a delivery primitive.
	ErrNoForwarder = errors.New("no forwarder configured")
)

// Forwarder is the transport-supplied delivery primitive. The adapter resolves
// rooms to spark ids and hands bounded batches of ids to the forwarder; the
// transport is responsible for routing each id to the server that physically
// holds its connection.
type Forwarder interface {
	ForwardToSparks(ctx context.Context, sparkIDs []string, payload []byte) error
}

// ForwarderFunc adapts a plain function to the Forwarder interface.
type ForwarderFunc func(ctx context.Context, sparkIDs []string, payload []byte) error

func (f ForwarderFunc) ForwardToSparks(ctx context.Context, sparkIDs []string, payload []byte) error {
	return f(ctx, sparkIDs, payload)
}

// Transformer maps the frames handed to Broadcast onto the single payload that
// is delivered to every resolved spark. It is applied exactly once per
// broadcast, before any fan-out.
type Transformer func(frames [][]byte) []byte

// FirstFrame is the default Transformer: it delivers the first frame unchanged
// and nil when no frames were given.
func FirstFrame(frames [][]byte) []byte {
	if len(frames) == 0 {
		return nil
	}
	return frames[0]
}

// BroadcastOptions narrows a broadcast. The zero value means "every spark in
// the namespace with the default transform".
type BroadcastOptions struct {
	// Rooms limits delivery to the members of the named rooms. Empty means the
	// whole namespace. A spark present in several requested rooms is delivered
	// to once per occurrence; the resolver does not deduplicate across rooms.
	Rooms []string
	// Except lists spark ids to exclude from delivery.
	Except []string
	// Transform produces the delivered payload from the broadcast frames.
	// Defaults to FirstFrame.
	Transform Transformer
}

// Adapter is the room-membership capability surface. All methods are safe for
// concurrent use; cross-node queries return best-effort snapshots, not
// point-in-time views.
type Adapter interface {
	// Add registers sparkID as a member of room on this server instance.
	Add(ctx context.Context, sparkID, room string) error

	// Del removes the single (sparkID, room) membership.
	Del(ctx context.Context, sparkID, room string) error

	// DelAll removes sparkID from every room it belongs to and discards its
	// membership record entirely.
	DelAll(ctx context.Context, sparkID string) error

	// Rooms returns the rooms sparkID currently belongs to.
	Rooms(ctx context.Context, sparkID string) ([]string, error)

	// AllRooms returns the distinct room names known across every server
	// instance. Room existence is derived from membership keys; a room with no
	// members does not exist.
	AllRooms(ctx context.Context) ([]string, error)

	// Clients returns the spark ids in room across every server instance.
	Clients(ctx context.Context, room string) ([]string, error)

	// Empty removes room from every instance and from every member spark's
	// room list.
	Empty(ctx context.Context, room string) error

	// IsEmpty reports whether room has no members on any instance.
	IsEmpty(ctx context.Context, room string) (bool, error)

	// Clear deletes every membership record in the namespace, including other
	// live instances' data. Maintenance-only; not safe while serving traffic.
	Clear(ctx context.Context) error

	// Broadcast resolves opts.Rooms (or the whole namespace) to spark ids,
	// applies opts.Except and opts.Transform, and delivers the payload via the
	// configured Forwarder in bounded batches. Delivery is at most once.
	Broadcast(ctx context.Context, frames [][]byte, opts BroadcastOptions) error
}
