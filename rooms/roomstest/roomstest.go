// Package roomstest provides a reusable conformance suite for rooms.Adapter
// implementations. Both the in-memory and Redis-backed adapters run it.
package roomstest

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/interactdo/primus-rooms-metroplex-adapter/rooms"
)

// Harness bundles an adapter under test with the capture forwarder that was
// wired into it at construction.
type Harness struct {
	Adapter   rooms.Adapter
	Forwarder *CaptureForwarder
}

// Factory creates a fresh, empty harness for one subtest.
type Factory func(t *testing.T) *Harness

// CaptureForwarder records every delivery the adapter hands to the transport.
type CaptureForwarder struct {
	mu    sync.Mutex
	calls []ForwardCall
}

// ForwardCall is one invocation of the forwarding primitive.
type ForwardCall struct {
	SparkIDs []string
	Payload  []byte
}

func (f *CaptureForwarder) ForwardToSparks(ctx context.Context, sparkIDs []string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ForwardCall{
		SparkIDs: append([]string(nil), sparkIDs...),
		Payload:  append([]byte(nil), payload...),
	})
	return nil
}

// Calls returns a snapshot of the recorded deliveries.
func (f *CaptureForwarder) Calls() []ForwardCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ForwardCall(nil), f.calls...)
}

// RunAdapterTests runs the complete adapter conformance suite against the
// provided factory.
func RunAdapterTests(t *testing.T, factory Factory) {
	t.Run("Membership_AddThenLookupBothIndices", func(t *testing.T) { testAddThenLookup(t, factory) })
	t.Run("Membership_DelRemovesBothIndices", func(t *testing.T) { testDelRemovesBothIndices(t, factory) })
	t.Run("Membership_DelAllRemovesEveryRoom", func(t *testing.T) { testDelAllRemovesEveryRoom(t, factory) })
	t.Run("Membership_AddAddDelSequence", func(t *testing.T) { testAddAddDelSequence(t, factory) })
	t.Run("Membership_EmptyValidation", func(t *testing.T) { testEmptyValidation(t, factory) })
	t.Run("Rooms_AllRoomsIsDerivedAndDistinct", func(t *testing.T) { testAllRoomsDerived(t, factory) })
	t.Run("Rooms_IsEmptyTracksClients", func(t *testing.T) { testIsEmptyTracksClients(t, factory) })
	t.Run("Rooms_EmptyRemovesRoomEverywhere", func(t *testing.T) { testEmptyRemovesRoomEverywhere(t, factory) })
	t.Run("Rooms_ClearRemovesEverything", func(t *testing.T) { testClearRemovesEverything(t, factory) })
	t.Run("Broadcast_RoomsUnionMinusExcept", func(t *testing.T) { testBroadcastRoomsUnionMinusExcept(t, factory) })
	t.Run("Broadcast_DefaultTransformTakesFirstFrame", func(t *testing.T) { testBroadcastDefaultTransform(t, factory) })
	t.Run("Broadcast_CustomTransform", func(t *testing.T) { testBroadcastCustomTransform(t, factory) })
	t.Run("Broadcast_NoRoomsReachesWholeNamespace", func(t *testing.T) { testBroadcastWholeNamespace(t, factory) })
}

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func sorted(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func mustAdd(t *testing.T, ctx context.Context, a rooms.Adapter, sparkID, room string) {
	t.Helper()
	if err := a.Add(ctx, sparkID, room); err != nil {
		t.Fatalf("add %s to %s: %v", sparkID, room, err)
	}
}

// --- Membership tests ---

func testAddThenLookup(t *testing.T, factory Factory) {
	h := factory(t)
	ctx := testCtx(t)

	mustAdd(t, ctx, h.Adapter, "s1", "r1")

	memberOf, err := h.Adapter.Rooms(ctx, "s1")
	if err != nil {
		t.Fatalf("rooms: %v", err)
	}
	if !equal(sorted(memberOf), []string{"r1"}) {
		t.Fatalf("expected s1 in [r1], got %v", memberOf)
	}

	members, err := h.Adapter.Clients(ctx, "r1")
	if err != nil {
		t.Fatalf("clients: %v", err)
	}
	if !equal(sorted(members), []string{"s1"}) {
		t.Fatalf("expected r1 members [s1], got %v", members)
	}
}

func testDelRemovesBothIndices(t *testing.T, factory Factory) {
	h := factory(t)
	ctx := testCtx(t)

	mustAdd(t, ctx, h.Adapter, "s1", "r1")
	mustAdd(t, ctx, h.Adapter, "s2", "r1")

	if err := h.Adapter.Del(ctx, "s1", "r1"); err != nil {
		t.Fatalf("del: %v", err)
	}

	memberOf, err := h.Adapter.Rooms(ctx, "s1")
	if err != nil {
		t.Fatalf("rooms: %v", err)
	}
	if len(memberOf) != 0 {
		t.Fatalf("expected s1 in no rooms, got %v", memberOf)
	}

	members, err := h.Adapter.Clients(ctx, "r1")
	if err != nil {
		t.Fatalf("clients: %v", err)
	}
	if !equal(sorted(members), []string{"s2"}) {
		t.Fatalf("expected r1 members [s2], got %v", members)
	}
}

func testDelAllRemovesEveryRoom(t *testing.T, factory Factory) {
	h := factory(t)
	ctx := testCtx(t)

	mustAdd(t, ctx, h.Adapter, "s1", "r1")
	mustAdd(t, ctx, h.Adapter, "s1", "r2")
	mustAdd(t, ctx, h.Adapter, "s2", "r1")

	if err := h.Adapter.DelAll(ctx, "s1"); err != nil {
		t.Fatalf("delall: %v", err)
	}

	memberOf, err := h.Adapter.Rooms(ctx, "s1")
	if err != nil {
		t.Fatalf("rooms: %v", err)
	}
	if len(memberOf) != 0 {
		t.Fatalf("expected s1 in no rooms, got %v", memberOf)
	}

	for room, want := range map[string][]string{"r1": {"s2"}, "r2": nil} {
		members, err := h.Adapter.Clients(ctx, room)
		if err != nil {
			t.Fatalf("clients %s: %v", room, err)
		}
		if !equal(sorted(members), want) {
			t.Fatalf("expected %s members %v, got %v", room, want, members)
		}
	}
}

func testAddAddDelSequence(t *testing.T, factory Factory) {
	h := factory(t)
	ctx := testCtx(t)

	mustAdd(t, ctx, h.Adapter, "s1", "r1")
	mustAdd(t, ctx, h.Adapter, "s1", "r2")
	if err := h.Adapter.Del(ctx, "s1", "r1"); err != nil {
		t.Fatalf("del: %v", err)
	}

	memberOf, err := h.Adapter.Rooms(ctx, "s1")
	if err != nil {
		t.Fatalf("rooms: %v", err)
	}
	if !equal(sorted(memberOf), []string{"r2"}) {
		t.Fatalf("expected [r2], got %v", memberOf)
	}
}

func testEmptyValidation(t *testing.T, factory Factory) {
	h := factory(t)
	ctx := testCtx(t)

	if err := h.Adapter.Add(ctx, "", "r1"); err != rooms.ErrSparkRequired {
		t.Fatalf("expected ErrSparkRequired, got %v", err)
	}
	if err := h.Adapter.Add(ctx, "s1", ""); err != rooms.ErrRoomRequired {
		t.Fatalf("expected ErrRoomRequired, got %v", err)
	}
	if _, err := h.Adapter.Rooms(ctx, ""); err != rooms.ErrSparkRequired {
		t.Fatalf("expected ErrSparkRequired, got %v", err)
	}
	if _, err := h.Adapter.Clients(ctx, ""); err != rooms.ErrRoomRequired {
		t.Fatalf("expected ErrRoomRequired, got %v", err)
	}
}

// --- Room query tests ---

func testAllRoomsDerived(t *testing.T, factory Factory) {
	h := factory(t)
	ctx := testCtx(t)

	mustAdd(t, ctx, h.Adapter, "s1", "r1")
	mustAdd(t, ctx, h.Adapter, "s2", "r1")
	mustAdd(t, ctx, h.Adapter, "s2", "r2")

	names, err := h.Adapter.AllRooms(ctx)
	if err != nil {
		t.Fatalf("allrooms: %v", err)
	}
	if !equal(sorted(names), []string{"r1", "r2"}) {
		t.Fatalf("expected [r1 r2], got %v", names)
	}

	// Removing the last member removes the room itself.
	if err := h.Adapter.Del(ctx, "s2", "r2"); err != nil {
		t.Fatalf("del: %v", err)
	}
	names, err = h.Adapter.AllRooms(ctx)
	if err != nil {
		t.Fatalf("allrooms: %v", err)
	}
	if !equal(sorted(names), []string{"r1"}) {
		t.Fatalf("expected [r1], got %v", names)
	}
}

func testIsEmptyTracksClients(t *testing.T, factory Factory) {
	h := factory(t)
	ctx := testCtx(t)

	empty, err := h.Adapter.IsEmpty(ctx, "r1")
	if err != nil {
		t.Fatalf("isempty: %v", err)
	}
	if !empty {
		t.Fatal("expected unknown room to be empty")
	}

	mustAdd(t, ctx, h.Adapter, "s1", "r1")
	empty, err = h.Adapter.IsEmpty(ctx, "r1")
	if err != nil {
		t.Fatalf("isempty: %v", err)
	}
	if empty {
		t.Fatal("expected r1 to be non-empty")
	}

	if err := h.Adapter.Del(ctx, "s1", "r1"); err != nil {
		t.Fatalf("del: %v", err)
	}
	empty, err = h.Adapter.IsEmpty(ctx, "r1")
	if err != nil {
		t.Fatalf("isempty: %v", err)
	}
	if !empty {
		t.Fatal("expected r1 to be empty after del")
	}
}

func testEmptyRemovesRoomEverywhere(t *testing.T, factory Factory) {
	h := factory(t)
	ctx := testCtx(t)

	mustAdd(t, ctx, h.Adapter, "s1", "r1")
	mustAdd(t, ctx, h.Adapter, "s2", "r1")
	mustAdd(t, ctx, h.Adapter, "s1", "r2")

	if err := h.Adapter.Empty(ctx, "r1"); err != nil {
		t.Fatalf("empty: %v", err)
	}

	members, err := h.Adapter.Clients(ctx, "r1")
	if err != nil {
		t.Fatalf("clients: %v", err)
	}
	if len(members) != 0 {
		t.Fatalf("expected no members, got %v", members)
	}

	// No spark's room list still mentions r1; unrelated memberships survive.
	memberOf, err := h.Adapter.Rooms(ctx, "s1")
	if err != nil {
		t.Fatalf("rooms: %v", err)
	}
	if !equal(sorted(memberOf), []string{"r2"}) {
		t.Fatalf("expected s1 in [r2], got %v", memberOf)
	}
	memberOf, err = h.Adapter.Rooms(ctx, "s2")
	if err != nil {
		t.Fatalf("rooms: %v", err)
	}
	if len(memberOf) != 0 {
		t.Fatalf("expected s2 in no rooms, got %v", memberOf)
	}
}

func testClearRemovesEverything(t *testing.T, factory Factory) {
	h := factory(t)
	ctx := testCtx(t)

	mustAdd(t, ctx, h.Adapter, "s1", "r1")
	mustAdd(t, ctx, h.Adapter, "s2", "r2")

	if err := h.Adapter.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}

	names, err := h.Adapter.AllRooms(ctx)
	if err != nil {
		t.Fatalf("allrooms: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("expected no rooms, got %v", names)
	}
	memberOf, err := h.Adapter.Rooms(ctx, "s1")
	if err != nil {
		t.Fatalf("rooms: %v", err)
	}
	if len(memberOf) != 0 {
		t.Fatalf("expected s1 in no rooms, got %v", memberOf)
	}
}

// --- Broadcast tests ---

func testBroadcastRoomsUnionMinusExcept(t *testing.T, factory Factory) {
	h := factory(t)
	ctx := testCtx(t)

	mustAdd(t, ctx, h.Adapter, "a", "r1")
	mustAdd(t, ctx, h.Adapter, "b", "r1")
	mustAdd(t, ctx, h.Adapter, "c", "r2")
	mustAdd(t, ctx, h.Adapter, "d", "r3")

	err := h.Adapter.Broadcast(ctx, [][]byte{[]byte("x")}, rooms.BroadcastOptions{
		Rooms:  []string{"r1", "r2"},
		Except: []string{"b"},
	})
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	var delivered []string
	for _, call := range h.Forwarder.Calls() {
		delivered = append(delivered, call.SparkIDs...)
	}
	if !equal(sorted(delivered), []string{"a", "c"}) {
		t.Fatalf("expected delivery to [a c], got %v", delivered)
	}
}

func testBroadcastDefaultTransform(t *testing.T, factory Factory) {
	h := factory(t)
	ctx := testCtx(t)

	mustAdd(t, ctx, h.Adapter, "s1", "r1")

	frames := [][]byte{[]byte("first"), []byte("second")}
	if err := h.Adapter.Broadcast(ctx, frames, rooms.BroadcastOptions{Rooms: []string{"r1"}}); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	calls := h.Forwarder.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 forward call, got %d", len(calls))
	}
	if string(calls[0].Payload) != "first" {
		t.Fatalf("expected payload %q, got %q", "first", calls[0].Payload)
	}
}

func testBroadcastCustomTransform(t *testing.T, factory Factory) {
	h := factory(t)
	ctx := testCtx(t)

	mustAdd(t, ctx, h.Adapter, "s1", "r1")

	err := h.Adapter.Broadcast(ctx, [][]byte{[]byte("raw")}, rooms.BroadcastOptions{
		Rooms:     []string{"r1"},
		Transform: func(frames [][]byte) []byte { return []byte("transformed") },
	})
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	calls := h.Forwarder.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 forward call, got %d", len(calls))
	}
	if string(calls[0].Payload) != "transformed" {
		t.Fatalf("expected payload %q, got %q", "transformed", calls[0].Payload)
	}
}

func testBroadcastWholeNamespace(t *testing.T, factory Factory) {
	h := factory(t)
	ctx := testCtx(t)

	mustAdd(t, ctx, h.Adapter, "s1", "r1")
	mustAdd(t, ctx, h.Adapter, "s2", "r2")
	mustAdd(t, ctx, h.Adapter, "s3", "r3")

	if err := h.Adapter.Broadcast(ctx, [][]byte{[]byte("x")}, rooms.BroadcastOptions{}); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	calls := h.Forwarder.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 forward call, got %d", len(calls))
	}
	if !equal(sorted(calls[0].SparkIDs), []string{"s1", "s2", "s3"}) {
		t.Fatalf("expected all sparks, got %v", calls[0].SparkIDs)
	}
	if string(calls[0].Payload) != "x" {
		t.Fatalf("expected payload %q, got %q", "x", calls[0].Payload)
	}
}
