// Package rooms defines the room-adapter contract shared by the Redis-backed
// and in-memory implementations. A room is a named group of sparks (live
// connection endpoints); the adapter tracks which sparks belong to which rooms
// across a fleet of stateless servers and resolves room names to spark ids so
// any server can broadcast to a room regardless of which server holds each
// connection.
//
// Layers & Roles
//
//	Transport  -> owns spark lifetimes, supplies the Forwarder delivery primitive
//	Adapter    -> membership bookkeeping + cluster-wide room resolution
//	Store      -> durability & expiry (Redis in redisrooms, process maps in memoryrooms)
//
// Implementations
//
//	memoryrooms : in-memory reference used for tests / single-process servers
//	redisrooms  : Redis-backed implementation for horizontally scaled fleets
//
// Membership is eventually consistent by design: the room->sparks and
// spark->rooms indices are maintained as mirrors but updated as separate store
// operations, and cross-node reads are cursor scans rather than snapshots.
// Callers must treat query results as a best-effort view.
package rooms
