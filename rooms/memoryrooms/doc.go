// Package memoryrooms is an in-memory implementation of rooms.Adapter used for
// tests and single-process servers. It keeps the dual room->sparks /
// spark->rooms index in process maps and mirrors the redisrooms broadcast
// semantics (no cross-room dedup, bounded forward batches). There is no TTL:
// with a single process there is no crashed peer whose entries need to expire.
package memoryrooms
