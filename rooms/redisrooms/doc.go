// Package redisrooms implements rooms.Adapter on Redis sets so room membership
// is shared by every server in a horizontally scaled fleet.
//
// Key Layout
//
//	{namespace}:rooms:{address}_{bootID}:{room} -> set of spark ids
//	{namespace}:sparks:{sparkID}                -> set of room names
//
// Room keys are scoped to one server instance (address plus boot id) so a
// crashed server's membership expires on its own; spark keys are global
// because spark ids are cluster-unique. Both key families carry a TTL sized as
// ceil(refresh interval x drift factor), and two background refreshers keep
// live entries armed: a periodic sweep of this instance's room keys and a
// per-heartbeat refresh of one spark key.
//
// Design Notes
//
// The store offers no multi-key transactions. Writes touching both indices go
// through one pipeline, which only guarantees the commands run back to back;
// a partial failure leaves earlier commands applied and is surfaced as one
// aggregated error. Cross-instance queries use bounded cursor scans (SCAN /
// SSCAN) and never issue an unbounded listing command.
package redisrooms
