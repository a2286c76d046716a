// Package rate implements the fixed-window request counters used to throttle
// authentication traffic per client.
//
// # Window semantics
//
// The first request from a key opens a window of length W with count 1.
// Later requests increment the count while the window's age is <= W; the
// first request after that replaces the window. A request is rejected when
// the post-increment count exceeds the limit. Rejected requests still count.
//
// # Backends
//
//   - [MemoryLimiter]: sharded in-process map, one lock per shard.
//   - [RedisLimiter]: one Lua script per request (INCR + PEXPIRE on first hit),
//     so increment-or-create is a single atomic server-side step. Key prefix
//     "rl:".
package rate
