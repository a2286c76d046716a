// Package internal contains helpers private to authcore: secure random
// identifiers and one-time codes.
//
// # Sub-packages
//
//   - audit — async event dispatch (Dispatcher + Sink implementations)
//   - config — process configuration loaded through viper
//   - logger — zerolog bootstrap
//   - rate — fixed-window request limiters (memory and Redis)
//   - shard — sharded map used by the in-memory stores
//
// # What this package must NOT do
//
//   - Export types that appear in the public authcore API.
//   - Be imported by any package outside the authcore module.
package internal
