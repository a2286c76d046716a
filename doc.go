// Package authcore issues, verifies and revokes bearer session credentials
// and runs the two-step (password, then second factor) login protocol.
//
// An [Engine] is assembled once with [New] and [Builder.Build] and is safe
// for concurrent use afterwards. Configuration problems surface from Build,
// wrapped in [ErrConfiguration]; per-request outcomes are ordinary error
// returns.
//
// # Failure reporting
//
// Credential, token and MFA failures all surface as
// [ErrAuthenticationFailed]. The specific cause goes to the logger and the
// audit sink, keyed by request id. Rate limiting ([ErrRateLimited]) and
// backend failures ([ErrUnavailable]) are reported distinctly. A revocation
// or epoch lookup that cannot be answered rejects the token.
//
// # Backends
//
// With [Builder.WithRedis], revocations, rate windows, MFA challenges and
// TOTP replay claims live in Redis and are shared by every process. Without
// it the engine uses sharded in-process stores.
//
// # Hot path
//
// [Engine.Authenticate] runs on every request: one signature check and two
// store lookups (revocation entry and user epoch).
package authcore
