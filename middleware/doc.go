// Package middleware adapts authcore.Engine to net/http.
//
// # Chain
//
// A typical chain, outermost first:
//
//	RequestContext -> RateLimit -> Authenticate -> mux
//
//   - [RequestContext] assigns a request id, resolves the client address and
//     attaches a request-scoped zerolog logger.
//   - [RateLimit] admits requests under the auth path prefix through
//     Engine.Admit and answers 429 or 503 itself.
//   - [Authenticate] resolves a Bearer session token into a Principal. It
//     never rejects; unauthenticated requests continue without one.
//   - [RequireAuth] and [RequireRole] wrap individual routes and answer 401
//     and 403.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Echo validation errors to clients.
//   - Log token values.
package middleware
