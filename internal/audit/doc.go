// Package audit delivers security events to pluggable sinks off the request
// path.
//
// The engine decides which events to emit. This package owns buffering and
// delivery only: a [Dispatcher] relays [Event] values to a [Sink] from a
// single goroutine, either blocking or dropping (and counting) when its
// buffer is full.
package audit
