// Package broadcast fans session events out to WebSocket clients using the
// actor pattern.
//
// The Hub runs a single goroutine fed by a command channel (no mutexes).
// Publishing never blocks the session: each client has a buffered writer
// goroutine, and a client that cannot keep up is evicted.
package broadcast
