// Package session owns the per-connection state machine.
//
// Ownership boundary:
// - username handshake (AwaitingUsername -> Ready)
// - action routing by prefix
// - the two-slot result cache behind index-based detail lookups
// - conversion of every handler failure into an error response
//
// A Session is owned by exactly one connection goroutine and is not safe for
// concurrent use.
package session
