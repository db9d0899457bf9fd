// Package protocol owns the client/server wire contract.
//
// Ownership boundary:
// - action names and routing prefixes
// - request/response envelopes
// - list item and detail record shapes
//
// Framing lives in protocol/frame.
package protocol
