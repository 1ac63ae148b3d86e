// Package protocol owns the live chat wire contract.
//
// Ownership boundary:
// - frame: JSON envelope codec, message ids, ack detection
// - session: auth/login shapes, typed inbound payloads, the pending-call
//   table, timing and transport-security config
package protocol
