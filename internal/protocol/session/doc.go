// Package session owns live-session wire helpers shared by the client.
//
// Ownership boundary:
// - session tuning defaults (ping, ack, reconnect, typing cadence)
// - login/auth handshake shapes
// - the pending-call table that correlates acks to outbound frames
// - typed inbound payloads
// - transport security policy for chat endpoints
package session
