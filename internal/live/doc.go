// Package live runs a persistent, ack-correlated chat session over a duplex
// text transport.
//
// Ownership boundary:
// - session state machine (start, auth, loss, reconnect, close)
// - ack-correlated calls and fire-and-forget notifications
// - receiver loop and keepalive monitor, one set per transport link
// - handler dispatch by message type and event topic
// - typing leases
//
// The begin-session login and the transport itself are collaborators behind
// the Handshaker and Dialer interfaces; HTTPLogin and WSDialer are the
// default implementations.
package live
