package live

import "errors"

var (
	// ErrClosed means the session was never started or has been closed.
	ErrClosed = errors.New("live: session closed")
	// ErrNotConnected means the session is between links (reconnecting).
	ErrNotConnected = errors.New("live: session not connected")
	// ErrConnectionLost fails calls that were in flight when a link died.
	ErrConnectionLost = errors.New("live: connection lost")
	// ErrTimeout means one call's ack did not arrive in time. The session
	// itself may still be healthy.
	ErrTimeout = errors.New("live: ack timeout")

	ErrPingTimeout        = errors.New("live: ping timeout")
	ErrHandshake          = errors.New("live: handshake failed")
	ErrAlreadyStarted     = errors.New("live: session already started")
	ErrMissingDestination = errors.New("live: missing destination")
	ErrHandshakerRequired = errors.New("live: handshaker required")
	ErrDialerRequired     = errors.New("live: dialer required")
)
