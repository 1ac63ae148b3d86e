package live

import (
	"context"

	"github.com/danmuck/ryverlive/internal/protocol/frame"
	"github.com/danmuck/ryverlive/internal/protocol/session"
)

// Conn is one open duplex link. Receive is only called from the receiver
// goroutine; Close must unblock a pending Receive.
type Conn interface {
	Send(ctx context.Context, data []byte) error
	Receive(ctx context.Context) (frame.Kind, []byte, error)
	Close() error
}

// Dialer opens a Conn to a chat endpoint.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Conn, error)
}

// Handshaker performs the begin-session call that yields a token and the
// chat endpoint.
type Handshaker interface {
	BeginSession(ctx context.Context) (session.LoginInfo, error)
}

// HandshakerFunc adapts a function into a Handshaker.
type HandshakerFunc func(ctx context.Context) (session.LoginInfo, error)

func (f HandshakerFunc) BeginSession(ctx context.Context) (session.LoginInfo, error) {
	return f(ctx)
}

// DialerFunc adapts a function into a Dialer.
type DialerFunc func(ctx context.Context, endpoint string) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context, endpoint string) (Conn, error) {
	return f(ctx, endpoint)
}
