package live

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/ryverlive/internal/observability"
	"github.com/danmuck/ryverlive/internal/protocol/frame"
	"github.com/danmuck/ryverlive/internal/protocol/session"
)

// Call sends one frame and waits up to AckTimeout for its ack.
func (s *Session) Call(ctx context.Context, msgType string, fields map[string]any) (frame.Frame, error) {
	return s.CallTimeout(ctx, msgType, fields, s.cfg.AckTimeout)
}

// CallTimeout sends one frame and waits for the ack correlated by
// (id, type). A timeout <= 0 waits until the ack, ctx, or the link ends.
// ErrTimeout only fails this call; it does not signal connection loss.
func (s *Session) CallTimeout(ctx context.Context, msgType string, fields map[string]any, timeout time.Duration) (frame.Frame, error) {
	l, err := s.connectedLink()
	if err != nil {
		return frame.Frame{}, err
	}
	return s.callOn(ctx, l, msgType, fields, timeout)
}

// Notify sends one frame without registering for its ack. Any ack the
// server sends is dropped as an orphan.
func (s *Session) Notify(ctx context.Context, msgType string, fields map[string]any) error {
	l, err := s.connectedLink()
	if err != nil {
		return err
	}
	_, data, err := frame.Encode(msgType, fields)
	if err != nil {
		return err
	}
	return s.send(ctx, l, data)
}

// SendChat posts text to a forum or team jid and waits for the ack.
func (s *Session) SendChat(ctx context.Context, to, text string) (frame.Frame, error) {
	if strings.TrimSpace(to) == "" {
		return frame.Frame{}, ErrMissingDestination
	}
	return s.Call(ctx, session.TypeChat, session.ChatFields(to, text))
}

func (s *Session) SendPresenceChange(ctx context.Context, presence session.Presence) (frame.Frame, error) {
	if err := presence.Validate(); err != nil {
		return frame.Frame{}, err
	}
	return s.Call(ctx, session.TypePresence, session.PresenceFields(presence))
}

// SendTyping sends one "composing" indicator. Remote clients expire it
// after a few seconds; see StartTyping for a refreshed lease.
func (s *Session) SendTyping(ctx context.Context, to string) error {
	if strings.TrimSpace(to) == "" {
		return ErrMissingDestination
	}
	return s.Notify(ctx, session.TypeTyping, session.TypingFields(to, session.TypingComposing))
}

func (s *Session) SendClearTyping(ctx context.Context, to string) error {
	if strings.TrimSpace(to) == "" {
		return ErrMissingDestination
	}
	return s.Notify(ctx, session.TypeTyping, session.TypingFields(to, session.TypingDone))
}

func (s *Session) connectedLink() (*link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateConnected:
		if s.link == nil {
			return nil, fmt.Errorf("%w: state=%s without link", ErrNotConnected, s.state)
		}
		return s.link, nil
	case StateClosed, StateDisconnected:
		return nil, ErrClosed
	default:
		return nil, fmt.Errorf("%w: state=%s", ErrNotConnected, s.state)
	}
}

func (s *Session) callOn(ctx context.Context, l *link, msgType string, fields map[string]any, timeout time.Duration) (frame.Frame, error) {
	id, data, err := frame.Encode(msgType, fields)
	if err != nil {
		return frame.Frame{}, err
	}

	start := time.Now()
	var deadline time.Time
	if timeout > 0 {
		deadline = start.Add(timeout)
	}
	resultCh, err := s.pending.Register(id, msgType, start, deadline)
	if err != nil {
		return frame.Frame{}, err
	}
	observability.SetPendingCalls(s.pending.Len())
	outcome := "ok"
	defer func() {
		s.pending.Remove(id, msgType)
		observability.SetPendingCalls(s.pending.Len())
		observability.RecordCall(msgType, outcome, time.Since(start))
	}()

	if err := s.send(ctx, l, data); err != nil {
		outcome = "send_error"
		return frame.Frame{}, err
	}

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}
	select {
	case res := <-resultCh:
		if res.Err != nil {
			outcome = "failed"
		}
		return res.Ack, res.Err
	case <-timer:
		outcome = "timeout"
		return frame.Frame{}, fmt.Errorf("%w: %s %s after %s", ErrTimeout, msgType, id, timeout)
	case <-ctx.Done():
		outcome = "canceled"
		return frame.Frame{}, ctx.Err()
	case <-l.ctx.Done():
		// FailAll may already have delivered the authoritative reason.
		select {
		case res := <-resultCh:
			if res.Err != nil {
				outcome = "failed"
			}
			return res.Ack, res.Err
		default:
		}
		outcome = "failed"
		return frame.Frame{}, s.linkErr(l)
	}
}

func (s *Session) linkErr(l *link) error {
	if s.State() == StateClosed {
		return ErrClosed
	}
	cause := context.Cause(l.ctx)
	if cause == nil || errors.Is(cause, context.Canceled) {
		return ErrConnectionLost
	}
	return fmt.Errorf("%w: %w", ErrConnectionLost, cause)
}

func (s *Session) send(ctx context.Context, l *link, data []byte) error {
	wctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()
	if err := l.conn.Send(wctx, data); err != nil {
		if l.ctx.Err() != nil {
			return s.linkErr(l)
		}
		return fmt.Errorf("send: %w", err)
	}
	return nil
}
