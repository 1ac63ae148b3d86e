package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/danmuck/ryverlive/internal/observability"
	"github.com/danmuck/ryverlive/internal/protocol/frame"
	"github.com/danmuck/ryverlive/internal/protocol/session"
	"golang.org/x/sync/errgroup"
)

// link is one open transport plus the goroutines bound to it. The first
// goroutine error cancels ctx and is the loss cause.
type link struct {
	conn   Conn
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	closeOnce sync.Once
	closeErr  error
}

func (s *Session) openLink(lifeCtx context.Context, conn Conn) *link {
	ctx, cancel := context.WithCancel(lifeCtx)
	group, gctx := errgroup.WithContext(ctx)
	l := &link{
		conn:   conn,
		ctx:    gctx,
		cancel: cancel,
		group:  group,
	}
	group.Go(func() error {
		<-gctx.Done()
		_ = l.close()
		return nil
	})
	group.Go(func() error {
		return s.receive(l)
	})
	return l
}

func (l *link) close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.conn.Close()
	})
	return l.closeErr
}

// stop cancels the link goroutines and closes the transport.
func (l *link) stop() error {
	l.cancel()
	return l.close()
}

func (l *link) wait() error {
	err := l.group.Wait()
	l.cancel()
	return err
}

// connect runs one full attempt: begin-session, endpoint check, dial, auth.
// On success the link is installed and the session is Connected.
func (s *Session) connect(ctx context.Context, lifeCtx context.Context) (*link, error) {
	if !s.transition(StateConnecting) {
		return nil, ErrClosed
	}
	hctx, cancel := context.WithTimeout(ctx, s.cfg.HandshakeTimeout)
	defer cancel()
	stop := context.AfterFunc(lifeCtx, cancel)
	defer stop()

	info, err := s.handshaker.BeginSession(hctx)
	if err != nil {
		return nil, fmt.Errorf("%w: begin session: %w", ErrHandshake, err)
	}
	if err := info.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	if err := s.cfg.ValidateEndpoint(info.Endpoint); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	conn, err := s.dialer.Dial(hctx, info.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrHandshake, info.Endpoint, err)
	}

	l := s.openLink(lifeCtx, conn)
	abort := func(err error) (*link, error) {
		_ = l.stop()
		_ = l.wait()
		return nil, err
	}
	if !s.transition(StateAuthenticating) {
		return abort(ErrClosed)
	}
	s.pending.Reset()

	auth := session.NewAuth(s.cfg, info.SessionToken, time.Now())
	if err := auth.Validate(); err != nil {
		return abort(fmt.Errorf("%w: %w", ErrHandshake, err))
	}
	if _, err := s.callOn(hctx, l, session.TypeAuth, auth.Fields(), s.cfg.AckTimeout); err != nil {
		if lifeCtx.Err() != nil {
			return abort(ErrClosed)
		}
		return abort(fmt.Errorf("%w: auth: %w", ErrHandshake, err))
	}

	// Keepalive joins the group before Close can see the link.
	l.group.Go(func() error {
		return s.keepalive(l)
	})
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return abort(ErrClosed)
	}
	s.state = StateConnected
	s.link = l
	s.mu.Unlock()
	s.log.Info().Str("endpoint", info.Endpoint).Msg("session connected")
	return l, nil
}

// receive reads frames until the link fails. Acks resolve pending calls;
// everything else goes to the dispatcher.
func (s *Session) receive(l *link) error {
	for {
		kind, data, err := l.conn.Receive(l.ctx)
		if err != nil {
			if l.ctx.Err() != nil {
				return l.ctx.Err()
			}
			return fmt.Errorf("receive: %w", err)
		}
		f, err := frame.DecodeMessage(kind, data)
		if err != nil {
			var decodeErr *frame.DecodeError
			if errors.As(err, &decodeErr) {
				observability.RecordFrameDropped("decode")
				s.log.Warn().Err(err).Int("bytes", len(data)).Msg("dropping malformed frame")
				continue
			}
			s.log.Error().Err(err).Str("kind", kind.String()).Msg("fatal transport frame")
			return err
		}
		observability.RecordFrameReceived(f.Type)

		if f.IsAck() {
			if !s.pending.Resolve(f.ReplyTo, f.ReplyType, f) {
				observability.RecordFrameDropped("orphan_ack")
				s.log.Debug().Str("reply_to", f.ReplyTo).Str("reply_type", f.ReplyType).Msg("orphan ack")
			}
			continue
		}
		if !s.dispatch.Dispatch(f) {
			observability.RecordFrameDropped("unhandled")
		}
	}
}

// keepalive pings every PingInterval. A ping that is not acked within
// PingTimeout ends the link.
func (s *Session) keepalive(l *link) error {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.ctx.Done():
			return l.ctx.Err()
		case <-ticker.C:
		}
		if _, err := s.callOn(l.ctx, l, session.TypePing, nil, s.cfg.PingTimeout); err != nil {
			if errors.Is(err, ErrTimeout) {
				s.log.Warn().Dur("timeout", s.cfg.PingTimeout).Msg("ping not acked")
				return ErrPingTimeout
			}
			if l.ctx.Err() != nil {
				return l.ctx.Err()
			}
			return fmt.Errorf("ping: %w", err)
		}
	}
}

// supervise owns one session run: it waits for each link to end and
// either reconnects or terminates.
func (s *Session) supervise(lifeCtx context.Context, l *link, done chan struct{}) {
	defer close(done)
	for {
		cause := l.wait()
		if lifeCtx.Err() != nil {
			return
		}
		lossErr := fmt.Errorf("%w: %w", ErrConnectionLost, cause)
		s.handleLoss(l, lossErr)
		if !s.cfg.AutoReconnect {
			return
		}
		next, err := s.reconnect(lifeCtx)
		if err != nil {
			if lifeCtx.Err() != nil {
				return
			}
			s.terminate(fmt.Errorf("reconnect: %w", err))
			return
		}
		l = next
		s.log.Info().Msg("session reconnected")
		s.notifyReconnect()
	}
}

// handleLoss detaches l and fails its pending calls. The state leaves
// Connected in the same critical section that clears the link. Without
// AutoReconnect the session ends here.
func (s *Session) handleLoss(l *link, lossErr error) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	if s.link == l {
		s.link = nil
	}
	var cancel context.CancelFunc
	var done chan struct{}
	if s.cfg.AutoReconnect {
		s.state = StateReconnectWait
	} else {
		s.state = StateClosed
		s.termErr = lossErr
		cancel = s.lifeCancel
		done = s.done
	}
	s.mu.Unlock()

	n := s.pending.FailAll(lossErr)
	observability.SetPendingCalls(0)
	observability.RecordConnectionLoss()
	s.log.Warn().Err(lossErr).Int("failed_calls", n).Msg("connection lost")
	s.notifyLoss(lossErr)

	if done != nil {
		cancel()
		close(done)
		s.log.Warn().Err(lossErr).Msg("session terminated")
	}
}

// reconnect waits the backoff delay and then retries full connect attempts
// until one succeeds, the attempt budget runs out, or the session closes.
func (s *Session) reconnect(lifeCtx context.Context) (*link, error) {
	if err := s.sleepBackoff(lifeCtx, 1); err != nil {
		return nil, err
	}

	var next *link
	attempts := uint(0)
	if s.cfg.MaxReconnectAttempts > 0 {
		attempts = uint(s.cfg.MaxReconnectAttempts)
	}
	err := retry.Do(
		func() error {
			l, err := s.connect(lifeCtx, lifeCtx)
			if err != nil {
				if errors.Is(err, ErrClosed) || lifeCtx.Err() != nil {
					return retry.Unrecoverable(err)
				}
				return err
			}
			next = l
			return nil
		},
		retry.Context(lifeCtx),
		retry.Attempts(attempts),
		retry.LastErrorOnly(true),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return session.NextBackoffDelay(s.cfg.Backoff, int(n)+2, s.rng)
		}),
		retry.OnRetry(func(n uint, err error) {
			observability.RecordReconnect(false)
			s.transition(StateReconnectWait)
			s.log.Warn().Uint("attempt", n+1).Err(err).Msg("reconnect attempt failed")
		}),
	)
	if err != nil {
		return nil, err
	}
	observability.RecordReconnect(true)
	return next, nil
}

func (s *Session) sleepBackoff(ctx context.Context, attempt int) error {
	delay := session.NextBackoffDelay(s.cfg.Backoff, attempt, s.rng)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
