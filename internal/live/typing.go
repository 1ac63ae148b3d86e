package live

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Typing is a refreshed "composing" lease on one destination. It re-sends
// the indicator every TypingInterval until Stop or until the context passed
// to StartTyping ends.
type Typing struct {
	s      *Session
	to     string
	cancel context.CancelFunc
	done   chan struct{}

	once    sync.Once
	stopErr error
}

// StartTyping sends "composing" to to before returning and keeps
// refreshing it.
func (s *Session) StartTyping(ctx context.Context, to string) (*Typing, error) {
	if strings.TrimSpace(to) == "" {
		return nil, ErrMissingDestination
	}
	if _, err := s.connectedLink(); err != nil {
		return nil, err
	}
	if err := s.SendTyping(ctx, to); err != nil {
		return nil, err
	}
	lctx, cancel := context.WithCancel(ctx)
	t := &Typing{
		s:      s,
		to:     to,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go t.run(lctx)
	return t, nil
}

func (t *Typing) To() string { return t.to }

func (t *Typing) run(ctx context.Context) {
	defer close(t.done)
	ticker := time.NewTicker(t.s.cfg.TypingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := t.s.SendTyping(ctx, t.to); err != nil && ctx.Err() == nil {
			t.s.log.Debug().Err(err).Str("to", t.to).Msg("typing refresh failed")
		}
	}
}

// Stop ends the lease and sends "done". No "composing" is sent after Stop
// returns. The "done" send is best effort and survives a cancelled ctx.
// Stop is idempotent.
func (t *Typing) Stop(ctx context.Context) error {
	t.once.Do(func() {
		t.cancel()
		<-t.done
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.s.cfg.WriteTimeout)
		defer cancel()
		t.stopErr = t.s.SendClearTyping(sctx, t.to)
		if t.stopErr != nil {
			t.s.log.Debug().Err(t.stopErr).Str("to", t.to).Msg("typing clear failed")
		}
	})
	return t.stopErr
}

// WithTyping holds a typing lease on to while fn runs. The lease is released
// on every exit path, including a panic in fn.
func (s *Session) WithTyping(ctx context.Context, to string, fn func(ctx context.Context) error) error {
	t, err := s.StartTyping(ctx, to)
	if err != nil {
		return err
	}
	defer func() {
		_ = t.Stop(ctx)
	}()
	return fn(ctx)
}
