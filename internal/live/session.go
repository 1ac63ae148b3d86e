package live

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/danmuck/ryverlive/internal/observability"
	"github.com/danmuck/ryverlive/internal/protocol/session"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options wires a Session to its collaborators.
type Options struct {
	Config     session.Config
	Handshaker Handshaker
	Dialer     Dialer
	// Logger defaults to the global zerolog logger.
	Logger *zerolog.Logger
}

// Session is one logical chat session. It survives transport links when
// AutoReconnect is set; handler registrations survive every link.
type Session struct {
	id         string
	cfg        session.Config
	handshaker Handshaker
	dialer     Dialer
	log        zerolog.Logger
	rng        *rand.Rand

	pending  *session.Correlator
	dispatch *Dispatcher

	hooksMu     sync.RWMutex
	onLoss      func(error)
	onReconnect func()

	mu             sync.Mutex
	state          State
	link           *link
	lifeCancel     context.CancelFunc
	done           chan struct{}
	supervisorDone chan struct{}
	termErr        error
}

func NewSession(opts Options) (*Session, error) {
	if opts.Handshaker == nil {
		return nil, ErrHandshakerRequired
	}
	if opts.Dialer == nil {
		return nil, ErrDialerRequired
	}
	base := log.Logger
	if opts.Logger != nil {
		base = *opts.Logger
	}
	id := uuid.NewString()
	logger := observability.Component(base, "live", id)
	return &Session{
		id:         id,
		cfg:        opts.Config.WithDefaults(),
		handshaker: opts.Handshaker,
		dialer:     opts.Dialer,
		log:        logger,
		rng:        rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())),
		pending:    session.NewCorrelator(),
		dispatch:   NewDispatcher(logger),
		state:      StateDisconnected,
	}, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) Config() session.Config { return s.cfg }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PendingCalls snapshots the outstanding ack-awaiting calls.
func (s *Session) PendingCalls() []session.PendingCall {
	return s.pending.List()
}

// Start performs the begin-session handshake, opens a link and
// authenticates. It returns once the session is Connected or the first
// attempt failed; a failed Start leaves the session Closed. ctx bounds only
// the connect attempt, not the session lifetime.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateDisconnected && s.state != StateClosed {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	lifeCtx, cancel := context.WithCancel(context.Background())
	supDone := make(chan struct{})
	s.lifeCancel = cancel
	s.done = make(chan struct{})
	s.supervisorDone = supDone
	s.termErr = nil
	s.state = StateConnecting
	s.mu.Unlock()

	s.log.Info().Msg("starting session")
	l, err := s.connect(ctx, lifeCtx)
	if err != nil {
		close(supDone)
		s.terminate(err)
		s.log.Error().Err(err).Msg("session start failed")
		return err
	}
	go s.supervise(lifeCtx, l, supDone)
	return nil
}

// Close tears the session down. Pending calls fail with ErrClosed,
// background goroutines stop and reconnects are cancelled. Close is
// idempotent and safe on a never-started session.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed || s.state == StateDisconnected {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosed
	l := s.link
	s.link = nil
	s.termErr = nil
	cancel := s.lifeCancel
	done := s.done
	supDone := s.supervisorDone
	s.mu.Unlock()

	s.log.Info().Msg("closing session")
	if n := s.pending.FailAll(ErrClosed); n > 0 {
		s.log.Debug().Int("calls", n).Msg("failed pending calls on close")
	}
	observability.SetPendingCalls(0)
	cancel()

	var err error
	if l != nil {
		err = l.stop()
		_ = l.wait()
	}
	<-supDone
	close(done)
	return err
}

// RunUntilTerminated blocks until the session closes. It returns nil after
// Close, the loss error when a connection is lost without AutoReconnect,
// or ctx.Err when ctx ends first.
func (s *Session) RunUntilTerminated(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return ErrClosed
	}
	select {
	case <-done:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.termErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// terminate moves the session to Closed for a reason other than Close.
func (s *Session) terminate(cause error) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	l := s.link
	s.link = nil
	s.termErr = cause
	cancel := s.lifeCancel
	done := s.done
	s.mu.Unlock()

	s.pending.FailAll(ErrClosed)
	observability.SetPendingCalls(0)
	cancel()
	if l != nil {
		_ = l.stop()
	}
	close(done)
	s.log.Warn().Err(cause).Msg("session terminated")
}

// transition moves to state unless the session is already Closed.
func (s *Session) transition(state State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return false
	}
	s.state = state
	return true
}

// OnConnectionLoss sets the hook fired once per lost link.
func (s *Session) OnConnectionLoss(h func(error)) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.onLoss = h
}

// OnReconnect sets the hook fired once per successful reconnect.
func (s *Session) OnReconnect(h func()) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.onReconnect = h
}

func (s *Session) notifyLoss(err error) {
	s.hooksMu.RLock()
	h := s.onLoss
	s.hooksMu.RUnlock()
	if h != nil {
		go s.runHook("connection_loss", func() { h(err) })
	}
}

func (s *Session) notifyReconnect() {
	s.hooksMu.RLock()
	h := s.onReconnect
	s.hooksMu.RUnlock()
	if h != nil {
		go s.runHook("reconnect", h)
	}
}

func (s *Session) runHook(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			observability.RecordHandlerPanic(name)
			s.log.Error().Str("hook", name).Interface("panic", r).Msg("session hook panicked")
		}
	}()
	fn()
}

// OnMessageType registers h for a message type; CatchAll matches any type
// without an exact handler. A nil h unregisters.
func (s *Session) OnMessageType(msgType string, h MessageHandler) {
	s.dispatch.Register(msgType, h)
}

func (s *Session) OffMessageType(msgType string) {
	s.dispatch.Unregister(msgType)
}

// OnEvent registers h for an event topic; CatchAll matches any topic
// without an exact handler. Events no topic handler claims fall through to
// the "event" message type handler.
func (s *Session) OnEvent(topic string, h func(session.Event)) {
	s.dispatch.RegisterEvent(topic, typed(h))
}

func (s *Session) OffEvent(topic string) {
	s.dispatch.UnregisterEvent(topic)
}

func (s *Session) OnChat(h func(session.ChatMessage)) {
	s.dispatch.Register(session.TypeChat, typed(h))
}

func (s *Session) OnChatUpdated(h func(session.ChatUpdated)) {
	s.dispatch.Register(session.TypeChatUpdated, typed(h))
}

func (s *Session) OnChatDeleted(h func(session.ChatDeleted)) {
	s.dispatch.Register(session.TypeChatDeleted, typed(h))
}

func (s *Session) OnPresenceChanged(h func(session.PresenceChanged)) {
	s.dispatch.Register(session.TypePresence, typed(h))
}

func (s *Session) OnUserTyping(h func(session.UserTyping)) {
	s.dispatch.Register(session.TypeTyping, typed(h))
}
