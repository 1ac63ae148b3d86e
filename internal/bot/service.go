// Package bot runs a chat bot process on top of a live session: it echoes
// prefixed messages under a typing indicator and serves the admin surface.
package bot

import (
	"context"
	"errors"
	"os/signal"
	"strings"
	"syscall"

	"github.com/danmuck/ryverlive/internal/admin"
	"github.com/danmuck/ryverlive/internal/config"
	"github.com/danmuck/ryverlive/internal/live"
	"github.com/danmuck/ryverlive/internal/protocol/frame"
	"github.com/danmuck/ryverlive/internal/protocol/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ServiceConfig configures one bot process.
type ServiceConfig struct {
	Bot     config.BotConfig
	Session session.Config

	// Handshaker and Dialer default to HTTPLogin and WSDialer.
	Handshaker live.Handshaker
	Dialer     live.Dialer
}

// Sender is the slice of a live session the echo handler replies through.
type Sender interface {
	SendChat(ctx context.Context, to, text string) (frame.Frame, error)
	WithTyping(ctx context.Context, to string, fn func(ctx context.Context) error) error
}

type Service struct {
	cfg ServiceConfig
	log zerolog.Logger
}

func NewService(cfg ServiceConfig) *Service {
	cfg.Session = cfg.Session.WithDefaults()
	return &Service{
		cfg: cfg,
		log: log.Logger.With().Str("bot", cfg.Bot.Name).Logger(),
	}
}

// Run blocks until SIGINT/SIGTERM or until the session terminates.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Serve(ctx)
}

// Serve starts the session and the admin server and blocks until ctx ends
// or the session terminates.
func (s *Service) Serve(ctx context.Context) error {
	handshaker := s.cfg.Handshaker
	if handshaker == nil {
		login := live.NewHTTPLogin(s.cfg.Bot.Org, s.cfg.Bot.Credentials())
		if s.cfg.Bot.LoginClient != "" {
			login.URL = live.LoginURL(s.cfg.Bot.Org, s.cfg.Bot.LoginClient)
		}
		handshaker = login
	}
	dialer := s.cfg.Dialer
	if dialer == nil {
		dialer = live.NewWSDialer(s.cfg.Session)
	}
	logger := s.log
	sess, err := live.NewSession(live.Options{
		Config:     s.cfg.Session,
		Handshaker: handshaker,
		Dialer:     dialer,
		Logger:     &logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.bind(ctx, sess)

	if err := sess.Start(ctx); err != nil {
		return err
	}
	defer sess.Close()
	s.applyPresence(ctx, sess)

	group, gctx := errgroup.WithContext(ctx)
	adminSrv := admin.New(s.cfg.Bot.Name, s.cfg.Bot.AdminAddr, s.cfg.Bot.CorsOrigins, s.cfg.Bot.AdminToken, sess)
	group.Go(func() error {
		return adminSrv.Serve(gctx)
	})
	group.Go(func() error {
		defer cancel()
		err := sess.RunUntilTerminated(gctx)
		if errors.Is(err, context.Canceled) {
			s.log.Info().Msg("shutting down")
			return sess.Close()
		}
		return err
	})
	return group.Wait()
}

func (s *Service) bind(ctx context.Context, sess *live.Session) {
	sess.OnChat(func(msg session.ChatMessage) {
		s.handleChat(ctx, sess, msg)
	})
	sess.OnConnectionLoss(func(err error) {
		s.log.Warn().Err(err).Msg("chat connection lost")
	})
	sess.OnReconnect(func() {
		s.log.Info().Msg("chat connection restored")
		s.applyPresence(ctx, sess)
	})
}

func (s *Service) applyPresence(ctx context.Context, sess *live.Session) {
	if s.cfg.Bot.Presence == "" {
		return
	}
	if _, err := sess.SendPresenceChange(ctx, session.Presence(s.cfg.Bot.Presence)); err != nil {
		s.log.Warn().Err(err).Str("presence", s.cfg.Bot.Presence).Msg("presence update failed")
	}
}

// handleChat echoes messages that start with the configured prefix back to
// the conversation they came from.
func (s *Service) handleChat(ctx context.Context, sender Sender, msg session.ChatMessage) {
	reply, ok := s.echoText(msg)
	if !ok {
		return
	}
	err := sender.WithTyping(ctx, msg.To, func(ctx context.Context) error {
		_, err := sender.SendChat(ctx, msg.To, reply)
		return err
	})
	if err != nil {
		s.log.Warn().Err(err).Str("to", msg.To).Str("message", msg.MessageID).Msg("echo reply failed")
		return
	}
	s.log.Debug().Str("to", msg.To).Str("message", msg.MessageID).Msg("echoed message")
}

func (s *Service) echoText(msg session.ChatMessage) (string, bool) {
	if msg.Subtype != "" && msg.Subtype != session.SubtypeChatMessage {
		return "", false
	}
	if strings.TrimSpace(msg.To) == "" {
		return "", false
	}
	prefix := s.cfg.Bot.EchoPrefix
	if prefix == "" || !strings.HasPrefix(msg.Text, prefix) {
		return "", false
	}
	reply := strings.TrimSpace(strings.TrimPrefix(msg.Text, prefix))
	return reply, reply != ""
}
