package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/ryverlive/internal/config"
	"github.com/danmuck/ryverlive/internal/protocol/session"
	"github.com/danmuck/ryverlive/internal/testutil/testlog"
)

func writeSessionFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write session config: %v", err)
	}
	return path
}

func TestLoadSessionConfigDefaults(t *testing.T) {
	testlog.Start(t)
	cfg, err := loadSessionConfig("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if !cfg.AutoReconnect {
		t.Fatalf("expected bot default auto reconnect")
	}
	if cfg.PingInterval != 10*time.Second || cfg.PingTimeout != 5*time.Second {
		t.Fatalf("unexpected keepalive defaults interval=%v timeout=%v", cfg.PingInterval, cfg.PingTimeout)
	}
	if cfg.Backoff.InitialDelay != 5*time.Second || !cfg.Backoff.Fixed() {
		t.Fatalf("unexpected reconnect defaults %+v", cfg.Backoff)
	}
}

func TestLoadSessionConfigExampleFile(t *testing.T) {
	testlog.Start(t)
	cfg, err := loadSessionConfig("ex.session.toml")
	if err != nil {
		t.Fatalf("load example: %v", err)
	}
	if cfg.PingInterval != 15*time.Second {
		t.Fatalf("unexpected ping interval: %v", cfg.PingInterval)
	}
	if cfg.PingTimeout != 4*time.Second {
		t.Fatalf("unexpected ping timeout: %v", cfg.PingTimeout)
	}
	if cfg.AckTimeout != 8*time.Second {
		t.Fatalf("unexpected ack timeout: %v", cfg.AckTimeout)
	}
	if cfg.Backoff.InitialDelay != 10*time.Second || cfg.Backoff.MaxDelay != 10*time.Second {
		t.Fatalf("unexpected reconnect delay: %+v", cfg.Backoff)
	}
	if cfg.MaxReconnectAttempts != 12 {
		t.Fatalf("unexpected max attempts: %d", cfg.MaxReconnectAttempts)
	}
	if cfg.SecurityMode != session.SecurityModeProduction {
		t.Fatalf("unexpected security mode: %q", cfg.SecurityMode)
	}
	if cfg.TLS.ServerName != "chat.ryver.com" {
		t.Fatalf("unexpected tls server name: %q", cfg.TLS.ServerName)
	}
	if cfg.TypingInterval != 2500*time.Millisecond {
		t.Fatalf("expected untouched typing interval, got %v", cfg.TypingInterval)
	}
}

func TestLoadSessionConfigExplicitFalseOverridesDefault(t *testing.T) {
	testlog.Start(t)
	cfg, err := loadSessionConfig(writeSessionFile(t, "auto_reconnect = false\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AutoReconnect {
		t.Fatalf("expected auto reconnect disabled")
	}
}

func TestLoadSessionConfigErrors(t *testing.T) {
	testlog.Start(t)
	tests := []struct {
		name    string
		body    string
		wantErr error
		wantSub string
	}{
		{name: "bad duration", body: `ping_interval = "soon"`, wantSub: "ping_interval"},
		{name: "negative duration", body: `ack_timeout = "-1s"`, wantSub: "must be positive"},
		{name: "bad multiplier", body: `reconnect_multiplier = 0.5`, wantSub: "reconnect_multiplier"},
		{name: "negative attempts", body: `max_reconnect_attempts = -1`, wantSub: "max_reconnect_attempts"},
		{name: "bad security mode", body: `security_mode = "paranoid"`, wantErr: session.ErrInvalidSecurityMode},
		{name: "unknown key", body: `pong_interval = "1s"`, wantSub: "unknown key"},
		{name: "parse error", body: `ping_interval = `, wantSub: "load session config"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := loadSessionConfig(writeSessionFile(t, tc.body))
			if err == nil {
				t.Fatalf("expected error")
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if tc.wantSub != "" && !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("expected %q in %v", tc.wantSub, err)
			}
		})
	}
}

func TestLoadSessionConfigFromGeneratedTemplate(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "session.toml")
	if err := config.WriteTemplate(path, "session", false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	cfg, err := loadSessionConfig(path)
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	if cfg.TypingInterval != 2500*time.Millisecond {
		t.Fatalf("unexpected typing interval: %v", cfg.TypingInterval)
	}
	if cfg.SecurityMode != session.SecurityModeProduction {
		t.Fatalf("unexpected security mode: %q", cfg.SecurityMode)
	}
}
