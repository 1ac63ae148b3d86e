package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/ryverlive/internal/protocol/session"
)

// session.toml key mapping to live session settings.
type sessionFileConfig struct {
	HandshakeTimeout     string  `toml:"handshake_timeout"`
	WriteTimeout         string  `toml:"write_timeout"`
	PingInterval         string  `toml:"ping_interval"`
	PingTimeout          string  `toml:"ping_timeout"`
	AckTimeout           string  `toml:"ack_timeout"`
	TypingInterval       string  `toml:"typing_interval"`
	AutoReconnect        bool    `toml:"auto_reconnect"`
	ReconnectDelay       string  `toml:"reconnect_delay"`
	ReconnectMultiplier  float64 `toml:"reconnect_multiplier"`
	ReconnectMaxDelay    string  `toml:"reconnect_max_delay"`
	ReconnectJitter      bool    `toml:"reconnect_jitter"`
	MaxReconnectAttempts int     `toml:"max_reconnect_attempts"`
	Agent                string  `toml:"agent"`
	ResourcePrefix       string  `toml:"resource_prefix"`
	SecurityMode         string  `toml:"security_mode"`
	TLS                  struct {
		CAFile             string `toml:"ca_file"`
		CertFile           string `toml:"cert_file"`
		KeyFile            string `toml:"key_file"`
		ServerName         string `toml:"server_name"`
		InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
	} `toml:"tls"`
}

// A long-running bot reconnects by default.
func defaultSessionConfig() session.Config {
	cfg := session.DefaultConfig()
	cfg.AutoReconnect = true
	return cfg
}

// loadSessionConfig overlays the keys present in path onto the defaults.
// An empty path yields the defaults.
func loadSessionConfig(path string) (session.Config, error) {
	cfg := defaultSessionConfig()
	if strings.TrimSpace(path) == "" {
		return cfg.WithDefaults(), nil
	}

	var raw sessionFileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return session.Config{}, fmt.Errorf("load session config: %w", err)
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"handshake_timeout", raw.HandshakeTimeout, &cfg.HandshakeTimeout},
		{"write_timeout", raw.WriteTimeout, &cfg.WriteTimeout},
		{"ping_interval", raw.PingInterval, &cfg.PingInterval},
		{"ping_timeout", raw.PingTimeout, &cfg.PingTimeout},
		{"ack_timeout", raw.AckTimeout, &cfg.AckTimeout},
		{"typing_interval", raw.TypingInterval, &cfg.TypingInterval},
		{"reconnect_delay", raw.ReconnectDelay, &cfg.Backoff.InitialDelay},
		{"reconnect_max_delay", raw.ReconnectMaxDelay, &cfg.Backoff.MaxDelay},
	}
	for _, d := range durations {
		if err := setDuration(meta, d.key, d.raw, d.dst); err != nil {
			return session.Config{}, err
		}
	}
	if meta.IsDefined("reconnect_delay") && !meta.IsDefined("reconnect_max_delay") &&
		cfg.Backoff.InitialDelay > cfg.Backoff.MaxDelay {
		cfg.Backoff.MaxDelay = cfg.Backoff.InitialDelay
	}

	if meta.IsDefined("auto_reconnect") {
		cfg.AutoReconnect = raw.AutoReconnect
	}
	if meta.IsDefined("reconnect_multiplier") {
		if raw.ReconnectMultiplier < 1 {
			return session.Config{}, fmt.Errorf("load session config: reconnect_multiplier must be >= 1, got %v", raw.ReconnectMultiplier)
		}
		cfg.Backoff.Multiplier = raw.ReconnectMultiplier
	}
	if meta.IsDefined("reconnect_jitter") {
		cfg.Backoff.Jitter = raw.ReconnectJitter
	}
	if meta.IsDefined("max_reconnect_attempts") {
		if raw.MaxReconnectAttempts < 0 {
			return session.Config{}, fmt.Errorf("load session config: max_reconnect_attempts must be >= 0")
		}
		cfg.MaxReconnectAttempts = raw.MaxReconnectAttempts
	}
	if meta.IsDefined("agent") {
		cfg.Agent = strings.TrimSpace(raw.Agent)
	}
	if meta.IsDefined("resource_prefix") {
		cfg.ResourcePrefix = strings.TrimSpace(raw.ResourcePrefix)
	}
	if meta.IsDefined("security_mode") {
		mode := session.NormalizeSecurityMode(session.SecurityMode(raw.SecurityMode))
		if mode != session.SecurityModeDevelopment && mode != session.SecurityModeProduction {
			return session.Config{}, fmt.Errorf("load session config: %w: %q", session.ErrInvalidSecurityMode, raw.SecurityMode)
		}
		cfg.SecurityMode = mode
	}
	if meta.IsDefined("tls", "ca_file") {
		cfg.TLS.CAFile = strings.TrimSpace(raw.TLS.CAFile)
	}
	if meta.IsDefined("tls", "cert_file") {
		cfg.TLS.CertFile = strings.TrimSpace(raw.TLS.CertFile)
	}
	if meta.IsDefined("tls", "key_file") {
		cfg.TLS.KeyFile = strings.TrimSpace(raw.TLS.KeyFile)
	}
	if meta.IsDefined("tls", "server_name") {
		cfg.TLS.ServerName = strings.TrimSpace(raw.TLS.ServerName)
	}
	if meta.IsDefined("tls", "insecure_skip_verify") {
		cfg.TLS.InsecureSkipVerify = raw.TLS.InsecureSkipVerify
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return session.Config{}, fmt.Errorf("load session config: unknown key %q", undecoded[0].String())
	}
	return cfg.WithDefaults(), nil
}

func setDuration(meta toml.MetaData, key, raw string, dst *time.Duration) error {
	if !meta.IsDefined(key) {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("load session config: %s: %w", key, err)
	}
	if d <= 0 {
		return fmt.Errorf("load session config: %s must be positive", key)
	}
	*dst = d
	return nil
}
