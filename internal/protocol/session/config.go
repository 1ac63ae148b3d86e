package session

import "time"

// BackoffConfig defines retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// SecurityMode selects how strictly chat endpoints are validated.
type SecurityMode string

const (
	SecurityModeDevelopment SecurityMode = "development"
	SecurityModeProduction  SecurityMode = "production"
)

// TLSConfig is the client-side TLS material for wss endpoints.
type TLSConfig struct {
	CAFile             string
	CertFile           string
	KeyFile            string
	ServerName         string
	InsecureSkipVerify bool
}

// Config defines live session timing and reconnect behavior.
type Config struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration

	// The remote keepalive expectations are tuned around these values.
	PingInterval time.Duration
	PingTimeout  time.Duration
	AckTimeout   time.Duration

	// Typing indicators expire remotely after about 3s.
	TypingInterval time.Duration

	AutoReconnect        bool
	MaxReconnectAttempts int
	Backoff              BackoffConfig

	Agent          string
	ResourcePrefix string

	SecurityMode SecurityMode
	TLS          TLSConfig
}

// DefaultConfig returns defaults matching the reference web client.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 15 * time.Second,
		WriteTimeout:     10 * time.Second,
		PingInterval:     10 * time.Second,
		PingTimeout:      5 * time.Second,
		AckTimeout:       5 * time.Second,
		TypingInterval:   2500 * time.Millisecond,
		AutoReconnect:    false,
		Backoff: BackoffConfig{
			InitialDelay: 5 * time.Second,
			Multiplier:   1.0,
			MaxDelay:     5 * time.Second,
			Jitter:       false,
		},
		Agent:          "Ryver",
		ResourcePrefix: "Contatta-",
		SecurityMode:   SecurityModeDevelopment,
	}
}

// WithDefaults fills zero values from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = def.PingInterval
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = def.PingTimeout
	}
	if c.AckTimeout <= 0 {
		c.AckTimeout = def.AckTimeout
	}
	if c.TypingInterval <= 0 {
		c.TypingInterval = def.TypingInterval
	}
	if c.Backoff.InitialDelay <= 0 {
		c.Backoff = def.Backoff
	}
	if c.Agent == "" {
		c.Agent = def.Agent
	}
	if c.ResourcePrefix == "" {
		c.ResourcePrefix = def.ResourcePrefix
	}
	c.SecurityMode = NormalizeSecurityMode(c.SecurityMode)
	return c
}
