package session

import (
	"math"
	"math/rand/v2"
	"time"
)

// NextBackoffDelay returns the reconnect delay for attempt N (1-based).
// With Multiplier 1 and no jitter (the default) every attempt waits the same
// fixed InitialDelay.
func NextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if cfg.InitialDelay <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	if cfg.Multiplier < 1.0 {
		cfg.Multiplier = 1.0
	}
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter {
		f := 0.5
		if rng != nil {
			f = 0.5 + rng.Float64()
		}
		delay = delay * f
	}
	return time.Duration(delay)
}

// Fixed reports whether every attempt waits the same delay.
func (cfg BackoffConfig) Fixed() bool {
	return !cfg.Jitter && cfg.Multiplier <= 1.0
}
