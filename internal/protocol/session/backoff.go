package session

import (
	"math"
	"math/rand"
	"time"
)

// NextBackoffDelay returns the retry delay for attempt N (1-based). With
// jitter the delay is scaled into [0.5, 1.5) of the computed value.
func NextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if cfg.InitialDelay <= 0 {
		return 0
	}
	if cfg.Multiplier < 1.0 {
		cfg.Multiplier = 1.0
	}
	if attempt < 1 {
		attempt = 1
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

// Remaining returns the time left before deadline, never below zero. A zero
// deadline means no bound and reports ok=false.
func Remaining(deadline time.Time, now time.Time) (time.Duration, bool) {
	if deadline.IsZero() {
		return 0, false
	}
	left := deadline.Sub(now)
	if left < 0 {
		left = 0
	}
	return left, true
}
