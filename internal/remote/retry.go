package remote

import (
	"math"
	"math/rand"
	"time"
)

// Retryer decides how long a dropped listener waits before redialing.
// attempt is 0 for the first redial. Returning false gives up.
type Retryer interface {
	NextDelay(attempt int, lastErr error) (time.Duration, bool)
}

// ExponentialBackoff grows the delay by Multiplier per attempt up to MaxDelay,
// with up to JitterFactor of random spread. MaxRetries 0 retries forever.
type ExponentialBackoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64
	MaxRetries   int
}

func NewExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
		JitterFactor: 0.2,
	}
}

func (b *ExponentialBackoff) NextDelay(attempt int, _ error) (time.Duration, bool) {
	if b.MaxRetries > 0 && attempt >= b.MaxRetries {
		return 0, false
	}
	delay := float64(b.InitialDelay) * math.Pow(b.Multiplier, float64(attempt))
	if delay > float64(b.MaxDelay) {
		delay = float64(b.MaxDelay)
	}
	if b.JitterFactor > 0 {
		//nolint:gosec // jitter only
		delay += delay * b.JitterFactor * (2*rand.Float64() - 1)
	}
	if delay < 0 {
		delay = float64(b.InitialDelay)
	}
	return time.Duration(delay), true
}
