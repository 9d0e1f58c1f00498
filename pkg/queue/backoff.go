package queue

import (
	"math"
	"time"
)

const (
	defaultBackoffBase   = 5 * time.Second
	defaultBackoffFactor = 2.0
)

// Backoff exponential delay between attempts of one job
type Backoff struct {
	Base   time.Duration
	Factor float64
	Max    time.Duration
}

// Delay wait before the next attempt once attemptsMade attempts have failed: Base * Factor^(attemptsMade-1)
func (b Backoff) Delay(attemptsMade int) time.Duration {
	base := b.Base
	if base <= 0 {
		base = defaultBackoffBase
	}
	factor := b.Factor
	if factor < 1 {
		factor = defaultBackoffFactor
	}
	if attemptsMade < 1 {
		attemptsMade = 1
	}

	d := float64(base) * math.Pow(factor, float64(attemptsMade-1))
	if b.Max > 0 && d > float64(b.Max) {
		return b.Max
	}
	if d > float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}
