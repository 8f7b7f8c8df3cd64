package stream

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Reconnect backoff bounds.
const (
	ReconnectInterval   = 2 * time.Second
	ReconnectJitter     = 0.5 // 1s..3s
	MaxReconnectBackoff = 60 * time.Second
)

// NewReconnectBackoff returns a backoff yielding a random delay in [1s, 3s],
// capped at MaxReconnectBackoff, that never gives up.
func NewReconnectBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = ReconnectInterval
	b.RandomizationFactor = ReconnectJitter
	b.Multiplier = 1
	b.MaxInterval = MaxReconnectBackoff
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}
