package transport

import (
	"context"
	"sync"

	"github.com/btcmesh/relay/internal/ratelimit"
)

// RateLimited wraps an InboundHandler with a per-sender token bucket so
// that one misbehaving or malfunctioning mesh node cannot starve other
// sessions' share of CPU by flooding the relay with chunk traffic. This
// is defensive hardening, not part of the wire protocol itself: a
// throttled message is simply dropped, exactly like a message lost by the
// mesh radio, which the protocol already tolerates via retransmission.
func RateLimited(next InboundHandler, ratePerSecond float64, burst int) InboundHandler {
	rl := &perSenderLimiter{
		rate:  ratePerSecond,
		burst: burst,
		limit: make(map[string]*ratelimit.TokenBucket),
	}
	return func(ctx context.Context, sender, text string) {
		if !rl.allow(sender) {
			return
		}
		next(ctx, sender, text)
	}
}

type perSenderLimiter struct {
	mu    sync.Mutex
	rate  float64
	burst int
	limit map[string]*ratelimit.TokenBucket
}

func (l *perSenderLimiter) allow(sender string) bool {
	l.mu.Lock()
	b, ok := l.limit[sender]
	if !ok {
		b = ratelimit.NewTokenBucket(l.rate, l.burst)
		l.limit[sender] = b
	}
	l.mu.Unlock()
	return b.Allow(1)
}
