// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package ratelimit implements a blocking token-bucket rate limiter and an
// io.Writer that gates writes through it. The bucket is deliberately not
// golang.org/x/time/rate: the contract this system needs — reserving n
// tokens sleeps for exactly ceil(missing)/rate seconds, and reserving more
// than capacity is a fatal programming error — is simpler than, and
// incompatible with, rate.Limiter's smoothed reservation model.
package ratelimit

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// TokenBucket is a classic token bucket: capacity equals rate (one second
// of bandwidth may be saved up), refilled continuously at rate tokens per
// second.
type TokenBucket struct {
	mu               sync.Mutex
	rate             float64
	capacity         float64
	availableTokens  float64
	lastRefill       time.Time
	now              func() time.Time
	sleep            func(time.Duration)
}

// NewTokenBucket creates a bucket refilled at rate tokens/sec, with
// capacity equal to rate (one second's worth of tokens). rate must be
// positive; a zero or negative rate indicates rate limiting is disabled and
// should be represented by a nil *TokenBucket at the call site instead of
// constructing one here.
func NewTokenBucket(rate float64) *TokenBucket {
	if rate <= 0 {
		panic("ratelimit: rate must be positive")
	}
	return &TokenBucket{
		rate:            rate,
		capacity:        rate,
		availableTokens: 0,
		lastRefill:      time.Now(),
		now:             time.Now,
		sleep:           time.Sleep,
	}
}

// Reserve blocks until n tokens are available, then subtracts them.
//
// Precondition: n must not exceed capacity; violating it is a fatal
// programming error and Reserve panics, matching the original
// implementation's panic! on the same precondition.
func (b *TokenBucket) Reserve(n float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n > b.capacity {
		panic(fmt.Sprintf("ratelimit: requested %v tokens exceeds capacity %v", n, b.capacity))
	}

	b.refillLocked()

	if b.availableTokens < n {
		missing := n - b.availableTokens
		waitSeconds := math.Ceil(missing) / b.rate
		b.mu.Unlock()
		b.sleep(time.Duration(waitSeconds * float64(time.Second)))
		b.mu.Lock()
		b.refillLocked()
	}

	b.availableTokens -= n
	if b.availableTokens < 0 {
		b.availableTokens = 0
	}
}

// refillLocked advances availableTokens by the elapsed time since the last
// refill, capped at capacity. Caller must hold b.mu.
func (b *TokenBucket) refillLocked() {
	current := b.now()
	elapsed := current.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.availableTokens = math.Min(b.availableTokens+elapsed*b.rate, b.capacity)
	}
	b.lastRefill = current
}
