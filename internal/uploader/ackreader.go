// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package uploader

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nishisan-dev/filestreamer/internal/protocol"
)

// ackReadRetryDelay is how long the acknowledgement reader backs off after
// a read error before retrying, so a reconnect-in-progress (where the old
// connection has just been closed and the new one is momentarily absent)
// doesn't spin the goroutine hot.
const ackReadRetryDelay = 20 * time.Millisecond

// connState lets the acknowledgement-reader goroutine observe connection
// swaps performed by the writer goroutine during a resume, mirroring how
// ratelimit.Writer.ReplaceSink lets the rate limiter survive a reconnect.
type connState struct {
	mu   sync.Mutex
	conn net.Conn
}

func newConnState(conn net.Conn) *connState {
	return &connState{conn: conn}
}

func (c *connState) get() net.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *connState) replace(conn net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
}

// readAcknowledgements runs on its own goroutine for the lifetime of an
// Upload call, continuously reading 8-byte acknowledgement tokens off the
// current connection and publishing the highest one seen. A read error
// (including the old connection closing mid-resume) is logged and
// retried — it is never fatal to the upload, per spec.md §7's "failure
// read non-WouldBlock: logged, loop continues" policy, generalized to a
// blocking reader.
func readAcknowledgements(ctx context.Context, state *connState, acknowledged *atomic.Uint64, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn := state.get()
		offset, err := protocol.ReadAck(conn)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("reading acknowledgement failed, retrying", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(ackReadRetryDelay):
			}
			continue
		}

		storeIfGreater(acknowledged, offset)
	}
}

// storeIfGreater enforces the uploader-side invariant that
// bytes_acknowledged only ever advances: a spurious or stale acknowledgement
// reporting a lower offset than already observed is ignored.
func storeIfGreater(acknowledged *atomic.Uint64, offset uint64) {
	for {
		current := acknowledged.Load()
		if offset <= current {
			return
		}
		if acknowledged.CompareAndSwap(current, offset) {
			return
		}
	}
}
