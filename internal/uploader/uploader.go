// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package uploader implements the file-sending side of the transfer
// protocol: it connects to a receiver, streams a local file's bytes
// through a rate-limited writer, and reconnects and resumes from the last
// acknowledged offset whenever the connection breaks.
//
// Unlike the reference implementation's non-blocking-socket-plus-busy-spin
// design, acknowledgements are read on a dedicated goroutine so the main
// writer never has to interleave non-blocking reads with writes. This is
// the re-architecture spec.md §9's design notes call out as preferable: it
// keeps acknowledgement reads from starving outgoing writes, while
// preserving the resume behavior on ConnectionReset/BrokenPipe.
package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/nishisan-dev/filestreamer/internal/protocol"
	"github.com/nishisan-dev/filestreamer/internal/ratelimit"
)

// connectRetryDelay is how long to wait between connection attempts after
// a connection-refused error, per spec.md §4.5 step 1.
const connectRetryDelay = 1 * time.Second

// drainPollInterval is how often the drain phase rechecks the
// acknowledged offset once the local file has been fully read.
const drainPollInterval = 10 * time.Millisecond

// Stats summarizes a completed upload.
type Stats struct {
	BytesTransferred   uint64
	Elapsed            time.Duration
	AverageBytesPerSec float64
}

// Upload streams path to host:port. rateLimit is in bytes/sec; 0 disables
// rate limiting. progress, if non-nil, is fed byte and resume counts as the
// transfer proceeds; its lifecycle (including Stop) is the caller's
// responsibility. Upload blocks until the receiver has acknowledged every
// byte of the file, reconnecting and resuming as many times as needed.
func Upload(ctx context.Context, host string, port uint16, path string, rateLimit int64, logger *slog.Logger, progress *ProgressReporter) (*Stats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stating %s: %w", path, err)
	}
	fileSize := uint64(info.Size())

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	conn, err := dialWithRetry(ctx, addr, logger)
	if err != nil {
		return nil, err
	}
	// conn tracks whichever connection is currently live; it is reassigned
	// on every resume, so this defer always closes the last one standing.
	defer func() { conn.Close() }()

	var bucket *ratelimit.TokenBucket
	if rateLimit > 0 {
		bucket = ratelimit.NewTokenBucket(float64(rateLimit))
	}
	rlw := ratelimit.NewWriter(conn, bucket)

	fileName := fileNameForWire(path)
	if err := protocol.WriteHeader(rlw, protocol.Header{
		FileName: fileName,
		FileSize: fileSize,
		Offset:   0,
	}); err != nil {
		return nil, fmt.Errorf("sending header: %w", err)
	}

	var bytesAcknowledged atomic.Uint64
	connState := newConnState(conn)

	ackCtx, stopAckReader := context.WithCancel(ctx)
	defer stopAckReader()
	go readAcknowledgements(ackCtx, connState, &bytesAcknowledged, logger)

	bufSize := 1024
	if rateLimit > 0 && rateLimit < 1024 {
		bufSize = int(rateLimit)
	}
	buf := make([]byte, bufSize)

	start := time.Now()
	var totalBytesSent uint64

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		n, readErr := file.Read(buf)
		if n == 0 {
			if readErr == io.EOF || readErr == nil {
				break
			}
			return nil, fmt.Errorf("reading %s: %w", path, readErr)
		}

		if writeErr := fullWrite(rlw, buf[:n]); writeErr != nil {
			if isResetOrBrokenPipe(writeErr) {
				logger.Warn("connection reset, resuming from last acknowledged offset", "error", writeErr)

				ackOffset := bytesAcknowledged.Load()
				if _, err := file.Seek(int64(ackOffset), io.SeekStart); err != nil {
					return nil, fmt.Errorf("seeking to resume offset %d: %w", ackOffset, err)
				}

				newConn, err := dialWithRetry(ctx, addr, logger)
				if err != nil {
					return nil, err
				}

				rlw.ReplaceSink(newConn)
				connState.replace(newConn)

				if err := protocol.WriteHeader(rlw, protocol.Header{
					FileName: fileName,
					FileSize: fileSize,
					Offset:   ackOffset,
				}); err != nil {
					newConn.Close()
					return nil, fmt.Errorf("sending resume header: %w", err)
				}

				// The old connection is already broken; close it explicitly
				// to release its file descriptor now that the new one is
				// confirmed live, rather than waiting for the top-level defer.
				conn.Close()
				conn = newConn

				logger.Info("resumed upload", "offset", ackOffset)
				if progress != nil {
					progress.AddResume()
				}
				continue
			}
			return nil, fmt.Errorf("writing payload: %w", writeErr)
		}

		totalBytesSent += uint64(n)
		if progress != nil {
			progress.AddBytes(int64(n))
		}

		if readErr != nil && readErr != io.EOF {
			return nil, fmt.Errorf("reading %s: %w", path, readErr)
		}
		if readErr == io.EOF {
			break
		}
	}

	// Drain phase: guarantee every byte the receiver has is durable before
	// returning to the caller.
	for bytesAcknowledged.Load() != fileSize {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(drainPollInterval):
		}
	}

	elapsed := time.Since(start)
	stats := &Stats{
		BytesTransferred: totalBytesSent,
		Elapsed:          elapsed,
	}
	if elapsed > 0 {
		stats.AverageBytesPerSec = float64(totalBytesSent) / elapsed.Seconds()
	}

	logger.Info("upload complete",
		"bytes", stats.BytesTransferred,
		"elapsed_seconds", stats.Elapsed.Seconds(),
		"average_bytes_per_sec", stats.AverageBytesPerSec,
	)

	return stats, nil
}

// fileNameForWire strips any directory components from path, since only
// the base name travels in the header.
func fileNameForWire(path string) string {
	return filepath.Base(path)
}

// dialWithRetry connects to addr, retrying indefinitely on connection
// refused (per spec.md §4.5 step 1). Any other dial error is fatal.
func dialWithRetry(ctx context.Context, addr string, logger *slog.Logger) (net.Conn, error) {
	for {
		conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn, nil
		}
		if errors.Is(err, syscall.ECONNREFUSED) {
			logger.Warn("connection refused, retrying", "address", addr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(connectRetryDelay):
			}
			continue
		}
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
}

// fullWrite writes the entirety of buf through w. Because io.Writer's
// contract guarantees n==len(p) whenever err==nil, a single call suffices
// for any well-behaved writer; this loop only protects against writers
// that don't honor that contract.
func fullWrite(w io.Writer, buf []byte) error {
	for len(buf) > 0 {
		n, err := w.Write(buf)
		if err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}

// isResetOrBrokenPipe reports whether err represents the connection
// breaking out from under the uploader, the trigger for the resume path.
func isResetOrBrokenPipe(err error) bool {
	return errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) || errors.Is(err, net.ErrClosed)
}
