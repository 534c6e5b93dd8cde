// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package receiver implements the file-receiving side of the transfer
// protocol: it binds a loopback TCP port, accepts one connection at a
// time, parses the wire header, writes the payload to a destination file
// at the requested offset, and periodically acknowledges durable progress.
package receiver

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/nishisan-dev/filestreamer/internal/protocol"
)

// pollInterval is how often the accept loop rechecks the control state
// while no connection is pending, matching spec.md §4.4's 200ms poll tick.
const pollInterval = 200 * time.Millisecond

// Receiver accepts file-upload connections on a fixed loopback port, one at
// a time, for the lifetime of the process.
type Receiver struct {
	port    uint16
	logger  *slog.Logger
	control *control
	addrCh  chan string
}

// New creates a Receiver bound to 127.0.0.1:port. The Receiver does not
// start listening until Start is called. port 0 lets the OS pick an
// ephemeral port, useful in tests; call Addr after starting Start in a
// goroutine to learn which one was chosen.
func New(port uint16, logger *slog.Logger) *Receiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Receiver{
		port:    port,
		logger:  logger,
		control: newControl(),
		addrCh:  make(chan string, 1),
	}
}

// Addr blocks until the listener has bound and returns its address
// ("127.0.0.1:PORT"). Intended for tests that start the Receiver on port 0.
func (r *Receiver) Addr() string {
	addr := <-r.addrCh
	r.addrCh <- addr
	return addr
}

// Start binds the listener, transitions the control state to Run, and
// polls Accept until the control state is set to Stop or StopNow by
// another goroutine. On a clean Stop/StopNow it returns nil; a fatal
// socket error returns a non-nil error.
func (r *Receiver) Start() error {
	addr := fmt.Sprintf("127.0.0.1:%d", r.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding %s: %w", addr, err)
	}
	defer ln.Close()

	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		return fmt.Errorf("listener for %s is not a TCP listener", addr)
	}

	r.addrCh <- tcpLn.Addr().String()
	r.control.set(stateRun)
	r.logger.Info("listening for file upload requests", "port", r.port)

	for {
		if r.control.get() != stateRun {
			r.logger.Info("accept loop stopping", "reason", "control state left Run")
			return nil
		}

		// SetDeadline followed by a bounded Accept is this codebase's
		// equivalent of the original's non-blocking listener plus 200ms
		// sleep-and-recheck: Accept blocks at most pollInterval before
		// returning a timeout, at which point the control state is
		// rechecked.
		if err := tcpLn.SetDeadline(time.Now().Add(pollInterval)); err != nil {
			return fmt.Errorf("setting accept deadline: %w", err)
		}

		conn, err := tcpLn.Accept()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return fmt.Errorf("accepting connection: %w", err)
		}

		r.handleConnection(conn)
	}
}

// Stop requests a graceful shutdown: the active transfer (if any) finishes,
// then the accept loop exits on its next poll.
func (r *Receiver) Stop() {
	r.control.set(stateStop)
}

// StopNow requests an abrupt shutdown: the active transfer's inner read
// loop exits on its next iteration without a final acknowledgement, and
// the accept loop then exits.
func (r *Receiver) StopNow() {
	r.control.set(stateStopNow)
}

// handleConnection runs the inner transfer loop for one accepted
// connection synchronously, so the Receiver handles at most one transfer
// at a time.
func (r *Receiver) handleConnection(conn net.Conn) {
	defer conn.Close()

	peer := conn.RemoteAddr()
	r.logger.Info("handling new request", "peer", peer)

	// The transfer itself has no per-operation timeout in this protocol;
	// clear any deadline inherited from the listener's Accept polling.
	if err := conn.SetDeadline(time.Time{}); err != nil {
		r.logger.Error("clearing connection deadline", "error", err)
		return
	}

	header, err := protocol.ReadHeader(conn)
	if err != nil {
		r.logger.Error("reading header", "error", err)
		return
	}

	destName := destinationFilename(header.FileName)
	r.logger.Info("receiving file",
		"name", header.FileName,
		"size", header.FileSize,
		"offset", header.Offset,
	)

	file, err := os.OpenFile(destName, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		r.logger.Error("opening destination file", "error", err, "dest", destName)
		return
	}
	defer file.Close()

	if _, err := file.Seek(int64(header.Offset), io.SeekStart); err != nil {
		r.logger.Error("seeking destination file", "error", err)
		return
	}

	r.runTransfer(conn, file, header)
}

// runTransfer drains the socket payload into file, acknowledging progress
// per spec.md §4.1, until EOF, a fatal write error, or StopNow.
func (r *Receiver) runTransfer(conn net.Conn, file *os.File, header protocol.Header) {
	var (
		bytesReceived        uint64
		bytesNotAcknowledged uint64
		buf                  [protocol.ReadChunkSize]byte
	)

	for {
		if r.control.get() == stateStopNow {
			r.logger.Info("stopping now: aborting in-flight transfer without final ack")
			return
		}

		// Bound each read by pollInterval so the control state is rechecked
		// even while the peer sends nothing; a timeout just retries the read.
		if err := conn.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
			r.logger.Error("setting read deadline", "error", err)
			return
		}

		n, err := conn.Read(buf[:])
		if n > 0 {
			if _, werr := file.Write(buf[:n]); werr != nil {
				r.logger.Error("writing to destination file", "error", werr)
				return
			}

			bytesReceived += uint64(n)
			bytesNotAcknowledged += uint64(n)

			final := header.Offset+bytesReceived == header.FileSize
			if bytesNotAcknowledged >= protocol.MaxBytesNotAcknowledged || final {
				if ferr := file.Sync(); ferr != nil {
					r.logger.Error("flushing destination file", "error", ferr)
					return
				}

				ackOffset := header.Offset + bytesReceived
				if aerr := protocol.WriteAck(conn, ackOffset); aerr != nil {
					r.logger.Warn("failed to send acknowledgement, will retry at next threshold",
						"error", aerr, "offset", ackOffset)
				} else {
					bytesNotAcknowledged = 0
				}
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				r.logger.Info("file transfer completed", "bytes_received", bytesReceived)
				return
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			r.logger.Warn("error reading from stream, continuing", "error", err)
			continue
		}

		if n == 0 {
			r.logger.Info("file transfer completed", "bytes_received", bytesReceived)
			return
		}
	}
}
