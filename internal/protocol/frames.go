// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package protocol implements the wire framing shared by the filereceiver
// and fileuploader binaries: a single header sent once per connection,
// followed by a raw byte payload, acknowledged with fixed-width offset
// tokens. All multi-byte integers are big-endian. There is no version byte
// and no integrity field on the wire; checksum verification is a test-time
// concern, not a protocol concern.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxFileNameLen is the largest name_len the header's 1-byte length field
// can express.
const MaxFileNameLen = 255

// AckSize is the width, in bytes, of an acknowledgement token.
const AckSize = 8

// MaxBytesNotAcknowledged is the threshold, in bytes, at which the receiver
// flushes the destination file and sends an acknowledgement.
const MaxBytesNotAcknowledged = 1 << 20 // 1 MiB

// ReadChunkSize is the size of each read the receiver performs on the
// socket while draining the payload.
const ReadChunkSize = 1024

// ErrFileNameTooLong is returned when a file name exceeds MaxFileNameLen
// bytes and therefore cannot be expressed in the 1-byte length field.
var ErrFileNameTooLong = errors.New("protocol: file name exceeds 255 bytes")

// ErrFileNameEmpty is returned when a file name has zero length.
var ErrFileNameEmpty = errors.New("protocol: file name must not be empty")

// Header is the frame sent by the uploader immediately after connecting.
//
// Wire layout:
//
//	name_len   1 byte
//	name       name_len bytes, UTF-8, not NUL-terminated
//	file_size  8 bytes, big-endian
//	offset     8 bytes, big-endian
type Header struct {
	FileName string
	FileSize uint64
	Offset   uint64
}

// WriteHeader writes h to w using a full-write helper so that short writes
// on a non-blocking or partially-congested socket never silently truncate
// the frame.
func WriteHeader(w io.Writer, h Header) error {
	nameLen := len(h.FileName)
	if nameLen == 0 {
		return ErrFileNameEmpty
	}
	if nameLen > MaxFileNameLen {
		return ErrFileNameTooLong
	}

	buf := make([]byte, 1+nameLen+8+8)
	buf[0] = byte(nameLen)
	copy(buf[1:1+nameLen], h.FileName)
	binary.BigEndian.PutUint64(buf[1+nameLen:1+nameLen+8], h.FileSize)
	binary.BigEndian.PutUint64(buf[1+nameLen+8:], h.Offset)

	if err := writeFull(w, buf); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	return nil
}

// ReadHeader reads and parses a Header. Any short read is treated as fatal
// to the session, per this protocol's contract: a header is either read in
// full or the connection is unusable.
func ReadHeader(r io.Reader) (Header, error) {
	var lenBuf [1]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Header{}, fmt.Errorf("reading name length: %w", err)
	}
	nameLen := int(lenBuf[0])
	if nameLen == 0 {
		return Header{}, ErrFileNameEmpty
	}

	nameBuf := make([]byte, nameLen)
	if _, err := io.ReadFull(r, nameBuf); err != nil {
		return Header{}, fmt.Errorf("reading name: %w", err)
	}

	var sizeBuf [8]byte
	if _, err := io.ReadFull(r, sizeBuf[:]); err != nil {
		return Header{}, fmt.Errorf("reading file size: %w", err)
	}

	var offsetBuf [8]byte
	if _, err := io.ReadFull(r, offsetBuf[:]); err != nil {
		return Header{}, fmt.Errorf("reading offset: %w", err)
	}

	return Header{
		FileName: string(nameBuf),
		FileSize: binary.BigEndian.Uint64(sizeBuf[:]),
		Offset:   binary.BigEndian.Uint64(offsetBuf[:]),
	}, nil
}

// WriteAck writes an 8-byte big-endian acknowledgement token: the absolute
// offset in the destination file durably written up to (but not including).
func WriteAck(w io.Writer, offset uint64) error {
	var buf [AckSize]byte
	binary.BigEndian.PutUint64(buf[:], offset)
	if err := writeFull(w, buf[:]); err != nil {
		return fmt.Errorf("writing ack: %w", err)
	}
	return nil
}

// ReadAck reads an 8-byte big-endian acknowledgement token from r. Callers
// on a non-blocking socket are expected to treat io errors whose Unwrap
// chain contains a would-block condition as "no ack yet" rather than fatal;
// this function does not itself interpret WouldBlock.
func ReadAck(r io.Reader) (uint64, error) {
	var buf [AckSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

// writeFull loops over Write until all of buf has been written or an error
// occurs, so short writes never truncate a frame.
func writeFull(w io.Writer, buf []byte) error {
	for len(buf) > 0 {
		n, err := w.Write(buf)
		if err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}
