// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package protocol

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestHeader_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		h    Header
	}{
		{"fresh upload", Header{FileName: "report.pdf", FileSize: 4096, Offset: 0}},
		{"resumed upload", Header{FileName: "video.mp4", FileSize: 1 << 30, Offset: 1 << 20}},
		{"single byte name", Header{FileName: "a", FileSize: 1, Offset: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteHeader(&buf, tt.h); err != nil {
				t.Fatalf("WriteHeader: %v", err)
			}

			got, err := ReadHeader(&buf)
			if err != nil {
				t.Fatalf("ReadHeader: %v", err)
			}
			if got != tt.h {
				t.Errorf("got %+v, want %+v", got, tt.h)
			}
		})
	}
}

func TestHeader_MaxNameLength(t *testing.T) {
	name := strings.Repeat("x", MaxFileNameLen)
	var buf bytes.Buffer
	if err := WriteHeader(&buf, Header{FileName: name, FileSize: 10, Offset: 0}); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	got, err := ReadHeader(&buf)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if got.FileName != name {
		t.Errorf("name mismatch: got len %d, want %d", len(got.FileName), len(name))
	}
}

func TestHeader_NameTooLong(t *testing.T) {
	name := strings.Repeat("x", MaxFileNameLen+1)
	var buf bytes.Buffer
	err := WriteHeader(&buf, Header{FileName: name, FileSize: 1, Offset: 0})
	if !errors.Is(err, ErrFileNameTooLong) {
		t.Fatalf("expected ErrFileNameTooLong, got %v", err)
	}
}

func TestHeader_EmptyName(t *testing.T) {
	var buf bytes.Buffer
	err := WriteHeader(&buf, Header{FileName: "", FileSize: 1, Offset: 0})
	if !errors.Is(err, ErrFileNameEmpty) {
		t.Fatalf("expected ErrFileNameEmpty, got %v", err)
	}
}

func TestReadHeader_ShortRead(t *testing.T) {
	// A valid header truncated partway through the name field.
	full := bytes.Buffer{}
	if err := WriteHeader(&full, Header{FileName: "truncated.bin", FileSize: 100, Offset: 0}); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	truncated := bytes.NewReader(full.Bytes()[:5])

	_, err := ReadHeader(truncated)
	if err == nil {
		t.Fatal("expected error on short read, got nil")
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		t.Errorf("expected an EOF-flavored error, got %v", err)
	}
}

func TestAck_RoundTrip(t *testing.T) {
	offsets := []uint64{0, 1, 1 << 20, 1<<63 - 1}
	for _, offset := range offsets {
		var buf bytes.Buffer
		if err := WriteAck(&buf, offset); err != nil {
			t.Fatalf("WriteAck(%d): %v", offset, err)
		}
		got, err := ReadAck(&buf)
		if err != nil {
			t.Fatalf("ReadAck(%d): %v", offset, err)
		}
		if got != offset {
			t.Errorf("got %d, want %d", got, offset)
		}
	}
}

func TestAck_WireSize(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAck(&buf, 12345); err != nil {
		t.Fatalf("WriteAck: %v", err)
	}
	if buf.Len() != AckSize {
		t.Errorf("expected %d bytes on the wire, got %d", AckSize, buf.Len())
	}
}

// shortWriter forces WriteHeader to exercise its write-full loop by only
// ever accepting a handful of bytes per call.
type shortWriter struct {
	buf      bytes.Buffer
	maxChunk int
}

func (s *shortWriter) Write(p []byte) (int, error) {
	n := len(p)
	if n > s.maxChunk {
		n = s.maxChunk
	}
	return s.buf.Write(p[:n])
}

func TestWriteHeader_LoopsOnShortWrites(t *testing.T) {
	sw := &shortWriter{maxChunk: 3}
	h := Header{FileName: "chunked-write-test.bin", FileSize: 999, Offset: 42}
	if err := WriteHeader(sw, h); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}

	got, err := ReadHeader(&sw.buf)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if got != h {
		t.Errorf("got %+v, want %+v", got, h)
	}
}
