// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package ratelimit

import (
	"bytes"
	"testing"
	"time"
)

func TestWriter_BypassesWhenBucketNil(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, nil)

	n, err := w.Write([]byte("hello"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != 5 || buf.String() != "hello" {
		t.Errorf("got n=%d buf=%q", n, buf.String())
	}
}

func TestWriter_PanicsWhenWriteExceedsCapacity(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic when writing more bytes than the bucket's capacity")
		}
	}()

	var buf bytes.Buffer
	b, _ := newTestBucket(4.0, time.Now()) // capacity 4 bytes
	w := NewWriter(&buf, b)

	w.Write(make([]byte, 10))
}

func TestWriter_ReplaceSinkPreservesBucket(t *testing.T) {
	var first, second bytes.Buffer
	b := NewTokenBucket(1000)
	w := NewWriter(&first, b)

	if _, err := w.Write([]byte("before")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	w.ReplaceSink(&second)

	if _, err := w.Write([]byte("after")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if first.String() != "before" {
		t.Errorf("first sink: got %q, want %q", first.String(), "before")
	}
	if second.String() != "after" {
		t.Errorf("second sink: got %q, want %q", second.String(), "after")
	}
}
