// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package uploader

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

// ProgressReporter renders a terminal progress bar for a single upload:
// bytes sent, throughput, elapsed time, ETA, and the number of times the
// transfer has resumed after a dropped connection.
type ProgressReporter struct {
	name string

	bytesWritten atomic.Int64
	resumes      atomic.Int32

	totalBytes int64

	startTime time.Time
	done      chan struct{}
}

// NewProgressReporter creates a reporter for a file of the given size and
// starts its render ticker. totalBytes of 0 renders a spinner instead of a
// percentage bar.
func NewProgressReporter(name string, totalBytes int64) *ProgressReporter {
	p := &ProgressReporter{
		name:       name,
		totalBytes: totalBytes,
		startTime:  time.Now(),
		done:       make(chan struct{}),
	}
	go p.renderLoop()
	return p
}

// AddBytes records bytes the uploader has sent on the wire.
func (p *ProgressReporter) AddBytes(n int64) {
	p.bytesWritten.Add(n)
}

// AddResume records a reconnect-and-resume after a dropped connection.
func (p *ProgressReporter) AddResume() {
	p.resumes.Add(1)
}

// Stop halts the ticker and prints the final line.
func (p *ProgressReporter) Stop() {
	close(p.done)
	p.render(true)
}

func (p *ProgressReporter) renderLoop() {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.render(false)
		}
	}
}

func (p *ProgressReporter) render(final bool) {
	bytes := p.bytesWritten.Load()
	resumes := p.resumes.Load()
	elapsed := time.Since(p.startTime)

	var speed float64
	if elapsedSec := elapsed.Seconds(); elapsedSec > 0.1 {
		speed = float64(bytes) / elapsedSec
	}

	const barWidth = 30
	var bar string
	var pct float64
	if p.totalBytes > 0 {
		pct = float64(bytes) / float64(p.totalBytes)
		if pct > 1.0 {
			pct = 1.0
		}
		filled := int(pct * float64(barWidth))
		if filled > barWidth {
			filled = barWidth
		}
		bar = strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
	} else {
		pos := int(elapsed.Seconds()*2) % barWidth
		bar = strings.Repeat("░", pos) + "█" + strings.Repeat("░", barWidth-pos-1)
	}

	eta := "∞"
	if p.totalBytes > 0 && speed > 0 && bytes > 0 {
		remaining := float64(p.totalBytes) - float64(bytes)
		if remaining < 0 {
			remaining = 0
		}
		eta = formatDuration(time.Duration(remaining / speed * float64(time.Second)))
	}

	resumesStr := ""
	if resumes > 0 {
		resumesStr = fmt.Sprintf("  │  resumes: %d", resumes)
	}

	line := fmt.Sprintf("\r[%s] %s  %s  │  %s/s  │  %s  │  ETA %s%s",
		p.name, bar, formatBytes(bytes), formatBytes(int64(speed)),
		formatDuration(elapsed), eta, resumesStr,
	)

	if len(line) < 100 {
		line += strings.Repeat(" ", 100-len(line))
	}

	if final {
		fmt.Fprintf(os.Stderr, "%s\n", line)
	} else {
		fmt.Fprint(os.Stderr, line)
	}
}

func formatBytes(b int64) string {
	switch {
	case b >= 1024*1024*1024:
		return fmt.Sprintf("%.1f GB", float64(b)/(1024*1024*1024))
	case b >= 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(b)/(1024*1024))
	case b >= 1024:
		return fmt.Sprintf("%.1f KB", float64(b)/1024)
	default:
		return fmt.Sprintf("%d B", b)
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
