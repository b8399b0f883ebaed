package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
)

const barWidth = 30

// Terminal renders progress callbacks as a single overwritten line on a
// terminal (carriage-return, no newline until Done).
type Terminal struct {
	writer  io.Writer
	op      string
	total   int
	enabled atomic.Bool
	current atomic.Int32
}

// NewTerminal creates a Terminal writing to stderr.
func NewTerminal(op string, total int, enabled bool) *Terminal {
	t := &Terminal{writer: os.Stderr, op: op, total: total}
	t.enabled.Store(enabled)
	return t
}

// IsEnabled reports whether the terminal renders output.
func (t *Terminal) IsEnabled() bool {
	return t.enabled.Load()
}

// SetEnabled toggles rendering on or off.
func (t *Terminal) SetEnabled(enabled bool) {
	t.enabled.Store(enabled)
}

// Callback returns a progress.Callback that renders a single-line bar.
func (t *Terminal) Callback() Callback {
	return func(op string, current, total int, message string) {
		if !t.enabled.Load() {
			return
		}
		t.current.Store(int32(current))

		percent := 0
		if total > 0 {
			percent = current * 100 / total
		}
		filled := percent * barWidth / 100
		if filled > barWidth {
			filled = barWidth
		}
		bar := strings.Repeat("=", filled) + strings.Repeat(" ", barWidth-filled)

		fmt.Fprintf(t.writer, "\r%s [%s] %d/%d %d%% %s", op, bar, current, total, percent, message)
	}
}

// Done finishes the progress line with a trailing newline.
func (t *Terminal) Done(message string) {
	if !t.enabled.Load() {
		return
	}
	fmt.Fprintf(t.writer, "\r%s %s\n", t.op, message)
}

// CountingTerminal renders an unbounded item counter on a single line.
type CountingTerminal struct {
	writer  io.Writer
	op      string
	enabled atomic.Bool
	count   atomic.Int64
}

// NewCountingTerminal creates a CountingTerminal writing to stderr.
func NewCountingTerminal(op string, enabled bool) *CountingTerminal {
	t := &CountingTerminal{writer: os.Stderr, op: op}
	t.enabled.Store(enabled)
	return t
}

// IsEnabled reports whether the terminal renders output.
func (t *CountingTerminal) IsEnabled() bool {
	return t.enabled.Load()
}

// SetEnabled toggles rendering on or off.
func (t *CountingTerminal) SetEnabled(enabled bool) {
	t.enabled.Store(enabled)
}

// Increment advances the counter and renders the updated line.
func (t *CountingTerminal) Increment() {
	if !t.enabled.Load() {
		return
	}
	n := t.count.Add(1)
	fmt.Fprintf(t.writer, "\r%s: %d items", t.op, n)
}

// Done finishes the counter line with a trailing newline.
func (t *CountingTerminal) Done(message string) {
	if !t.enabled.Load() {
		return
	}
	fmt.Fprintf(t.writer, "\r%s %s\n", t.op, message)
}
