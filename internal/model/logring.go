package model

import (
	"fmt"
	"sync"
	"time"
)

// LogRing is a bounded ring buffer of human-readable task log lines.
// Once full, the oldest line is dropped for each new one. Safe for
// concurrent use.
type LogRing struct {
	mu    sync.Mutex
	lines []string
	max   int
}

// NewLogRing creates a ring buffer holding at most max lines.
func NewLogRing(max int) *LogRing {
	if max <= 0 {
		max = 100
	}
	return &LogRing{max: max}
}

// Append adds a timestamped line, evicting the oldest when full.
func (r *LogRing) Append(format string, args ...any) {
	line := fmt.Sprintf("%s %s", time.Now().UTC().Format(time.RFC3339), fmt.Sprintf(format, args...))

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.lines) >= r.max {
		copy(r.lines, r.lines[1:])
		r.lines[len(r.lines)-1] = line
		return
	}
	r.lines = append(r.lines, line)
}

// Lines returns a copy of the buffered lines, oldest first.
func (r *LogRing) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

// Len returns the number of buffered lines.
func (r *LogRing) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lines)
}
