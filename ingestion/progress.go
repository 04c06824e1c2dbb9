package ingestion

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker redraws one progress line on a terminal writer. Failed
// items count towards the total and are shown separately.
type ProgressTracker struct {
	mu       sync.Mutex
	w        io.Writer
	unit     string
	total    int
	done     int
	failed   int
	every    int
	lastDraw int
	start    time.Time
	running  bool
}

// NewProgressTracker reports on w every `every` items out of total, naming
// them unit ("pages", "entries").
func NewProgressTracker(w io.Writer, unit string, total, every int) *ProgressTracker {
	return &ProgressTracker{w: w, unit: unit, total: total, every: max(every, 1)}
}

// Start resets the counters and the clock.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.start = time.Now()
	p.running = true
	p.done, p.failed, p.lastDraw = 0, 0, 0
}

// Update moves the count to n.
func (p *ProgressTracker) Update(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		p.advance(n - p.done)
	}
}

// Increment counts n more items.
func (p *ProgressTracker) Increment(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		p.advance(n)
	}
}

// Fail counts one item that could not be processed.
func (p *ProgressTracker) Fail() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		p.failed++
		p.advance(1)
	}
}

// Finish draws the final line and ends it. The count stays where it is, so
// an aborted run does not show 100%.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.draw()
	fmt.Fprintln(p.w)
	p.running = false
}

// Elapsed is the time since Start.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.start.IsZero() {
		return 0
	}
	return time.Since(p.start)
}

// Caller holds mu.
func (p *ProgressTracker) advance(n int) {
	p.done = min(p.done+n, p.total)
	if p.done-p.lastDraw >= p.every {
		p.draw()
		p.lastDraw = p.done
	}
}

func (p *ProgressTracker) draw() {
	var pct, rate float64
	if p.total > 0 {
		pct = float64(p.done) / float64(p.total) * 100
	}
	if secs := time.Since(p.start).Seconds(); secs > 0 {
		rate = float64(p.done) / secs
	}
	line := fmt.Sprintf("\rProgress: %d/%d (%.1f%%) - %.1f %s/s", p.done, p.total, pct, rate, p.unit)
	if p.failed > 0 {
		line += fmt.Sprintf(", %d failed", p.failed)
	}
	fmt.Fprint(p.w, line)
}
