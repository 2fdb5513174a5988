package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

const barWidth = 40

// Bar renders album progress of a library run on a single terminal line.
type Bar struct {
	out io.Writer
	now func() time.Time

	mu        sync.Mutex
	total     int
	current   int
	found     int
	bytes     uint64
	startTime time.Time
	lastPrint time.Time
	done      bool
}

// New creates a progress bar for total albums writing to stdout.
func New(total int) *Bar {
	return NewWriter(os.Stdout, total)
}

// NewWriter creates a progress bar writing to out.
func NewWriter(out io.Writer, total int) *Bar {
	now := time.Now()
	return &Bar{
		out:       out,
		now:       time.Now,
		total:     total,
		startTime: now,
		lastPrint: now,
	}
}

// Album records one finished album. found is false when no cover was chosen;
// bytes is the amount downloaded for it.
func (b *Bar) Album(found bool, bytes int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.current++
	if found {
		b.found++
	}
	if bytes > 0 {
		b.bytes += uint64(bytes)
	}

	// Update display every 500ms or when complete
	now := b.now()
	if now.Sub(b.lastPrint) > 500*time.Millisecond || b.current >= b.total {
		b.render()
		b.lastPrint = now
	}
}

// Finish draws the final state and ends the line.
func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.done {
		b.render()
		fmt.Fprintln(b.out)
		b.done = true
	}
}

func (b *Bar) render() {
	if b.done || b.total <= 0 {
		return
	}

	percentage := float64(b.current) / float64(b.total) * 100
	elapsed := b.now().Sub(b.startTime)

	var eta time.Duration
	if b.current > 0 {
		avgTime := elapsed / time.Duration(b.current)
		eta = avgTime * time.Duration(b.total-b.current)
	}

	filled := min(barWidth, barWidth*b.current/b.total)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	fmt.Fprintf(b.out, "\r[%s] %d/%d (%.1f%%) - covers: %d - %s - ETA: %s   ",
		bar,
		b.current,
		b.total,
		percentage,
		b.found,
		humanize.Bytes(b.bytes),
		formatDuration(eta),
	)
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
