package download

import (
	"io"
	"sync"
	"sync/atomic"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Progress receives one increment per finished segment task
type Progress interface {
	Increment(n int)
}

// NopProgress discards increments
type NopProgress struct{}

func (NopProgress) Increment(int) {}

// ProgressFunc adapts a function to Progress
type ProgressFunc func(n int)

func (f ProgressFunc) Increment(n int) { f(n) }

// Counter is a Progress that only counts
type Counter struct {
	n atomic.Int64
}

func (c *Counter) Increment(n int) { c.n.Add(int64(n)) }

// Count returns the number of increments received so far
func (c *Counter) Count() int64 { return c.n.Load() }

// ConsoleProgress redraws a single status line on every increment
type ConsoleProgress struct {
	mu      sync.Mutex
	w       io.Writer
	total   int
	done    int
	printer *message.Printer
}

// NewConsoleProgress creates a progress line for total tasks written to w
func NewConsoleProgress(w io.Writer, total int) *ConsoleProgress {
	return &ConsoleProgress{
		w:       w,
		total:   total,
		printer: message.NewPrinter(language.English),
	}
}

func (p *ConsoleProgress) Increment(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done += n
	percent := 100
	if p.total > 0 {
		percent = p.done * 100 / p.total
	}
	p.printer.Fprintf(p.w, "\rsegments: %d/%d (%d%%)", p.done, p.total, percent)
}

// Done returns the number of completed tasks reported
func (p *ConsoleProgress) Done() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Finish terminates the status line
func (p *ConsoleProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printer.Fprintln(p.w)
}
