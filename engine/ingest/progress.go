package ingest

import (
	"fmt"
	"io"
	"sync"
)

// Progress receives the number of records stored as a run advances.
type Progress interface {
	Start(total int)
	Advance(n int)
	Finish()
}

// NopProgress discards progress.
type NopProgress struct{}

func (NopProgress) Start(int)   {}
func (NopProgress) Advance(int) {}
func (NopProgress) Finish()     {}

// ConsoleProgress redraws a single line on w, e.g.
//
//	Processing hospitals  25/100 [=====               ]  25%
type ConsoleProgress struct {
	mu    sync.Mutex
	w     io.Writer
	label string
	width int
	total int
	done  int
}

// NewConsoleProgress writes to w, prefixing the bar with label.
func NewConsoleProgress(w io.Writer, label string) *ConsoleProgress {
	return &ConsoleProgress{w: w, label: label, width: 20}
}

func (p *ConsoleProgress) Start(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total, p.done = total, 0
	p.draw()
}

func (p *ConsoleProgress) Advance(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done += n
	if p.done > p.total {
		p.done = p.total
	}
	p.draw()
}

func (p *ConsoleProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w)
}

// draw must hold mu.
func (p *ConsoleProgress) draw() {
	pct := 100
	if p.total > 0 {
		pct = p.done * 100 / p.total
	}
	filled := pct * p.width / 100
	bar := make([]byte, p.width)
	for i := range bar {
		if i < filled {
			bar[i] = '='
		} else {
			bar[i] = ' '
		}
	}
	fmt.Fprintf(p.w, "\r%s %*d/%d [%s] %3d%%", p.label, len(fmt.Sprint(p.total)), p.done, p.total, bar, pct)
}
