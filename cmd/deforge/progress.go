package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// progressBar renders a single-line [=====>    ] bar for a batch of files.
// It is safe for concurrent use by the directory workers.
type progressBar struct {
	mu         sync.Mutex
	output     io.Writer
	total      int
	done       int
	failed     int
	lastUpdate time.Time
	width      int
}

func newProgressBar(output io.Writer, total int) *progressBar {
	return &progressBar{output: output, total: total, width: 30}
}

// Advance records one finished file
func (p *progressBar) Advance(file string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	if err != nil {
		p.failed++
	}

	// Throttle to avoid flooding the terminal
	if p.done < p.total && time.Since(p.lastUpdate) < 100*time.Millisecond {
		return
	}
	p.lastUpdate = time.Now()
	p.render(filepath.Base(file))
}

// Finish ends the bar line
func (p *progressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.output)
}

func (p *progressBar) render(desc string) {
	percent := 100.0
	if p.total > 0 {
		percent = float64(p.done) / float64(p.total) * 100
	}
	completed := int(percent / 100 * float64(p.width))

	var bar strings.Builder
	bar.WriteByte('[')
	for i := 0; i < p.width; i++ {
		switch {
		case i < completed:
			bar.WriteByte('=')
		case i == completed:
			bar.WriteByte('>')
		default:
			bar.WriteByte(' ')
		}
	}
	bar.WriteByte(']')

	if len(desc) > 40 {
		desc = desc[:37] + "..."
	}
	fmt.Fprintf(p.output, "\r%s %5.1f%% %d/%d (%d failed) %-40s", bar.String(), percent, p.done, p.total, p.failed, desc)
}
