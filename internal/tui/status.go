package tui

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// StatusWriter keeps a single spinner line updated on w while the CLI loads
// the inventory and archive index, before the table starts.
type StatusWriter struct {
	w     io.Writer
	mu    sync.Mutex
	phase string
	since time.Time
	stop  chan struct{}
	once  sync.Once
}

// NewStatusWriter starts the spinner.
func NewStatusWriter(w io.Writer) *StatusWriter {
	sw := &StatusWriter{w: w, since: time.Now(), stop: make(chan struct{})}
	go sw.loop()
	return sw
}

// Update replaces the phase text and restarts its timer.
func (sw *StatusWriter) Update(phase string) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.phase = phase
	sw.since = time.Now()
}

// Stop clears the line. It is safe to call more than once.
func (sw *StatusWriter) Stop() {
	sw.once.Do(func() {
		close(sw.stop)
		sw.mu.Lock()
		defer sw.mu.Unlock()
		fmt.Fprint(sw.w, "\r\033[K")
	})
}

func (sw *StatusWriter) loop() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for frame := 0; ; frame++ {
		select {
		case <-sw.stop:
			return
		case <-ticker.C:
		}
		sw.draw(frame)
	}
}

func (sw *StatusWriter) draw(frame int) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	select {
	case <-sw.stop:
		return
	default:
	}
	fmt.Fprintf(sw.w, "\r\033[K%s %s (%s)", spinnerFrames[frame%len(spinnerFrames)], sw.phase, elapsed(time.Since(sw.since)))
}

func elapsed(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
}
