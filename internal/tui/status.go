package tui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"devsetup/internal/progress"
)

const spinInterval = 100 * time.Millisecond

// Spinner keeps one line of stderr busy while a command works through a
// step that has no component table, like verify re-checking what the state
// file records. Each Phase call restarts the elapsed timer.
type Spinner struct {
	out io.Writer

	mu    sync.Mutex
	label string
	since time.Time

	quit chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// StartSpinner begins redrawing label on out until Close.
func StartSpinner(out io.Writer, label string) *Spinner {
	s := &Spinner{out: out, label: label, since: time.Now(), quit: make(chan struct{})}
	s.wg.Add(1)
	go s.spin()
	return s
}

// Phase replaces the label.
func (s *Spinner) Phase(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.label, s.since = label, time.Now()
}

// Close stops redrawing and erases the line. It waits for the last frame so
// nothing is written after it returns.
func (s *Spinner) Close() {
	s.once.Do(func() {
		close(s.quit)
		s.wg.Wait()
		fmt.Fprint(s.out, "\r\033[K")
	})
}

func (s *Spinner) frame(n int) string {
	s.mu.Lock()
	label, since := s.label, s.since
	s.mu.Unlock()
	glyph := StatusStyle("installing").Render(spinnerFrames[n%len(spinnerFrames)])
	return fmt.Sprintf("\r\033[K%s %s (%s)", glyph, label, progress.FormatDuration(time.Since(since)))
}

func (s *Spinner) spin() {
	defer s.wg.Done()
	t := time.NewTicker(spinInterval)
	defer t.Stop()
	for n := 0; ; n++ {
		select {
		case <-s.quit:
			return
		case <-t.C:
			fmt.Fprint(s.out, s.frame(n))
		}
	}
}
