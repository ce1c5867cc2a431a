package progress

import (
	"fmt"
	"io"
	"time"
)

// Snapshot is the tracker state after a call. Percent and ETA are only
// meaningful when HasTotal is true.
type Snapshot struct {
	Completed int
	Total     int
	Percent   int
	Elapsed   time.Duration
	ETA       time.Duration
	HasTotal  bool
}

// Done reports whether every estimated task has completed.
func (s Snapshot) Done() bool {
	return s.HasTotal && s.Completed >= s.Total
}

// Tracker counts completed tasks against an estimated total. When out is
// set, each Advance rewrites a single status line and the final task ends it
// with a newline.
type Tracker struct {
	out       io.Writer
	total     int
	completed int
	start     time.Time
	now       func() time.Time
	finished  bool
}

// New starts the clock. out may be nil.
func New(out io.Writer) *Tracker {
	t := &Tracker{out: out, now: time.Now}
	t.start = t.now()
	return t
}

// SetTotal sets the denominator. Negative values count as zero.
func (t *Tracker) SetTotal(n int) {
	if n < 0 {
		n = 0
	}
	t.total = n
}

// Total returns the current denominator.
func (t *Tracker) Total() int { return t.total }

// Advance marks one more task complete.
func (t *Tracker) Advance() Snapshot {
	t.completed++
	s := t.Snapshot()
	t.render(s)
	return s
}

// Snapshot computes counts, floor percent, elapsed time and ETA.
func (t *Tracker) Snapshot() Snapshot {
	s := Snapshot{
		Completed: t.completed,
		Total:     t.total,
		Elapsed:   t.now().Sub(t.start),
	}
	if t.total <= 0 {
		return s
	}
	s.HasTotal = true
	s.Percent = min(t.completed*100/t.total, 100)
	if t.completed > 0 && t.completed < t.total {
		perTask := s.Elapsed / time.Duration(t.completed)
		s.ETA = perTask * time.Duration(t.total-t.completed)
	}
	return s
}

// Finish terminates the status line if the last Advance did not.
func (t *Tracker) Finish() {
	if t.out == nil || t.finished || t.completed == 0 {
		return
	}
	t.finished = true
	fmt.Fprintln(t.out)
}

func (t *Tracker) render(s Snapshot) {
	if t.out == nil || t.finished {
		return
	}
	fmt.Fprintf(t.out, "\r\033[K%s", Line(s))
	if s.Done() {
		t.finished = true
		fmt.Fprintln(t.out)
	}
}

// Line renders a snapshot as a one-line status.
func Line(s Snapshot) string {
	if !s.HasTotal {
		return fmt.Sprintf("%d task(s) done, elapsed %s", s.Completed, FormatDuration(s.Elapsed))
	}
	line := fmt.Sprintf("[%d/%d] %3d%% elapsed %s", s.Completed, s.Total, s.Percent, FormatDuration(s.Elapsed))
	if s.ETA > 0 {
		line += " eta " + FormatDuration(s.ETA)
	}
	return line
}

// FormatDuration renders a duration compactly for status lines.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < 10*time.Second {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}
