package tui

import (
	"io"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const (
	// firstFrameDelay gives the program time to paint the pending table
	// before the first row changes.
	firstFrameDelay = 50 * time.Millisecond
	// minSendGap spaces row updates so components that finish instantly,
	// such as ones already recorded in state, still show up one by one.
	minSendGap = 5 * time.Millisecond
)

// pacedSender forwards messages to a program no faster than gap apart.
type pacedSender struct {
	p    *tea.Program
	gap  time.Duration
	mu   sync.Mutex
	last time.Time
}

func (s *pacedSender) send(msg tea.Msg) {
	s.mu.Lock()
	if wait := s.gap - time.Since(s.last); wait > 0 {
		time.Sleep(wait)
	}
	s.last = time.Now()
	s.mu.Unlock()
	s.p.Send(msg)
}

// RunWithWork shows model on out and runs work beside it. work reports
// through the send callback it is given; the table closes once work
// returns. An ErrorMsg recorded by the model is returned as the error.
func RunWithWork(out io.Writer, model ProgressModel, work func(send func(tea.Msg))) error {
	p := tea.NewProgram(model, tea.WithOutput(out))
	sender := &pacedSender{p: p, gap: minSendGap}

	go func() {
		defer p.Send(WorkDoneMsg{})
		time.Sleep(firstFrameDelay)
		work(sender.send)
	}()

	final, err := p.Run()
	if err != nil {
		return err
	}
	if m, ok := final.(ProgressModel); ok {
		return m.Err()
	}
	return nil
}
