package tui

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitForOutput(t *testing.T, b *lockedBuffer, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(b.String(), want) {
		if time.Now().After(deadline) {
			t.Fatalf("output never contained %q:\n%q", want, b.String())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSpinnerShowsCurrentPhase(t *testing.T) {
	out := &lockedBuffer{}
	s := StartSpinner(out, "Checking recorded components...")
	defer s.Close()

	waitForOutput(t, out, "Checking recorded components...")
	s.Phase("Comparing minimum versions...")
	waitForOutput(t, out, "Comparing minimum versions...")
}

func TestSpinnerCloseClearsLineAndStops(t *testing.T) {
	out := &lockedBuffer{}
	s := StartSpinner(out, "working")
	waitForOutput(t, out, "working")

	s.Close()
	s.Close()
	closed := out.String()
	if !strings.HasSuffix(closed, "\r\033[K") {
		t.Fatalf("expected the line to be erased last, got %q", closed)
	}

	time.Sleep(3 * spinInterval)
	if out.String() != closed {
		t.Fatal("spinner wrote after Close returned")
	}
}
