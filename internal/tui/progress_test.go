package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"devsetup/internal/installer"
	"devsetup/internal/progress"
)

func newComponentModel(names ...string) ProgressModel {
	m := NewProgressModel("devsetup", ComponentColumns)
	for _, name := range names {
		m.AddRow(name, PendingRow(name))
	}
	return m
}

func TestRowUpdateMsg(t *testing.T) {
	m := newComponentModel("git", "helm")

	updated, _ := m.Update(RowUpdateMsg{
		Key:    "git",
		Fields: map[string]string{"STATUS": "installed", "VERSION": "2.39.2"},
	})
	m = updated.(ProgressModel)

	if m.rows[0].Fields[1] != "installed" {
		t.Errorf("expected STATUS=installed, got %q", m.rows[0].Fields[1])
	}
	if m.rows[0].Fields[2] != "2.39.2" {
		t.Errorf("expected VERSION=2.39.2, got %q", m.rows[0].Fields[2])
	}
	if m.rows[1].Fields[1] != "pending" {
		t.Errorf("expected helm STATUS=pending, got %q", m.rows[1].Fields[1])
	}
}

func TestRowUpdateMsg_UnknownKey(t *testing.T) {
	m := newComponentModel("git")

	updated, _ := m.Update(RowUpdateMsg{
		Key:    "docker",
		Fields: map[string]string{"STATUS": "installed"},
	})
	m = updated.(ProgressModel)

	if len(m.rows) != 1 || m.rows[0].Fields[1] != "pending" {
		t.Errorf("expected rows unchanged, got %+v", m.rows)
	}
}

func TestRowAddMsg(t *testing.T) {
	m := newComponentModel("helm")

	updated, _ := m.Update(RowAddMsg{Key: "kubectl", Fields: PendingRow("kubectl")})
	m = updated.(ProgressModel)
	updated, _ = m.Update(RowAddMsg{Key: "kubectl", Fields: PendingRow("kubectl")})
	m = updated.(ProgressModel)

	if len(m.rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(m.rows))
	}
	if m.rows[1].Key != "kubectl" {
		t.Errorf("expected appended kubectl row, got %q", m.rows[1].Key)
	}
}

func TestWorkDoneMsg(t *testing.T) {
	m := newComponentModel()

	updated, cmd := m.Update(WorkDoneMsg{})
	m = updated.(ProgressModel)

	if !m.Done() {
		t.Error("expected Done() to be true after WorkDoneMsg")
	}
	if cmd == nil {
		t.Error("expected tea.Quit command")
	}
}

func TestErrorMsg(t *testing.T) {
	m := newComponentModel()

	updated, cmd := m.Update(ErrorMsg{Err: tea.ErrProgramKilled})
	m = updated.(ProgressModel)

	if !m.Done() {
		t.Error("expected Done() to be true after ErrorMsg")
	}
	if m.Err() == nil {
		t.Error("expected Err() to be non-nil")
	}
	if cmd == nil {
		t.Error("expected tea.Quit command")
	}
	if !strings.Contains(m.View(), "Error:") {
		t.Error("expected view to show the error")
	}
}

func TestView(t *testing.T) {
	m := newComponentModel("git", "docker")
	updated, _ := m.Update(RowUpdateMsg{Key: "docker", Fields: map[string]string{"STATUS": "failed", "NOTES": "apt-get exited 100"}})
	m = updated.(ProgressModel)

	view := m.View()
	for _, want := range []string{"devsetup", "COMPONENT", "STATUS", "VERSION", "NOTES", "git", "docker", "pending", "failed", "apt-get exited 100"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q", want)
		}
	}
}

func TestViewFooterUsesTrackerSnapshot(t *testing.T) {
	m := newComponentModel("helm")

	view := m.View()
	if !strings.Contains(view, "Installing 0/1") {
		t.Errorf("expected row-count footer before any snapshot, got:\n%s", view)
	}

	updated, _ := m.Update(ProgressMsg{Snapshot: progress.Snapshot{
		Completed: 1,
		Total:     2,
		Percent:   50,
		Elapsed:   3 * time.Second,
		HasTotal:  true,
	}})
	m = updated.(ProgressModel)

	view = m.View()
	if !strings.Contains(view, "[1/2]  50%") {
		t.Errorf("expected tracker line in footer, got:\n%s", view)
	}
}

func TestViewHidesFooterWhenDone(t *testing.T) {
	m := newComponentModel("git")
	updated, _ := m.Update(WorkDoneMsg{})
	m = updated.(ProgressModel)

	if strings.Contains(m.View(), "Installing") {
		t.Error("expected view to NOT contain the footer when done")
	}
}

func TestNonEmptyOrDash(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "-"},
		{"  ", "-"},
		{"1.22.5", "1.22.5"},
		{" 1.22.5 ", "1.22.5"},
	}
	for _, tt := range tests {
		got := NonEmptyOrDash(tt.input)
		if got != tt.want {
			t.Errorf("NonEmptyOrDash(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestTruncateWithEllipsis(t *testing.T) {
	tests := []struct {
		input string
		max   int
		want  string
	}{
		{"short", 10, "short"},
		{"a longer string here", 10, "a longe..."},
		{"abc", 3, "abc"},
		{"abcd", 3, "abc"},
		{"", 5, ""},
		{"hello", 0, ""},
	}
	for _, tt := range tests {
		got := TruncateWithEllipsis(tt.input, tt.max)
		if got != tt.want {
			t.Errorf("TruncateWithEllipsis(%q, %d) = %q, want %q", tt.input, tt.max, got, tt.want)
		}
	}
}

func TestMarqueeText(t *testing.T) {
	tests := []struct {
		text  string
		width int
		tick  int
		want  string
	}{
		{"short", 10, 0, "short"},
		{"hello world here", 5, 0, "hello"},
		{"hello world here", 5, 1, "ello "},
		{"hello world here", 5, 5, " worl"},
		{"abcdef", 4, 0, "abcd"},
		{"abcdef", 4, 6, "   a"},
	}
	for _, tt := range tests {
		got := marqueeText(tt.text, tt.width, tt.tick)
		if got != tt.want {
			t.Errorf("marqueeText(%q, %d, %d) = %q, want %q", tt.text, tt.width, tt.tick, got, tt.want)
		}
	}
}

func TestTickStopsAfterDone(t *testing.T) {
	m := newComponentModel("git")

	updated, cmd := m.Update(tickMsg{})
	m = updated.(ProgressModel)
	if m.tick != 1 || cmd == nil {
		t.Fatalf("expected tick=1 and a next tick, got tick=%d cmd=%v", m.tick, cmd != nil)
	}

	updated, _ = m.Update(WorkDoneMsg{})
	m = updated.(ProgressModel)
	_, cmd = m.Update(tickMsg{})
	if cmd != nil {
		t.Error("expected no tick command after done")
	}
}

func TestProgressCounts(t *testing.T) {
	m := newComponentModel("git", "helm", "kubectl")
	m.rows[1].Fields[1] = "installing"
	m.rows[2].Fields[1] = "skipped"

	processed, total := m.progressCounts()
	if total != 3 {
		t.Errorf("expected total=3, got %d", total)
	}
	if processed != 1 {
		t.Errorf("expected processed=1, got %d", processed)
	}
}

func TestCtrlC(t *testing.T) {
	m := newComponentModel()

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m = updated.(ProgressModel)

	if !m.Done() {
		t.Error("expected Done() to be true after ctrl+c")
	}
	if cmd == nil {
		t.Error("expected tea.Quit command")
	}
}

func TestReporterAddsPrerequisiteRows(t *testing.T) {
	var sent []tea.Msg
	r := NewReporter(func(msg tea.Msg) { sent = append(sent, msg) }, []string{"helm"})

	r.Plan([]string{"helm"}, 1)
	r.Start("kubectl")
	r.Complete(installer.Result{
		Component: "kubectl",
		Status:    installer.StatusInstalled,
		Version:   "1.30.2",
		Duration:  1500 * time.Millisecond,
	}, progress.Snapshot{Completed: 1, Total: 2, Percent: 50, HasTotal: true})

	m := newComponentModel("helm")
	for _, msg := range sent {
		updated, _ := m.Update(msg)
		m = updated.(ProgressModel)
	}

	if len(m.rows) != 2 {
		t.Fatalf("expected kubectl row to be added, got %d rows", len(m.rows))
	}
	got := m.rows[1].Fields
	if got[0] != "kubectl" || got[1] != "installed" || got[2] != "1.30.2" || got[3] != "1.5s" {
		t.Errorf("unexpected kubectl row %q", got)
	}
	if !m.haveSnap || m.snapshot.Completed != 1 {
		t.Errorf("expected the last snapshot to reach the model, got %+v", m.snapshot)
	}
}

func TestResultFieldsPrefersError(t *testing.T) {
	res := installer.Result{
		Component: "docker",
		Status:    installer.StatusFailed,
		Notes:     []string{"service not started"},
		Error:     "apt-get install: exit status 100",
		Err:       errors.New("apt-get install: exit status 100"),
	}

	f := ResultFields(res)
	if f["NOTES"] != "apt-get install: exit status 100" {
		t.Errorf("NOTES = %q", f["NOTES"])
	}
	if f["VERSION"] != "-" || f["TIME"] != "-" {
		t.Errorf("expected dashes for empty version and time, got %q %q", f["VERSION"], f["TIME"])
	}
	row := ResultRow(res)
	if len(row) != len(ComponentColumns) {
		t.Errorf("row has %d fields, want %d", len(row), len(ComponentColumns))
	}
}
