package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"devsetup/internal/installer"
	"devsetup/internal/progress"
)

// ComponentColumns is the table layout for an install run.
var ComponentColumns = []Column{
	{Header: "COMPONENT", Width: 16},
	{Header: "STATUS", Width: 13},
	{Header: "VERSION", Width: 12},
	{Header: "TIME", Width: 7},
	{Header: "NOTES", Width: 40},
}

// PendingRow returns the initial fields for a component that has not started.
func PendingRow(name string) []string {
	return []string{name, "pending", "-", "-", ""}
}

// Reporter turns run events into bubbletea messages. Its methods match
// provision.Reporter and are called from the worker goroutine.
type Reporter struct {
	send  func(tea.Msg)
	known map[string]bool
}

// NewReporter returns a reporter that forwards to send. Rows already added to
// the model should be listed in known so they are not appended twice.
func NewReporter(send func(tea.Msg), known []string) *Reporter {
	r := &Reporter{send: send, known: make(map[string]bool, len(known))}
	for _, name := range known {
		r.known[name] = true
	}
	return r
}

// Plan adds rows for any planned component the model does not have yet.
func (r *Reporter) Plan(components []string, total int) {
	for _, name := range components {
		r.ensure(name)
	}
	r.send(ProgressMsg{Snapshot: progress.Snapshot{Total: total, HasTotal: total > 0}})
}

// Start marks a component as installing. Prerequisites that were not part of
// the plan get a row here.
func (r *Reporter) Start(name string) {
	r.ensure(name)
	r.send(RowUpdateMsg{Key: name, Fields: map[string]string{"STATUS": "installing"}})
}

// Complete writes the component's outcome and advances the footer.
func (r *Reporter) Complete(res installer.Result, snap progress.Snapshot) {
	r.ensure(res.Component)
	r.send(RowUpdateMsg{Key: res.Component, Fields: ResultFields(res)})
	r.send(ProgressMsg{Snapshot: snap})
}

func (r *Reporter) ensure(name string) {
	if r.known[name] {
		return
	}
	r.known[name] = true
	r.send(RowAddMsg{Key: name, Fields: PendingRow(name)})
}

// ResultFields maps a result onto the component columns.
func ResultFields(res installer.Result) map[string]string {
	notes := strings.Join(res.Notes, "; ")
	if res.Error != "" {
		notes = res.Error
	}
	elapsed := "-"
	if res.Duration > 0 {
		elapsed = progress.FormatDuration(res.Duration)
	}
	return map[string]string{
		"STATUS":  string(res.Status),
		"VERSION": NonEmptyOrDash(res.Version),
		"TIME":    elapsed,
		"NOTES":   notes,
	}
}

// ResultRow renders a result as a full row for the plain table.
func ResultRow(res installer.Result) []string {
	f := ResultFields(res)
	return []string{res.Component, f["STATUS"], f["VERSION"], f["TIME"], f["NOTES"]}
}
