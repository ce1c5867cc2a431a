package tui

import "devsetup/internal/progress"

// RowUpdateMsg updates a single row's fields by column name.
type RowUpdateMsg struct {
	Key    string
	Fields map[string]string
}

// RowAddMsg appends a row that was not known when the program started, such
// as a prerequisite pulled in by the resolver. Adding an existing key is a
// no-op.
type RowAddMsg struct {
	Key    string
	Fields []string
}

// ProgressMsg carries the run tracker's latest snapshot for the footer.
type ProgressMsg struct {
	Snapshot progress.Snapshot
}

// WorkDoneMsg signals that all background work has completed.
type WorkDoneMsg struct{}

// ErrorMsg signals a fatal error; the TUI should quit.
type ErrorMsg struct {
	Err error
}
