package logx

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level is the severity attached to every log line.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// Entry is a single formatted log record.
type Entry struct {
	Time    time.Time
	Level   Level
	Message string
}

// Logger writes severity-tagged lines to a file and optionally echoes them to
// a console writer. The zero value discards everything.
type Logger struct {
	base         *log.Logger
	console      io.Writer
	consoleLevel Level
	memory       *Memory
	prefix       string
	mu           sync.Mutex
}

// New creates a logger that writes to a timestamped file inside logsDir. The
// returned closer should be closed when logging is no longer needed.
func New(logsDir string) (*Logger, io.Closer, error) {
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("ensure logs directory: %w", err)
	}

	filename := time.Now().Format("20060102-150405") + ".log"
	filePath := filepath.Join(logsDir, filename)
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	return NewWriter(file), file, nil
}

// NewWriter creates a logger writing to w.
func NewWriter(w io.Writer) *Logger {
	return &Logger{base: log.New(w, "", log.LstdFlags|log.Lmicroseconds)}
}

// Discard returns a logger that drops every entry.
func Discard() *Logger {
	return &Logger{}
}

// WithConsole echoes entries at or above min to w. It returns the receiver.
func (l *Logger) WithConsole(w io.Writer, min Level) *Logger {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	l.console = w
	l.consoleLevel = min
	l.mu.Unlock()
	return l
}

// WithMemory attaches an in-memory recorder. It returns the receiver.
func (l *Logger) WithMemory(m *Memory) *Logger {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	l.memory = m
	l.mu.Unlock()
	return l
}

// SetPrefix sets a tag written after the severity on every line, e.g. a run id.
func (l *Logger) SetPrefix(prefix string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.prefix = strings.TrimSpace(prefix)
	l.mu.Unlock()
}

func (l *Logger) Debugf(format string, v ...any) { l.logf(LevelDebug, format, v...) }
func (l *Logger) Infof(format string, v ...any)  { l.logf(LevelInfo, format, v...) }
func (l *Logger) Warnf(format string, v ...any)  { l.logf(LevelWarn, format, v...) }
func (l *Logger) Errorf(format string, v ...any) { l.logf(LevelError, format, v...) }

// Printf logs at info level so the logger satisfies Printf-style interfaces.
func (l *Logger) Printf(format string, v ...any) { l.logf(LevelInfo, format, v...) }

func (l *Logger) logf(level Level, format string, v ...any) {
	if l == nil {
		return
	}
	msg := fmt.Sprintf(format, v...)

	l.mu.Lock()
	defer l.mu.Unlock()

	tag := "[" + level.String() + "]"
	if l.prefix != "" {
		tag += " " + l.prefix
	}
	if l.base != nil {
		l.base.Printf("%s %s", tag, msg)
	}
	if l.console != nil && level >= l.consoleLevel {
		fmt.Fprintf(l.console, "%s %s\n", strings.ToLower(level.String()), msg)
	}
	if l.memory != nil {
		l.memory.add(Entry{Time: time.Now(), Level: level, Message: msg})
	}
}

// Memory stores entries for later inspection, mostly by tests.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemory returns a logger backed only by an in-memory recorder.
func NewMemory() (*Logger, *Memory) {
	m := &Memory{}
	return (&Logger{}).WithMemory(m), m
}

func (m *Memory) add(e Entry) {
	m.mu.Lock()
	m.entries = append(m.entries, e)
	m.mu.Unlock()
}

// Entries returns a copy of every recorded entry.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}

// Messages returns the messages recorded at the given level.
func (m *Memory) Messages(level Level) []string {
	var out []string
	for _, e := range m.Entries() {
		if e.Level == level {
			out = append(out, e.Message)
		}
	}
	return out
}

// Contains reports whether a message at level contains substr.
func (m *Memory) Contains(level Level, substr string) bool {
	for _, msg := range m.Messages(level) {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}
