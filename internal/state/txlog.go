package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	ActionInstall = "INSTALL"
	ActionBackup  = "BACKUP"
)

// TxLog is the append-only transaction log. Lines are
// "<RFC3339 timestamp> <ACTION> <subject> <detail>". A nil TxLog discards.
type TxLog struct {
	Path   string
	DryRun bool
	now    func() time.Time
}

// NewTxLog returns a log writing to path.
func NewTxLog(path string, dryRun bool) *TxLog {
	return &TxLog{Path: path, DryRun: dryRun}
}

// Append writes one record.
func (t *TxLog) Append(action, subject, detail string) error {
	if t == nil || t.DryRun || t.Path == "" {
		return nil
	}
	now := time.Now().UTC()
	if t.now != nil {
		now = t.now()
	}

	if err := os.MkdirAll(filepath.Dir(t.Path), 0o755); err != nil {
		return fmt.Errorf("ensure transaction log dir: %w", err)
	}
	f, err := os.OpenFile(t.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open transaction log: %w", err)
	}
	defer f.Close()

	line := strings.Join([]string{now.Format(time.RFC3339), action, oneLine(subject), oneLine(detail)}, " ")
	if _, err := f.WriteString(strings.TrimRight(line, " ") + "\n"); err != nil {
		return fmt.Errorf("append transaction log: %w", err)
	}
	return nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
