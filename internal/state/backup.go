package state

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Backup copies a file that is about to be modified into the backups
// directory and logs a BACKUP record. A missing file needs no backup and
// returns "". Dry-run only logs.
func (s *Store) Backup(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("backup %s: not a regular file", path)
	}

	name := fmt.Sprintf("%s.%s.bak", filepath.Base(path), s.now().Format("20060102-150405"))
	dest := filepath.Join(s.backupsDir, name)
	if s.dryRun {
		s.logger.Infof("[dry-run] would back up %s to %s", path, dest)
		return dest, nil
	}
	if s.backupsDir == "" {
		return "", fmt.Errorf("backup %s: no backups directory configured", path)
	}

	if err := copyPreservingMode(path, dest, info.Mode().Perm()); err != nil {
		return "", fmt.Errorf("backup %s: %w", path, err)
	}
	if err := s.tx.Append(ActionBackup, path, dest); err != nil {
		s.logger.Warnf("transaction log: %v", err)
	}
	s.logger.Infof("backed up %s to %s", path, dest)
	return dest, nil
}

func copyPreservingMode(src, dest string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
