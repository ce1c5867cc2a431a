package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// WriteFile replaces path with data, keeping a backup of the previous
// contents. Paths the current user cannot write are installed through sudo.
func (e *Env) WriteFile(ctx context.Context, path string, data []byte, mode os.FileMode) error {
	if e.DryRun {
		e.Logger.Infof("[dry-run] would write %s (%d bytes)", path, len(data))
		return nil
	}
	if _, err := e.State.Backup(path); err != nil {
		e.Logger.Warnf("backup %s: %v", path, err)
	}

	err := writeAtomic(path, data, mode)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrPermission) || !e.Sudo {
		return err
	}

	staged, err := os.CreateTemp(e.WorkDir, "staged-*")
	if err != nil {
		return fmt.Errorf("stage %s: %w", path, err)
	}
	defer os.Remove(staged.Name())
	if _, err := staged.Write(data); err != nil {
		staged.Close()
		return fmt.Errorf("stage %s: %w", path, err)
	}
	if err := staged.Close(); err != nil {
		return fmt.Errorf("stage %s: %w", path, err)
	}
	_, err = e.Exec(ctx, Sudo("install", "-D", "-m", fmt.Sprintf("%04o", mode.Perm()), staged.Name(), path))
	return err
}

func writeAtomic(path string, data []byte, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("prepare %s: %w", filepath.Dir(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// installBinary copies src to dest as an executable.
func installBinary(src, dest string) error {
	source, err := os.Open(src)
	if err != nil {
		return err
	}
	defer source.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, source); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o755); err != nil {
		return err
	}
	return os.Rename(tmpName, dest)
}

// replaceTree moves src to dest, removing whatever dest held before.
func replaceTree(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	if err := os.RemoveAll(dest); err != nil {
		return fmt.Errorf("remove previous %s: %w", dest, err)
	}
	if err := os.Rename(src, dest); err != nil {
		return fmt.Errorf("move %s into place: %w", dest, err)
	}
	return nil
}

// linkInto points link at target, replacing an existing link or file.
func linkInto(target, link string) error {
	if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
		return err
	}
	if err := os.Remove(link); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("replace %s: %w", link, err)
	}
	return os.Symlink(target, link)
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
