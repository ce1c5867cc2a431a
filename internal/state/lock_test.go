package state

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestAcquireLockIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devsetup.lock")

	release, err := AcquireLock(path)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if _, err := AcquireLock(path); !errors.Is(err, ErrLocked) {
		t.Fatalf("second acquire: got %v, want ErrLocked", err)
	}

	release()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected lock removed, stat err = %v", err)
	}
	release, err = AcquireLock(path)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	release()
}

func TestAcquireLockTakesOverStaleLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devsetup.lock")
	// Pids are capped well below this on Linux.
	if err := os.WriteFile(path, []byte(strconv.Itoa(1<<30)+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	release, err := AcquireLock(path)
	if err != nil {
		t.Fatalf("expected stale lock to be taken over, got %v", err)
	}
	defer release()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != strconv.Itoa(os.Getpid())+"\n" {
		t.Errorf("lock holds %q, want our pid", data)
	}
}

func TestAcquireLockTakesOverGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devsetup.lock")
	if err := os.WriteFile(path, []byte("not a pid"), 0o600); err != nil {
		t.Fatal(err)
	}

	release, err := AcquireLock(path)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	release()
}
