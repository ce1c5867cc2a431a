package checksum

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"devsetup/internal/logx"
)

// Skip is the sentinel expected value that bypasses verification.
const Skip = "skip"

var (
	ErrChecksumMismatch     = errors.New("checksum mismatch")
	ErrUnsupportedAlgorithm = errors.New("unsupported checksum algorithm")
)

// MismatchError reports both digests of a failed verification.
type MismatchError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: expected %s, got %s", e.Path, e.Expected, e.Actual)
}

func (e *MismatchError) Is(target error) bool {
	return target == ErrChecksumMismatch
}

// Verifier checks files against "<algorithm>:<hex>" digests.
type Verifier struct {
	Logger *logx.Logger
}

// Verify is shorthand for a Verifier without a logger.
func Verify(path, expected string) error {
	return Verifier{}.Verify(path, expected)
}

// Verify hashes path with the algorithm named in expected and compares the
// hex digest case-sensitively. An empty or "skip" expectation passes with a
// warning.
func (v Verifier) Verify(path, expected string) error {
	expected = strings.TrimSpace(expected)
	if expected == "" || expected == Skip {
		v.Logger.Warnf("checksum verification skipped for %s", path)
		return nil
	}

	algorithm, want, err := Parse(expected)
	if err != nil {
		return err
	}

	got, err := Compute(path, algorithm)
	if err != nil {
		return err
	}
	if got != want {
		v.Logger.Errorf("checksum mismatch for %s: expected %s:%s, got %s:%s", path, algorithm, want, algorithm, got)
		return &MismatchError{
			Path:     path,
			Expected: Format(algorithm, want),
			Actual:   Format(algorithm, got),
		}
	}
	v.Logger.Debugf("checksum ok for %s (%s)", path, algorithm)
	return nil
}

// Parse splits "<algorithm>:<hex>" and validates the algorithm.
func Parse(expected string) (algorithm, digest string, err error) {
	algorithm, digest, ok := strings.Cut(expected, ":")
	if !ok {
		return "", "", fmt.Errorf("%w: %q has no algorithm prefix", ErrUnsupportedAlgorithm, expected)
	}
	if _, err := newHash(algorithm); err != nil {
		return "", "", err
	}
	return algorithm, digest, nil
}

// Compute returns the lowercase hex digest of path.
func Compute(path, algorithm string) (string, error) {
	h, err := newHash(algorithm)
	if err != nil {
		return "", err
	}

	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for checksum: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(h, file); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Format renders a digest as "<algorithm>:<hex>".
func Format(algorithm, digest string) string {
	return algorithm + ":" + digest
}

func newHash(algorithm string) (hash.Hash, error) {
	switch algorithm {
	case "sha256":
		return sha256.New(), nil
	case "sha512":
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}
}
