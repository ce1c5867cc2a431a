// Package platform identifies the host the provisioner runs on and checks
// the preconditions for a run.
package platform

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"
)

var (
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	ErrUnsupportedArch     = errors.New("unsupported architecture")
	ErrInsufficientSpace   = errors.New("insufficient disk space")
	ErrOffline             = errors.New("network unreachable")
)

const OSReleasePath = "/etc/os-release"

// Arch names the machine architecture the way each download source does.
type Arch struct {
	GOARCH string `json:"goarch"` // amd64, arm64
	Uname  string `json:"uname"`  // x86_64, aarch64
	Deb    string `json:"deb"`    // amd64, arm64
}

// DetectArch returns the architecture of the running binary.
func DetectArch() (Arch, error) {
	return ArchFor(runtime.GOARCH)
}

// ArchFor maps a GOARCH value to an Arch.
func ArchFor(goarch string) (Arch, error) {
	switch goarch {
	case "amd64":
		return Arch{GOARCH: "amd64", Uname: "x86_64", Deb: "amd64"}, nil
	case "arm64":
		return Arch{GOARCH: "arm64", Uname: "aarch64", Deb: "arm64"}, nil
	default:
		return Arch{}, fmt.Errorf("%w: %s", ErrUnsupportedArch, goarch)
	}
}

// Info is the subset of os-release the provisioner reads.
type Info struct {
	ID         string   `json:"id"`
	IDLike     []string `json:"id_like,omitempty"`
	VersionID  string   `json:"version_id,omitempty"`
	Codename   string   `json:"codename,omitempty"`
	PrettyName string   `json:"pretty_name,omitempty"`
}

// DebianFamily reports whether apt-based installs apply to the host.
func (i Info) DebianFamily() bool {
	if i.ID == "debian" || i.ID == "ubuntu" {
		return true
	}
	for _, like := range i.IDLike {
		if like == "debian" || like == "ubuntu" {
			return true
		}
	}
	return false
}

// ReadOSRelease parses the os-release file at path.
func ReadOSRelease(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("read %s: %w", path, err)
	}
	defer f.Close()
	return ParseOSRelease(f)
}

// ParseOSRelease reads KEY=value lines, unquoting values.
func ParseOSRelease(r io.Reader) (Info, error) {
	var info Info
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.Trim(value, `"'`)
		switch key {
		case "ID":
			info.ID = strings.ToLower(value)
		case "ID_LIKE":
			info.IDLike = strings.Fields(strings.ToLower(value))
		case "VERSION_ID":
			info.VersionID = value
		case "VERSION_CODENAME":
			info.Codename = value
		case "PRETTY_NAME":
			info.PrettyName = value
		}
	}
	if err := scanner.Err(); err != nil {
		return Info{}, fmt.Errorf("parse os-release: %w", err)
	}
	return info, nil
}

// Detect reads the host's os-release and rejects non-Debian systems.
func Detect(path string) (Info, error) {
	if path == "" {
		path = OSReleasePath
	}
	info, err := ReadOSRelease(path)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrUnsupportedPlatform, err)
	}
	if !info.DebianFamily() {
		return info, fmt.Errorf("%w: %s is not Debian based", ErrUnsupportedPlatform, info.ID)
	}
	return info, nil
}

// CheckDiskSpace fails when the filesystem holding dir has less than minMB
// megabytes available. A zero minimum disables the check.
func CheckDiskSpace(dir string, minMB int64) error {
	if minMB <= 0 {
		return nil
	}
	free, err := FreeSpace(dir)
	if err != nil {
		return fmt.Errorf("check free space on %s: %w", dir, err)
	}
	if freeMB := free / (1024 * 1024); freeMB < minMB {
		return fmt.Errorf("%w: %d MB free on %s, need %d MB", ErrInsufficientSpace, freeMB, dir, minMB)
	}
	return nil
}

const connectivityTimeout = 5 * time.Second

// CheckConnectivity sends a HEAD request to rawURL. Any HTTP response counts
// as connected.
func CheckConnectivity(ctx context.Context, client *http.Client, rawURL string) error {
	if rawURL == "" {
		return nil
	}
	if client == nil {
		client = http.DefaultClient
	}
	ctx, cancel := context.WithTimeout(ctx, connectivityTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build connectivity request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOffline, err)
	}
	resp.Body.Close()
	return nil
}
