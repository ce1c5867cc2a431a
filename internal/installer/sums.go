package installer

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxSumsSize = 1 << 20

// remoteChecksum downloads a published checksum file and returns the
// "sha256:<hex>" digest for artifact. The file may hold a single digest or
// sha256sum style "<hex>  <name>" lines.
func (e *Env) remoteChecksum(ctx context.Context, sumsURL, artifact string) (string, error) {
	client := e.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sumsURL, nil)
	if err != nil {
		return "", fmt.Errorf("build checksum request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch checksums %s: %w", sumsURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch checksums %s: %s", sumsURL, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSumsSize))
	if err != nil {
		return "", fmt.Errorf("read checksums %s: %w", sumsURL, err)
	}
	digest, err := ParseSums(data, artifact)
	if err != nil {
		return "", fmt.Errorf("%s: %w", sumsURL, err)
	}
	return "sha256:" + digest, nil
}

// ParseSums finds the digest for name in a checksum file.
func ParseSums(data []byte, name string) (string, error) {
	var lone []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		switch len(fields) {
		case 0:
			continue
		case 1:
			lone = append(lone, fields[0])
		default:
			if strings.TrimPrefix(fields[len(fields)-1], "*") == name {
				return strings.ToLower(fields[0]), nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	if len(lone) == 1 {
		return strings.ToLower(lone[0]), nil
	}
	return "", fmt.Errorf("no checksum listed for %s", name)
}
