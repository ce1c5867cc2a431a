package installer

import (
	"context"
	"regexp"
	"strings"
	"time"
)

const versionTimeout = 5 * time.Second

var dottedVersion = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)+`)

// ExtractVersion returns the first dotted number in the first line of
// output, or "unknown".
func ExtractVersion(output string) string {
	line := firstLine(strings.TrimSpace(output))
	if match := dottedVersion.FindString(line); match != "" {
		return match
	}
	return "unknown"
}

func firstLine(text string) string {
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		return text[:idx]
	}
	return text
}

// detectVersion runs bin with args and extracts a version from its output.
// Some tools print their version on stderr.
func detectVersion(ctx context.Context, runner Runner, bin string, args []string) (string, error) {
	if len(args) == 0 {
		args = []string{"--version"}
	}
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	res, err := runner.Run(ctx, bin, args, RunOptions{})
	out := strings.TrimSpace(string(res.Stdout))
	if out == "" {
		out = strings.TrimSpace(string(res.Stderr))
	}
	if err != nil && out == "" {
		return "unknown", err
	}
	return ExtractVersion(out), nil
}
