package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"devsetup/internal/logx"
)

const defaultMinParallelSize = 1 << 20

var errRangesUnsupported = errors.New("server does not support ranged requests")

// ParallelDownloader splits a download into byte ranges fetched over several
// connections. It falls back to a single stream when the server does not
// advertise ranges or the ranged attempt fails.
type ParallelDownloader struct {
	Client      *http.Client
	Connections int
	Attempts    int
	RetryWait   time.Duration
	// MinSize is the smallest body worth splitting.
	MinSize   int64
	UserAgent string
	Fallback  Downloader
	Logger    *logx.Logger
}

// NewParallelDownloader builds a ranged downloader whose fallback is an
// HTTPDownloader with the same retry budget.
func NewParallelDownloader(connections, attempts int, wait, timeout time.Duration, logger *logx.Logger) *ParallelDownloader {
	return &ParallelDownloader{
		Client:      &http.Client{Timeout: timeout},
		Connections: connections,
		Attempts:    attempts,
		RetryWait:   wait,
		Fallback:    NewHTTPDownloader(attempts, wait, timeout, logger),
		Logger:      logger,
	}
}

func (p *ParallelDownloader) Download(ctx context.Context, url, dest string) error {
	err := p.ranged(ctx, url, dest)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return err
	}
	if errors.Is(err, errRangesUnsupported) {
		p.Logger.Debugf("single-stream download for %s: %v", url, err)
	} else {
		p.Logger.Warnf("parallel download of %s failed, falling back to single stream: %v", url, err)
	}
	return p.fallback().Download(ctx, url, dest)
}

func (p *ParallelDownloader) ranged(ctx context.Context, url, dest string) error {
	connections := p.Connections
	if connections < 2 {
		return fmt.Errorf("%w: %d connection(s) configured", errRangesUnsupported, connections)
	}

	size, err := p.contentLength(ctx, url)
	if err != nil {
		return err
	}
	minSize := p.MinSize
	if minSize <= 0 {
		minSize = defaultMinParallelSize
	}
	if size < minSize {
		return fmt.Errorf("%w: body of %d bytes is below %d", errRangesUnsupported, size, minSize)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("ensure dest dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), "download-*.part")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if err := tmp.Truncate(size); err != nil {
		tmp.Close()
		return fmt.Errorf("preallocate %s: %w", tmpPath, err)
	}

	partSize := (size + int64(connections) - 1) / int64(connections)
	g, gctx := errgroup.WithContext(ctx)
	for start := int64(0); start < size; start += partSize {
		start, end := start, min(start+partSize, size)-1
		g.Go(func() error {
			what := fmt.Sprintf("range %d-%d of %s", start, end, url)
			_, err := retry(gctx, p.Logger, what, p.attempts(), p.RetryWait, func() error {
				return p.fetchRange(gctx, url, tmp, start, end)
			})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("finalize download: %w", err)
	}
	p.Logger.Infof("downloaded %s over %d connections", url, connections)
	return nil
}

func (p *ParallelDownloader) contentLength(ctx context.Context, url string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent(p.UserAgent))

	resp, err := httpClient(p.Client).Do(req)
	if err != nil {
		return 0, fmt.Errorf("head %s: %w", url, err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: HEAD returned %s", errRangesUnsupported, resp.Status)
	}
	if resp.Header.Get("Accept-Ranges") != "bytes" || resp.ContentLength <= 0 {
		return 0, errRangesUnsupported
	}
	return resp.ContentLength, nil
}

func (p *ParallelDownloader) fetchRange(ctx context.Context, url string, dst io.WriterAt, start, end int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent(p.UserAgent))
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))

	resp, err := httpClient(p.Client).Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		return permanent(fmt.Errorf("%w: range request returned %s", errRangesUnsupported, resp.Status))
	}

	want := end - start + 1
	n, err := io.Copy(io.NewOffsetWriter(dst, start), io.LimitReader(resp.Body, want))
	if err != nil {
		return err
	}
	if n != want {
		return fmt.Errorf("short range: got %d of %d bytes", n, want)
	}
	return nil
}

func (p *ParallelDownloader) attempts() int {
	if p.Attempts <= 0 {
		return defaultAttempts
	}
	return p.Attempts
}

func (p *ParallelDownloader) fallback() Downloader {
	if p.Fallback != nil {
		return p.Fallback
	}
	return &HTTPDownloader{
		Client:    p.Client,
		Attempts:  p.Attempts,
		RetryWait: p.RetryWait,
		UserAgent: p.UserAgent,
		Logger:    p.Logger,
	}
}
