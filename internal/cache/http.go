package cache

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"devsetup/internal/logx"
)

const (
	defaultAttempts  = 3
	defaultUserAgent = "devsetup/1.0"
)

// Downloader fetches a URL into a local file.
type Downloader interface {
	Download(ctx context.Context, url, dest string) error
}

// HTTPDownloader is the single-stream downloader with bounded retries.
type HTTPDownloader struct {
	Client    *http.Client
	Attempts  int
	RetryWait time.Duration
	UserAgent string
	Logger    *logx.Logger
}

// NewHTTPDownloader returns a downloader with the given retry budget.
func NewHTTPDownloader(attempts int, wait, timeout time.Duration, logger *logx.Logger) *HTTPDownloader {
	return &HTTPDownloader{
		Client:    &http.Client{Timeout: timeout},
		Attempts:  attempts,
		RetryWait: wait,
		Logger:    logger,
	}
}

// Download fetches url to dest, replacing dest only after the body has been
// fully written.
func (d *HTTPDownloader) Download(ctx context.Context, url, dest string) error {
	d.Logger.Infof("downloading %s", url)
	attempts, err := retry(ctx, d.Logger, "download "+url, d.attempts(), d.RetryWait, func() error {
		return d.once(ctx, url, dest)
	})
	if err != nil {
		return err
	}
	d.Logger.Debugf("download of %s completed in %d attempt(s)", url, attempts)
	return nil
}

func (d *HTTPDownloader) once(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent(d.UserAgent))

	resp, err := httpClient(d.Client).Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, http.StatusOK); err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}

	n, err := writeStream(resp.Body, dest)
	if err != nil {
		return err
	}
	if resp.ContentLength > 0 && n != resp.ContentLength {
		return fmt.Errorf("download %s: short body (%d of %d bytes)", url, n, resp.ContentLength)
	}
	return nil
}

func (d *HTTPDownloader) attempts() int {
	if d.Attempts <= 0 {
		return defaultAttempts
	}
	return d.Attempts
}

// checkStatus accepts want; client errors other than 408 and 429 are not
// retried.
func checkStatus(resp *http.Response, want int) error {
	if resp.StatusCode == want {
		return nil
	}
	err := fmt.Errorf("unexpected status %s", resp.Status)
	switch {
	case resp.StatusCode == http.StatusRequestTimeout, resp.StatusCode == http.StatusTooManyRequests:
		return err
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return permanent(err)
	default:
		return err
	}
}

func httpClient(c *http.Client) *http.Client {
	if c == nil {
		return http.DefaultClient
	}
	return c
}

func userAgent(ua string) string {
	if ua == "" {
		return defaultUserAgent
	}
	return ua
}
