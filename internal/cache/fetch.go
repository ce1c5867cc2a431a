package cache

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"devsetup/internal/checksum"
	"devsetup/internal/logx"
)

var (
	ErrDownloadFailed   = errors.New("download failed")
	ErrCacheWriteFailed = errors.New("cache write failed")
)

// Cache maps download URLs to artifacts stored under Dir, keyed by the URL's
// final path segment. Two URLs with the same basename share an entry.
type Cache struct {
	Dir        string
	Downloader Downloader
	// Mirror, when set, is consulted on local misses before the network.
	Mirror Mirror
	DryRun bool
	Logger *logx.Logger
}

// New returns a cache rooted at dir.
func New(dir string, downloader Downloader, logger *logx.Logger) *Cache {
	return &Cache{Dir: dir, Downloader: downloader, Logger: logger}
}

// Key derives the cache key for rawURL.
func Key(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse download url: %w", err)
	}
	base := path.Base(parsed.Path)
	if base == "." || base == "" || base == "/" {
		return "", fmt.Errorf("infer cache key from url: %s", rawURL)
	}
	return base, nil
}

// Path returns where the artifact for rawURL lives in the cache.
func (c *Cache) Path(rawURL string) (string, error) {
	key, err := Key(rawURL)
	if err != nil {
		return "", err
	}
	return filepath.Join(c.Dir, key), nil
}

// Fetch places the artifact for rawURL at dest. A cached copy is reused after
// re-verifying expected; a copy that fails verification is deleted and
// downloaded once more. In dry-run mode nothing is read, written or fetched.
func (c *Cache) Fetch(ctx context.Context, rawURL, dest, expected string) error {
	if c.DryRun {
		c.Logger.Infof("[dry-run] would fetch %s to %s", rawURL, dest)
		return nil
	}

	key, err := Key(rawURL)
	if err != nil {
		return err
	}
	cached := filepath.Join(c.Dir, key)
	verifier := checksum.Verifier{Logger: c.Logger}

	if info, err := os.Stat(cached); err == nil && info.Mode().IsRegular() {
		verifyErr := c.verify(verifier, cached, expected)
		if verifyErr == nil {
			if err := copyFile(cached, dest); err != nil {
				return fmt.Errorf("copy cached %s: %w", key, err)
			}
			c.Logger.Infof("cache hit for %s", key)
			return nil
		}
		c.Logger.Warnf("cached %s is stale, downloading again: %v", key, verifyErr)
		if err := os.Remove(cached); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.Logger.Warnf("remove stale cache entry %s: %v", cached, err)
		}
	}

	if c.fromMirror(ctx, verifier, key, dest, expected) {
		if err := c.store(rawURL, key, dest, expected); err != nil {
			c.Logger.Warnf("%v", err)
		}
		return nil
	}

	if c.Downloader == nil {
		return fmt.Errorf("%w: %s: no downloader configured", ErrDownloadFailed, rawURL)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("prepare download destination: %w", err)
	}
	if err := c.Downloader.Download(ctx, rawURL, dest); err != nil {
		_ = os.Remove(dest)
		c.Logger.Errorf("download %s failed: %v", rawURL, err)
		return fmt.Errorf("%w: %s: %w", ErrDownloadFailed, rawURL, err)
	}

	if err := c.verify(verifier, dest, expected); err != nil {
		_ = os.Remove(dest)
		return err
	}

	if err := c.store(rawURL, key, dest, expected); err != nil {
		c.Logger.Warnf("%v", err)
	}
	if c.Mirror != nil {
		if err := c.Mirror.Put(ctx, key, dest); err != nil {
			c.Logger.Warnf("upload %s to mirror: %v", key, err)
		}
	}
	return nil
}

func (c *Cache) verify(v checksum.Verifier, file, expected string) error {
	if strings.TrimSpace(expected) == "" {
		return nil
	}
	return v.Verify(file, expected)
}

func (c *Cache) fromMirror(ctx context.Context, v checksum.Verifier, key, dest, expected string) bool {
	if c.Mirror == nil {
		return false
	}
	found, err := c.Mirror.Get(ctx, key, dest)
	if err != nil {
		c.Logger.Warnf("mirror lookup for %s failed: %v", key, err)
		return false
	}
	if !found {
		c.Logger.Debugf("mirror has no %s", key)
		return false
	}
	if err := c.verify(v, dest, expected); err != nil {
		c.Logger.Warnf("mirror copy of %s rejected: %v", key, err)
		_ = os.Remove(dest)
		return false
	}
	c.Logger.Infof("fetched %s from mirror", key)
	return true
}

// store copies a verified artifact into the cache. Failures wrap
// ErrCacheWriteFailed and never fail the fetch.
func (c *Cache) store(rawURL, key, src, expected string) error {
	cached := filepath.Join(c.Dir, key)
	if err := copyFile(src, cached); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCacheWriteFailed, key, err)
	}

	entry := Entry{Key: key, URL: rawURL, Checksum: expected, StoredAt: time.Now().UTC()}
	if info, err := os.Stat(cached); err == nil {
		entry.Size = info.Size()
	}

	indexPath := filepath.Join(c.Dir, indexFileName)
	idx, err := LoadIndex(indexPath)
	if err != nil {
		c.Logger.Warnf("cache index unreadable, starting fresh: %v", err)
		idx = newIndex()
	}
	if prev := idx.Record(entry); prev != "" {
		c.Logger.Warnf("cache key %s now holds %s (previously %s)", key, rawURL, prev)
	}
	if err := idx.Save(indexPath); err != nil {
		c.Logger.Warnf("save cache index: %v", err)
	}
	return nil
}
