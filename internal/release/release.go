// Package release resolves "latest" component versions from GitHub releases.
package release

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/go-github/v69/github"

	"devsetup/internal/logx"
)

// DefaultTTL is how long a looked-up version is reused.
const DefaultTTL = 1 * time.Hour

var ErrNoRelease = errors.New("no published release")

type cacheEntry struct {
	Repo      string    `json:"repo"`
	Tag       string    `json:"tag"`
	Version   string    `json:"version"`
	FetchedAt time.Time `json:"fetched_at"`
}

type cacheFile struct {
	Entries map[string]cacheEntry `json:"entries"`
}

// Resolver looks up the latest release of a GitHub repository, caching the
// answer on disk.
type Resolver struct {
	Client    *github.Client
	CachePath string
	TTL       time.Duration
	Logger    *logx.Logger

	mu  sync.Mutex
	now func() time.Time
}

// New returns a Resolver using token when it is non-empty.
func New(cachePath, token string, logger *logx.Logger) *Resolver {
	client := github.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return &Resolver{Client: client, CachePath: cachePath, TTL: DefaultTTL, Logger: logger}
}

// Latest returns the version of the newest release of repo ("owner/name"),
// with any leading "v" or tool prefix removed.
func (r *Resolver) Latest(ctx context.Context, repo string) (string, error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" {
		return "", fmt.Errorf("invalid repository %q", repo)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cache := r.load()
	if entry, ok := cache.Entries[repo]; ok && r.clock().Sub(entry.FetchedAt) < r.ttl() {
		r.Logger.Debugf("latest %s from cache: %s", repo, entry.Version)
		return entry.Version, nil
	}

	rel, _, err := r.Client.Repositories.GetLatestRelease(ctx, owner, name)
	if err != nil {
		return "", fmt.Errorf("latest release of %s: %w", repo, err)
	}
	tag := rel.GetTagName()
	version := Normalize(tag)
	if version == "" {
		return "", fmt.Errorf("%w for %s", ErrNoRelease, repo)
	}
	r.Logger.Infof("latest %s release is %s", repo, version)

	cache.Entries[repo] = cacheEntry{Repo: repo, Tag: tag, Version: version, FetchedAt: r.clock()}
	if err := r.save(cache); err != nil {
		r.Logger.Warnf("save release cache: %v", err)
	}
	return version, nil
}

// Normalize strips everything before the first digit of a tag, so
// "v1.2.3" and "jq-1.7.1" both become plain versions.
func Normalize(tag string) string {
	tag = strings.TrimSpace(tag)
	if idx := strings.IndexAny(tag, "0123456789"); idx >= 0 {
		return tag[idx:]
	}
	return ""
}

func (r *Resolver) load() cacheFile {
	empty := cacheFile{Entries: map[string]cacheEntry{}}
	if r.CachePath == "" {
		return empty
	}
	data, err := os.ReadFile(r.CachePath)
	if err != nil {
		return empty
	}
	var cf cacheFile
	if err := json.Unmarshal(data, &cf); err != nil {
		r.Logger.Warnf("ignoring unreadable release cache %s: %v", r.CachePath, err)
		return empty
	}
	if cf.Entries == nil {
		cf.Entries = map[string]cacheEntry{}
	}
	return cf
}

func (r *Resolver) save(cf cacheFile) error {
	if r.CachePath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(r.CachePath), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cf, "", "  ")
	if err != nil {
		return err
	}
	tmp := r.CachePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, r.CachePath)
}

func (r *Resolver) ttl() time.Duration {
	if r.TTL <= 0 {
		return DefaultTTL
	}
	return r.TTL
}

func (r *Resolver) clock() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}
