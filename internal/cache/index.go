package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const (
	indexVersion  = 1
	indexFileName = "index.json"
)

// Index records which URL produced each cached artifact. It only feeds
// `cache list` and collision warnings; lookups never depend on it.
type Index struct {
	Version int              `json:"version"`
	Entries map[string]Entry `json:"entries"`
}

// Entry describes one cached artifact.
type Entry struct {
	Key      string    `json:"key"`
	URL      string    `json:"url,omitempty"`
	Checksum string    `json:"checksum,omitempty"`
	Size     int64     `json:"size_bytes"`
	StoredAt time.Time `json:"stored_at,omitempty"`
}

// LoadIndex reads the index, returning an empty one when the file is missing.
func LoadIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return newIndex(), nil
		}
		return nil, fmt.Errorf("read index: %w", err)
	}

	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	idx.normalize()
	return &idx, nil
}

// Save writes the index atomically.
func (idx *Index) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure index dir: %w", err)
	}
	idx.normalize()

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp index: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace index: %w", err)
	}
	return nil
}

// Record stores entry and returns the URL previously cached under the same
// key when it differs.
func (idx *Index) Record(entry Entry) (collidedWith string) {
	idx.normalize()
	if prev, ok := idx.Entries[entry.Key]; ok && prev.URL != "" && prev.URL != entry.URL {
		collidedWith = prev.URL
	}
	idx.Entries[entry.Key] = entry
	return collidedWith
}

// Get returns the entry stored for key.
func (idx *Index) Get(key string) (Entry, bool) {
	if idx == nil || idx.Entries == nil {
		return Entry{}, false
	}
	e, ok := idx.Entries[key]
	return e, ok
}

// Forget drops key.
func (idx *Index) Forget(key string) {
	if idx == nil || idx.Entries == nil {
		return
	}
	delete(idx.Entries, key)
}

// Sorted returns the entries ordered by key.
func (idx *Index) Sorted() []Entry {
	out := make([]Entry, 0, len(idx.Entries))
	for _, e := range idx.Entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (idx *Index) normalize() {
	if idx.Version == 0 {
		idx.Version = indexVersion
	}
	if idx.Entries == nil {
		idx.Entries = map[string]Entry{}
	}
}

func newIndex() *Index {
	return &Index{
		Version: indexVersion,
		Entries: map[string]Entry{},
	}
}
