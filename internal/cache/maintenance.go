package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// List returns every artifact in the cache directory, annotated with the
// source URL from the index when known.
func (c *Cache) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(c.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cache dir: %w", err)
	}

	idx, err := LoadIndex(filepath.Join(c.Dir, indexFileName))
	if err != nil {
		c.Logger.Warnf("cache index unreadable: %v", err)
		idx = newIndex()
	}

	var out []Entry
	for _, de := range dirEntries {
		if !isArtifact(de) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entry, ok := idx.Get(de.Name())
		if !ok {
			entry = Entry{Key: de.Name()}
		}
		entry.Size = info.Size()
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Clean removes every cached artifact and the index. It returns the number of
// files removed and the bytes freed. Dry-run only reports.
func (c *Cache) Clean() (int, int64, error) {
	entries, err := c.List()
	if err != nil {
		return 0, 0, err
	}

	var removed int
	var freed int64
	var errs []error
	for _, e := range entries {
		if c.DryRun {
			c.Logger.Infof("[dry-run] would remove %s", e.Key)
			removed++
			freed += e.Size
			continue
		}
		if err := os.Remove(filepath.Join(c.Dir, e.Key)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s: %w", e.Key, err))
			continue
		}
		removed++
		freed += e.Size
	}
	if !c.DryRun {
		if err := os.Remove(filepath.Join(c.Dir, indexFileName)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove index: %w", err))
		}
	}
	return removed, freed, errors.Join(errs...)
}

func isArtifact(de os.DirEntry) bool {
	name := de.Name()
	if !de.Type().IsRegular() || name == indexFileName {
		return false
	}
	return !strings.Contains(name, ".tmp") && !strings.HasSuffix(name, ".part")
}
