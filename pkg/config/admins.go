package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// AdminSet is the moderator allow-list. Reads are lock free and the whole
// set is swapped on reload, so a privileged call always sees a complete list.
type AdminSet struct {
	ids atomic.Pointer[map[int64]struct{}]
}

// NewAdminSet builds an allow-list from ids
func NewAdminSet(ids []int64) *AdminSet {
	a := &AdminSet{}
	a.Replace(ids)
	return a
}

// Contains reports whether id is an admin
func (a *AdminSet) Contains(id int64) bool {
	if a == nil {
		return false
	}
	m := a.ids.Load()
	if m == nil {
		return false
	}
	_, ok := (*m)[id]
	return ok
}

// IDs returns the admins in ascending order
func (a *AdminSet) IDs() []int64 {
	if a == nil {
		return nil
	}
	m := a.ids.Load()
	if m == nil {
		return nil
	}
	out := make([]int64, 0, len(*m))
	for id := range *m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Replace swaps the allow-list
func (a *AdminSet) Replace(ids []int64) {
	m := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	a.ids.Store(&m)
}

// ParseAdminIDs parses a comma separated id list ("161261652,42")
func ParseAdminIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return ids, fmt.Errorf("invalid ADMIN_IDS entry %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func mergeIDs(lists ...[]int64) []int64 {
	seen := map[int64]struct{}{}
	var out []int64
	for _, l := range lists {
		for _, id := range l {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// WatchAdmins reloads the admin allow-list whenever the YAML config file changes.
// It blocks until ctx is done. The directory is watched because editors
// usually replace the file instead of writing it in place.
func (c *Config) WatchAdmins(ctx context.Context, log *zap.Logger) error {
	if c.ConfigFile == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(c.ConfigFile)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", target, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if err := c.ReloadAdmins(); err != nil {
				log.Warn("admin list reload failed", zap.String("file", target), zap.Error(err))
				continue
			}
			log.Info("admin list reloaded", zap.Int("admins", len(c.Admins.IDs())))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watcher error", zap.Error(err))
		}
	}
}
