package storage

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// Local stores lake objects under a root directory, mapping key slashes to
// the platform path separator. Writes go through a temp file and rename so a
// partition file is never observed half-written.
type Local struct {
	root string
}

// NewLocal creates a local storage rooted at dir.
func NewLocal(dir string) *Local {
	return &Local{root: dir}
}

func (l *Local) fullPath(key string) string {
	return filepath.Join(l.root, filepath.FromSlash(key))
}

func (l *Local) Write(_ context.Context, key string, data []byte) error {
	path := l.fullPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "storage: create dir for %s", key)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return eris.Wrapf(err, "storage: write %s", key)
	}
	if err := os.Rename(tmp, path); err != nil {
		return eris.Wrapf(err, "storage: replace %s", key)
	}
	return nil
}

func (l *Local) Read(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(l.fullPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, eris.Wrapf(ErrNotFound, "key=%s", key)
		}
		return nil, eris.Wrapf(err, "storage: read %s", key)
	}
	return data, nil
}

func (l *Local) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() || strings.HasSuffix(path, ".tmp") {
			return nil
		}

		rel, err := filepath.Rel(l.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "storage: list %s", prefix)
	}

	sort.Strings(keys)
	return keys, nil
}
