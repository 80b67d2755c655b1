package io

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/OFFIS-RIT/depgraph/pkg/loader"

	"golang.org/x/sync/singleflight"
)

// IOSourceLoader reads a repository from the local filesystem with caching.
type IOSourceLoader struct {
	root string

	cache   map[string][]byte
	cacheMu sync.RWMutex
	group   singleflight.Group
}

// NewIOSourceLoader creates a loader rooted at dir.
func NewIOSourceLoader(dir string) *IOSourceLoader {
	return &IOSourceLoader{
		root:  dir,
		cache: make(map[string][]byte),
	}
}

// List returns every regular file below the root as a slash-separated
// relative path. Dependency and hidden directories are not descended into.
func (l *IOSourceLoader) List(ctx context.Context) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(l.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel != "." && loader.Skipped(rel+"/x") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			paths = append(paths, rel)
		}
		return nil
	})
	return paths, err
}

// Read returns the content of the file at the relative path p. Results are cached.
func (l *IOSourceLoader) Read(ctx context.Context, p string) ([]byte, error) {
	l.cacheMu.RLock()
	if cached, ok := l.cache[p]; ok {
		l.cacheMu.RUnlock()
		return cached, nil
	}
	l.cacheMu.RUnlock()

	result, err, _ := l.group.Do(p, func() (any, error) {
		l.cacheMu.RLock()
		if cached, ok := l.cache[p]; ok {
			l.cacheMu.RUnlock()
			return cached, nil
		}
		l.cacheMu.RUnlock()

		result, err := os.ReadFile(filepath.Join(l.root, filepath.FromSlash(p)))
		if err != nil {
			return nil, err
		}

		l.cacheMu.Lock()
		l.cache[p] = result
		l.cacheMu.Unlock()

		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}
