package io

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/loader"

	"golang.org/x/sync/singleflight"
)

// IOGraphFileLoader loads files directly from the local filesystem with caching.
type IOGraphFileLoader struct {
	cache   map[string][]byte
	cacheMu sync.RWMutex
	group   singleflight.Group
}

// NewIOGraphFileLoader creates a new filesystem-based file loader.
func NewIOGraphFileLoader() *IOGraphFileLoader {
	return &IOGraphFileLoader{
		cache: make(map[string][]byte),
	}
}

// GetFileText reads the file content from the filesystem. Results are cached
// and concurrent reads of the same file share one disk read.
func (l *IOGraphFileLoader) GetFileText(ctx context.Context, file loader.GraphFile) ([]byte, error) {
	key := loader.CacheKey(file)

	l.cacheMu.RLock()
	if cached, ok := l.cache[key]; ok {
		l.cacheMu.RUnlock()
		return cached, nil
	}
	l.cacheMu.RUnlock()

	result, err, _ := l.group.Do(key, func() (any, error) {
		data, err := os.ReadFile(file.FilePath)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, common.NewNotFoundError("loader.GetFileText", "file %s does not exist", file.FilePath)
			}
			return nil, err
		}

		l.cacheMu.Lock()
		l.cache[key] = data
		l.cacheMu.Unlock()

		return data, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]byte), nil
}

// DirSeriesSource keeps series as chunks_<series>/chunk_NNNNNN.txt files
// below a root directory.
type DirSeriesSource struct {
	root string
}

func NewDirSeriesSource(root string) *DirSeriesSource {
	return &DirSeriesSource{root: root}
}

// LoadSeries returns the chunk texts of a series in file name order.
func (s *DirSeriesSource) LoadSeries(ctx context.Context, seriesID string) ([]string, error) {
	if !loader.ValidSeriesID(seriesID) {
		return nil, common.NewConfigurationError("series.Load", "invalid series id %q", seriesID)
	}
	dir := filepath.Join(s.root, loader.SeriesDir(seriesID))
	files, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		if _, statErr := os.Stat(dir); statErr != nil {
			return nil, common.NewNotFoundError("series.Load", "series directory %s does not exist", dir)
		}
		return nil, common.NewNotFoundError("series.Load", "no chunks found in %s", dir)
	}
	sort.Strings(files)

	texts := make([]string, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read chunk %s: %w", f, err)
		}
		texts = append(texts, string(data))
	}
	return texts, nil
}

// SaveSeries writes one file per chunk and returns the written paths.
// An existing series directory is replaced.
func (s *DirSeriesSource) SaveSeries(ctx context.Context, seriesID string, chunks []string) ([]string, error) {
	if !loader.ValidSeriesID(seriesID) {
		return nil, common.NewConfigurationError("series.Save", "invalid series id %q", seriesID)
	}
	dir := filepath.Join(s.root, loader.SeriesDir(seriesID))
	if err := os.RemoveAll(dir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := filepath.Join(dir, loader.ChunkName(i+1))
		if err := os.WriteFile(p, []byte(chunk), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write chunk %s: %w", p, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// ListSeries returns the ids of all stored series, sorted.
func (s *DirSeriesSource) ListSeries(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if id, ok := strings.CutPrefix(e.Name(), "chunks_"); ok && id != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
