package io

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/loader"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirSeriesSourceRoundTripKeepsOrder(t *testing.T) {
	ctx := context.Background()
	src := NewDirSeriesSource(t.TempDir())

	chunks := make([]string, 12)
	for i := range chunks {
		chunks[i] = string(rune('a' + i))
	}

	paths, err := src.SaveSeries(ctx, "110625-022017", chunks)
	require.NoError(t, err)
	require.Len(t, paths, 12)

	got, err := src.LoadSeries(ctx, "110625-022017")
	require.NoError(t, err)
	// chunk_000010 must sort after chunk_000009
	assert.Equal(t, chunks, got)

	ids, err := src.ListSeries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"110625-022017"}, ids)
}

func TestDirSeriesSourceMissingSeries(t *testing.T) {
	src := NewDirSeriesSource(t.TempDir())
	_, err := src.LoadSeries(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestDirSeriesSourceEmptySeries(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "chunks_empty"), 0o755))

	_, err := NewDirSeriesSource(root).LoadSeries(context.Background(), "empty")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestDirSeriesSourceRejectsTraversal(t *testing.T) {
	src := NewDirSeriesSource(t.TempDir())
	_, err := src.LoadSeries(context.Background(), "../etc")
	assert.True(t, errors.Is(err, common.ErrConfiguration))
}

func TestIOGraphFileLoaderCaches(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(p, []byte("first"), 0o644))

	l := NewIOGraphFileLoader()
	f := loader.NewGraphFile("doc", loader.ExtractedFile{Path: p, CharCount: 5}, l)

	text, err := f.GetText(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", string(text))

	require.NoError(t, os.WriteFile(p, []byte("second"), 0o644))
	text, err = f.GetText(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", string(text), "second read should be served from cache")
}

func TestIOGraphFileLoaderMissingFile(t *testing.T) {
	l := NewIOGraphFileLoader()
	_, err := l.GetFileText(context.Background(), loader.GraphFile{FilePath: filepath.Join(t.TempDir(), "x.txt")})
	assert.True(t, errors.Is(err, common.ErrNotFound))
}
