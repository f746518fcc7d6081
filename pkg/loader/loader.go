package loader

import (
	"context"
	"fmt"
	"path"
	"regexp"
)

// ExtractedFile is one entry of the document extraction output: the path of
// the plain-text rendition of a source document and its length in characters.
type ExtractedFile struct {
	Path      string `json:"path"`
	CharCount int    `json:"char_count"`
}

// ExtractedFiles maps a source filename to its extracted text file.
type ExtractedFiles map[string]ExtractedFile

// GraphFile is a text file that can be segmented and indexed.
//
// The actual file content is retrieved via the associated GraphFileLoader.
type GraphFile struct {
	ID       string
	FilePath string
	Loader   GraphFileLoader
}

// NewGraphFile creates a GraphFile for an extracted text file.
func NewGraphFile(id string, file ExtractedFile, l GraphFileLoader) GraphFile {
	return GraphFile{
		ID:       id,
		FilePath: file.Path,
		Loader:   l,
	}
}

// GetText retrieves the raw text content of the file using its Loader.
func (f *GraphFile) GetText(ctx context.Context) ([]byte, error) {
	if f.Loader == nil {
		return nil, fmt.Errorf("no loader configured for %s", f.FilePath)
	}
	return f.Loader.GetFileText(ctx, *f)
}

// GraphFileLoader defines the interface for loading the contents of a GraphFile.
// Implementations may load files from disk, cloud storage, or other sources.
type GraphFileLoader interface {
	GetFileText(ctx context.Context, file GraphFile) ([]byte, error)
}

// SeriesSource stores chunk texts grouped by series. A series is written once
// by the segmentation step and read back, in order, by ingestion and graph
// building.
type SeriesSource interface {
	LoadSeries(ctx context.Context, seriesID string) ([]string, error)
	SaveSeries(ctx context.Context, seriesID string, chunks []string) ([]string, error)
	ListSeries(ctx context.Context) ([]string, error)
}

var seriesIDRe = regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`)

// ValidSeriesID reports whether id is usable as a directory or key prefix.
func ValidSeriesID(id string) bool {
	return id != "" && id != "." && id != ".." && seriesIDRe.MatchString(id)
}

// SeriesDir is the directory (or key prefix) holding the chunks of a series.
func SeriesDir(seriesID string) string {
	return "chunks_" + seriesID
}

// ChunkName is the file name of the i-th (1-based) chunk. The zero padding
// keeps lexical order equal to sequence order.
func ChunkName(i int) string {
	return fmt.Sprintf("chunk_%06d.txt", i)
}

// ChunkPath joins the series directory and chunk file name with forward slashes.
func ChunkPath(seriesID string, i int) string {
	return path.Join(SeriesDir(seriesID), ChunkName(i))
}

// CacheKey identifies file contents in loader caches.
func CacheKey(file GraphFile) string {
	if file.ID != "" {
		return file.ID + ":" + file.FilePath
	}
	return file.FilePath
}
