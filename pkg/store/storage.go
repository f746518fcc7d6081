package store

import (
	"context"
	"regexp"
	"strings"

	"github.com/OFFIS-RIT/graphrag/pkg/common"
)

// Similarity is the vector similarity function of an index.
type Similarity string

const (
	SimilarityCosine     Similarity = "cosine"
	SimilarityEuclidean  Similarity = "euclidean"
	SimilarityDotProduct Similarity = "dotproduct"
)

// ParseSimilarity validates a similarity name. The empty string selects
// cosine.
func ParseSimilarity(name string) (Similarity, error) {
	s := Similarity(strings.ToLower(strings.TrimSpace(name)))
	switch s {
	case "":
		return SimilarityCosine, nil
	case SimilarityCosine, SimilarityEuclidean, SimilarityDotProduct:
		return s, nil
	}
	return "", common.NewConfigurationError("store.ParseSimilarity", "unsupported similarity %q", name)
}

const DefaultIndexName = "chunk_embeddings"

var invalidIndexChars = regexp.MustCompile(`[^A-Za-z0-9_]`)

// SanitizeIndexName replaces every character outside [A-Za-z0-9_] with '_'.
func SanitizeIndexName(name string) string {
	return invalidIndexChars.ReplaceAllString(name, "_")
}

// VectorIndex persists chunk vectors and answers nearest neighbour queries.
//
// Implementations hold one named index over the embedding property of Chunk
// nodes.
type VectorIndex interface {
	Name() string
	IndexExists(ctx context.Context) (bool, error)
	// IndexDimension returns 0 when the index does not exist.
	IndexDimension(ctx context.Context) (int, error)
	CreateIndex(ctx context.Context, dim int, similarity Similarity) error
	UpsertChunks(ctx context.Context, rows []common.Chunk) error
	LinkSequence(ctx context.Context, links []common.SequenceLink) error
	SearchSimilar(ctx context.Context, vec []float32, k int) ([]common.VectorHit, error)
	TestConnection(ctx context.Context) error
}

// GraphStore persists entity triplets and expands entity neighbourhoods.
type GraphStore interface {
	// MergeTriplets merges all rows under a single relation type. relation
	// must already be validated; it is interpolated as a relationship type.
	MergeTriplets(ctx context.Context, relation string, rows []common.Triplet) error
	// GraphExists reports whether any Chunk, Entity or Document node exists.
	GraphExists(ctx context.Context) (bool, error)
	ExpandEntities(ctx context.Context, names []string, hops, limit int) ([]common.EntityHit, error)
	ListVectorIndexes(ctx context.Context) ([]common.IndexInfo, error)
}

// Store is implemented by backends that serve both roles.
type Store interface {
	VectorIndex
	GraphStore
	Close(ctx context.Context) error
}
