package graph

import (
	"context"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/loader"
	"github.com/OFFIS-RIT/graphrag/pkg/logger"
	"github.com/OFFIS-RIT/graphrag/pkg/store"
)

var relationRe = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// ValidRelation reports whether relation can be used as an edge type.
func ValidRelation(relation string) bool {
	return relationRe.MatchString(relation)
}

var relationSeparators = strings.NewReplacer(" ", "_", "-", "_")

// NormalizeRelation turns a model supplied label such as "has price" or
// "located-in" into an edge type (HAS_PRICE, LOCATED_IN). The result still
// has to pass ValidRelation.
func NormalizeRelation(relation string) string {
	fields := strings.Fields(relation)
	return strings.ToUpper(relationSeparators.Replace(strings.Join(fields, " ")))
}

// TripletExtractor is implemented by *Extractor.
type TripletExtractor interface {
	Extract(ctx context.Context, text string) ([]common.Triplet, error)
}

// BuildResult summarizes one build.
type BuildResult struct {
	TripletsCreated int `json:"triplets_created"`
	ChunksUsed      int `json:"chunks_used"`
}

// Builder merges triplets into a GraphStore.
//
// A Builder should be created using NewBuilder.
type Builder struct {
	graph     store.GraphStore
	extractor TripletExtractor
	series    loader.SeriesSource
}

type NewBuilderParams struct {
	Graph     store.GraphStore
	Extractor TripletExtractor
	// Series is only needed by BuildFromSeries.
	Series loader.SeriesSource
}

func NewBuilder(params NewBuilderParams) (*Builder, error) {
	if params.Graph == nil {
		return nil, common.NewConfigurationError("graph.NewBuilder", "graph store is required")
	}
	return &Builder{
		graph:     params.Graph,
		extractor: params.Extractor,
		series:    params.Series,
	}, nil
}

// MergeTriplets writes triplets grouped by relation, one store call per
// relation in sorted order. Relations are normalized first. Exact duplicates
// and triplets with an empty endpoint are dropped, and every relation is
// validated before anything is written. It returns the number of distinct
// triplets submitted.
func (b *Builder) MergeTriplets(ctx context.Context, triplets []common.Triplet) (int, error) {
	groups := map[string][]common.Triplet{}
	seen := map[common.Triplet]struct{}{}
	total := 0
	for _, t := range triplets {
		t.Relation = NormalizeRelation(t.Relation)
		if !ValidRelation(t.Relation) {
			return 0, common.NewConfigurationError("graph.MergeTriplets", "invalid relation %q in triplet (%s, %s)", t.Relation, t.Subject, t.Object)
		}
		if t.Subject == "" || t.Object == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		groups[t.Relation] = append(groups[t.Relation], t)
		total++
	}

	for _, rel := range slices.Sorted(maps.Keys(groups)) {
		if err := b.graph.MergeTriplets(ctx, rel, groups[rel]); err != nil {
			return 0, fmt.Errorf("failed to merge %s triplets: %w", rel, err)
		}
		logger.Debug("Merged triplets", "relation", rel, "count", len(groups[rel]))
	}
	return total, nil
}

// CheckGraphExists reports whether any Chunk, Entity or Document node exists.
func (b *Builder) CheckGraphExists(ctx context.Context) (bool, error) {
	return b.graph.GraphExists(ctx)
}

// BuildFromChunks joins chunks with newlines, extracts triplets from the
// passage and merges them.
func (b *Builder) BuildFromChunks(ctx context.Context, chunks []string) (BuildResult, error) {
	passage := strings.Join(chunks, "\n")
	if strings.TrimSpace(passage) == "" {
		return BuildResult{}, common.NewValidationError("graph.BuildFromChunks", "no text to build from")
	}
	if b.extractor == nil {
		return BuildResult{}, common.NewConfigurationError("graph.BuildFromChunks", "no extractor configured")
	}

	triplets, err := b.extractor.Extract(ctx, passage)
	if err != nil {
		return BuildResult{}, err
	}
	n, err := b.MergeTriplets(ctx, triplets)
	if err != nil {
		return BuildResult{}, err
	}

	logger.Info("Knowledge graph updated", "triplets", n, "chunks", len(chunks))
	return BuildResult{TripletsCreated: n, ChunksUsed: len(chunks)}, nil
}

// BuildFromSeries loads a stored series and builds from its chunks.
func (b *Builder) BuildFromSeries(ctx context.Context, seriesID string) (BuildResult, error) {
	if b.series == nil {
		return BuildResult{}, common.NewConfigurationError("graph.BuildFromSeries", "no series source configured")
	}
	chunks, err := b.series.LoadSeries(ctx, seriesID)
	if err != nil {
		return BuildResult{}, err
	}
	return b.BuildFromChunks(ctx, chunks)
}
