// Package ingest embeds segmented text and persists it as a linked chain of
// Chunk nodes.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/embedding"
	"github.com/OFFIS-RIT/graphrag/pkg/loader"
	"github.com/OFFIS-RIT/graphrag/pkg/logger"
	"github.com/OFFIS-RIT/graphrag/pkg/store"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Result describes one ingestion run.
type Result struct {
	RunID     string `json:"run_id"`
	SeriesID  string `json:"series_id"`
	Count     int    `json:"count"`
	Dimension int    `json:"dimension"`
	Index     string `json:"index"`
}

// Pipeline orchestrates embedding and persistence. It holds no state between
// calls; re-running IngestSeries with the same input reproduces the same ids
// and links.
//
// A Pipeline should be created using NewPipeline.
type Pipeline struct {
	embedder embedding.ConfigProvider
	provider embedding.Provider
	index    store.VectorIndex
	series   loader.SeriesSource
	decorate func(embedding.Provider) embedding.Provider
	now      func() time.Time
}

// NewPipelineParams configures a Pipeline. Exactly one of Provider or
// Config must be set; Config is resolved on every run so a newly selected
// embedder takes effect without a restart.
type NewPipelineParams struct {
	Provider embedding.Provider
	Config   embedding.ConfigProvider
	Index    store.VectorIndex
	Series   loader.SeriesSource
	// Decorate wraps every resolved provider, e.g. with a cache or metrics.
	Decorate func(embedding.Provider) embedding.Provider
}

func NewPipeline(params NewPipelineParams) (*Pipeline, error) {
	if params.Index == nil {
		return nil, common.NewConfigurationError("ingest.NewPipeline", "vector index is required")
	}
	if params.Provider == nil && params.Config == nil {
		return nil, common.NewConfigurationError("ingest.NewPipeline", "embedding provider or config is required")
	}
	return &Pipeline{
		embedder: params.Config,
		provider: params.Provider,
		index:    params.Index,
		series:   params.Series,
		decorate: params.Decorate,
		now:      time.Now,
	}, nil
}

func (p *Pipeline) resolveProvider(ctx context.Context) (embedding.Provider, error) {
	var provider embedding.Provider = p.provider
	if provider == nil {
		bp, err := embedding.FromConfigProvider(ctx, p.embedder)
		if err != nil {
			return nil, err
		}
		provider = bp
	}
	if p.decorate != nil {
		provider = p.decorate(provider)
	}
	return provider, nil
}

// ChunkID returns the identifier of the i-th (1-based) chunk of a series.
func ChunkID(seriesID string, i int) string {
	return fmt.Sprintf("%s-%06d", seriesID, i)
}

// IngestSeries embeds texts, creates the vector index when absent and
// upserts one chunk per text followed by the NEXT_CHUNK links.
//
// The steps are not transactional. A failure after the upsert leaves
// chunks without links; calling IngestSeries again repairs the series.
func (p *Pipeline) IngestSeries(ctx context.Context, texts []string, seriesID string, similarity store.Similarity) (Result, error) {
	if seriesID == "" {
		return Result{}, common.NewConfigurationError("ingest.IngestSeries", "series id is required")
	}
	if len(texts) == 0 {
		return Result{}, common.NewConfigurationError("ingest.IngestSeries", "no texts to ingest for series %s", seriesID)
	}
	sim, err := store.ParseSimilarity(string(similarity))
	if err != nil {
		return Result{}, err
	}
	provider, err := p.resolveProvider(ctx)
	if err != nil {
		return Result{}, err
	}

	runID, err := gonanoid.New()
	if err != nil {
		return Result{}, fmt.Errorf("failed to generate run id: %w", err)
	}
	log := logger.With("run", runID, "series", seriesID)
	log.Info("Ingesting series", "chunks", len(texts), "provider", provider.Name(), "model", provider.Model())

	vectors, err := provider.BatchEmbed(ctx, texts)
	if err != nil {
		return Result{}, fmt.Errorf("failed to embed series %s: %w", seriesID, err)
	}
	dim, err := batchDimension(vectors)
	if err != nil {
		return Result{}, err
	}
	if err := p.ensureIndex(ctx, dim, sim); err != nil {
		return Result{}, err
	}

	ts := p.now().UTC().Truncate(time.Second)
	rows := make([]common.Chunk, len(texts))
	for i, text := range texts {
		rows[i] = common.Chunk{
			ID:        ChunkID(seriesID, i+1),
			Text:      text,
			Embedding: vectors[i],
			Series:    seriesID,
			IngestTS:  ts,
		}
	}
	if err := p.index.UpsertChunks(ctx, rows); err != nil {
		return Result{}, fmt.Errorf("failed to upsert chunks of series %s: %w", seriesID, err)
	}

	links := make([]common.SequenceLink, 0, len(rows)-1)
	for i := 0; i+1 < len(rows); i++ {
		links = append(links, common.SequenceLink{From: rows[i].ID, To: rows[i+1].ID})
	}
	if err := p.index.LinkSequence(ctx, links); err != nil {
		log.Warn("Chunks persisted without sequence links", "err", err)
		return Result{}, fmt.Errorf("failed to link chunks of series %s: %w", seriesID, err)
	}

	log.Info("Series ingested", "chunks", len(rows), "dim", dim, "index", p.index.Name())
	return Result{
		RunID:     runID,
		SeriesID:  seriesID,
		Count:     len(rows),
		Dimension: dim,
		Index:     p.index.Name(),
	}, nil
}

// IngestFromSource loads the texts of a stored series and ingests them.
func (p *Pipeline) IngestFromSource(ctx context.Context, seriesID string, similarity store.Similarity) (Result, error) {
	if p.series == nil {
		return Result{}, common.NewConfigurationError("ingest.IngestFromSource", "no series source configured")
	}
	texts, err := p.series.LoadSeries(ctx, seriesID)
	if err != nil {
		return Result{}, err
	}
	return p.IngestSeries(ctx, texts, seriesID, similarity)
}

// batchDimension checks that every vector has the length of the first.
func batchDimension(vectors [][]float32) (int, error) {
	if len(vectors) == 0 {
		return 0, common.NewConfigurationError("ingest", "embedder returned no vectors")
	}
	dim := len(vectors[0])
	if dim == 0 {
		return 0, common.NewConfigurationError("ingest", "embedder returned an empty vector")
	}
	for i, v := range vectors {
		if len(v) != dim {
			return 0, common.NewConfigurationError("ingest", "vector %d has dimension %d, expected %d", i, len(v), dim)
		}
	}
	return dim, nil
}

// ensureIndex creates the index on first use and rejects vectors that do
// not match an existing index.
func (p *Pipeline) ensureIndex(ctx context.Context, dim int, sim store.Similarity) error {
	exists, err := p.index.IndexExists(ctx)
	if err != nil {
		return fmt.Errorf("failed to inspect index %s: %w", p.index.Name(), err)
	}
	if !exists {
		logger.Info("Creating vector index", "index", p.index.Name(), "dim", dim, "similarity", sim)
		return p.index.CreateIndex(ctx, dim, sim)
	}

	current, err := p.index.IndexDimension(ctx)
	if err != nil {
		return fmt.Errorf("failed to read dimension of index %s: %w", p.index.Name(), err)
	}
	if current != 0 && current != dim {
		return common.NewConfigurationError(
			"ingest",
			"index %s has dimension %d but the embedder produces %d; select a matching embedder or a new index name",
			p.index.Name(), current, dim,
		)
	}
	return nil
}
