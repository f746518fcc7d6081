// Package app builds the long lived collaborators shared by the server, the
// worker and the CLI from a config.Config.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/graphrag/internal/config"
	"github.com/OFFIS-RIT/graphrag/internal/metrics"
	"github.com/OFFIS-RIT/graphrag/internal/storage"
	"github.com/OFFIS-RIT/graphrag/internal/util"
	"github.com/OFFIS-RIT/graphrag/pkg/ai"
	oai "github.com/OFFIS-RIT/graphrag/pkg/ai/ollama"
	gai "github.com/OFFIS-RIT/graphrag/pkg/ai/openai"
	"github.com/OFFIS-RIT/graphrag/pkg/embedding"
	"github.com/OFFIS-RIT/graphrag/pkg/graph"
	"github.com/OFFIS-RIT/graphrag/pkg/ingest"
	"github.com/OFFIS-RIT/graphrag/pkg/loader"
	lio "github.com/OFFIS-RIT/graphrag/pkg/loader/io"
	ls3 "github.com/OFFIS-RIT/graphrag/pkg/loader/s3"
	"github.com/OFFIS-RIT/graphrag/pkg/logger"
	"github.com/OFFIS-RIT/graphrag/pkg/query"
	"github.com/OFFIS-RIT/graphrag/pkg/segment"
	"github.com/OFFIS-RIT/graphrag/pkg/store"
	"github.com/OFFIS-RIT/graphrag/pkg/store/memory"
	"github.com/OFFIS-RIT/graphrag/pkg/store/neo4j"

	"github.com/redis/go-redis/v9"
)

// App holds one instance of every collaborator. Per request objects such as
// the ingestion pipeline are cheap to build from it.
type App struct {
	Config    config.Config
	Store     store.Store
	Embedders embedding.ConfigProvider
	// Provider, when set, is used instead of resolving Embedders.
	Provider  embedding.Provider
	Series    loader.SeriesSource
	Files     loader.GraphFileLoader
	Chat      ai.GraphAIClient
	Segmenter *segment.Segmenter
	Metrics   *metrics.Metrics
	Redis     *redis.Client
}

// Option overrides a collaborator, mainly for tests.
type Option func(*App)

func WithStore(s store.Store) Option { return func(a *App) { a.Store = s } }

func WithChat(c ai.GraphAIClient) Option { return func(a *App) { a.Chat = c } }

func WithEmbedders(cp embedding.ConfigProvider) Option {
	return func(a *App) { a.Embedders = cp }
}

func WithSeries(s loader.SeriesSource) Option { return func(a *App) { a.Series = s } }

// WithProvider pins the embedding provider and bypasses the stored selection.
func WithProvider(p embedding.Provider) Option { return func(a *App) { a.Provider = p } }

// New builds every collaborator that was not supplied through opts.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	a := &App{Config: cfg, Metrics: metrics.New()}
	for _, opt := range opts {
		opt(a)
	}

	seg, err := segment.NewSegmenter(cfg.SegmenterParams())
	if err != nil {
		return nil, err
	}
	a.Segmenter = seg

	if a.Embedders == nil {
		a.Embedders = embedding.NewFileConfigProvider(cfg.EmbedderFile)
	}
	if a.Chat == nil {
		chat, err := NewChatClient(cfg.AI)
		if err != nil {
			return nil, err
		}
		a.Chat = chat
	}
	if a.Series == nil || a.Files == nil {
		if err := a.initStorage(ctx); err != nil {
			return nil, err
		}
	}
	if cfg.Redis.Enabled() {
		a.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	if a.Store == nil {
		s, err := NewStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.Store = s
	}
	return a, nil
}

func (a *App) initStorage(ctx context.Context) error {
	if !a.Config.S3.Enabled() {
		if a.Series == nil {
			a.Series = lio.NewDirSeriesSource(a.Config.DataDir)
		}
		if a.Files == nil {
			a.Files = lio.NewIOGraphFileLoader()
		}
		return nil
	}

	client, err := storage.NewS3Client(ctx, a.Config.S3)
	if err != nil {
		return err
	}
	if a.Series == nil {
		a.Series = ls3.NewS3SeriesSource(a.Config.S3.Bucket, a.Config.S3.Prefix, client)
	}
	if a.Files == nil {
		a.Files = ls3.NewS3GraphFileLoader(a.Config.S3.Bucket, client)
	}
	return nil
}

// Close releases the store and the redis client.
func (a *App) Close(ctx context.Context) {
	if a.Store != nil {
		if err := a.Store.Close(ctx); err != nil {
			logger.Warn("Failed to close store", "err", err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			logger.Warn("Failed to close redis", "err", err)
		}
	}
}

// NewStore opens the configured graph store. Neo4j connections are retried
// with backoff so the process can start before the database.
func NewStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	if cfg.Store == config.StoreMemory {
		return memory.New(cfg.Neo4j.IndexName), nil
	}

	s, err := neo4j.NewNeo4jStore(neo4j.NewNeo4jStoreParams{
		URI:       cfg.Neo4j.URI,
		Username:  cfg.Neo4j.User,
		Password:  cfg.Neo4j.Password,
		Database:  cfg.Neo4j.Database,
		IndexName: cfg.Neo4j.IndexName,
		BatchSize: cfg.Neo4j.BatchSize,
	})
	if err != nil {
		return nil, err
	}
	err = util.RetryErrWithContext(ctx, 5, time.Second, func(ctx context.Context) error {
		err := s.TestConnection(ctx)
		if err != nil {
			logger.Warn("Neo4j not reachable yet", "uri", cfg.Neo4j.URI, "err", err)
		}
		return err
	})
	if err != nil {
		_ = s.Close(ctx)
		return nil, fmt.Errorf("failed to connect to neo4j: %w", err)
	}
	return s, nil
}

// NewChatClient builds the completion backend named by cfg.Adapter.
func NewChatClient(cfg config.AIConfig) (ai.GraphAIClient, error) {
	switch cfg.Adapter {
	case "ollama":
		client, err := oai.NewGraphOllamaClient(oai.NewGraphOllamaClientParams{
			ChatModel:             cfg.ChatModel,
			BaseURL:               cfg.ChatURL,
			ApiKey:                cfg.ChatKey,
			MaxConcurrentRequests: int64(cfg.MaxConns),
			Timeout:               cfg.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create ollama client: %w", err)
		}
		return client, nil
	case "openai", "":
		return gai.NewGraphOpenAIClient(gai.NewGraphOpenAIClientParams{
			ChatModel:             cfg.ChatModel,
			ChatURL:               cfg.ChatURL,
			ChatKey:               cfg.ChatKey,
			APIType:               cfg.APIType,
			APIVersion:            cfg.APIVersion,
			MaxConcurrentRequests: int64(cfg.MaxConns),
			Timeout:               cfg.Timeout,
		}), nil
	}
	return nil, fmt.Errorf("unknown AI_ADAPTER %q", cfg.Adapter)
}

// Decorate wraps an embedding provider with the redis cache (when
// configured) and metrics.
func (a *App) Decorate(p embedding.Provider) embedding.Provider {
	if a.Redis != nil {
		p = embedding.NewCachedProvider(p, a.Redis, a.Config.Redis.TTL)
	}
	return a.Metrics.Instrument(p)
}

// Embedder resolves the currently selected embedder.
func (a *App) Embedder(ctx context.Context) (embedding.Provider, error) {
	if a.Provider != nil {
		return a.Decorate(a.Provider), nil
	}
	p, err := embedding.FromConfigProvider(ctx, a.Embedders)
	if err != nil {
		return nil, err
	}
	return a.Decorate(p), nil
}

func (a *App) Pipeline() (*ingest.Pipeline, error) {
	return ingest.NewPipeline(ingest.NewPipelineParams{
		Provider: a.Provider,
		Config:   a.Embedders,
		Index:    a.Store,
		Series:   a.Series,
		Decorate: a.Decorate,
	})
}

func (a *App) Builder() (*graph.Builder, error) {
	return graph.NewBuilder(graph.NewBuilderParams{
		Graph:     a.Store,
		Extractor: graph.NewExtractor(a.Chat),
		Series:    a.Series,
	})
}

func (a *App) Retriever(ctx context.Context) (*query.Retriever, error) {
	emb, err := a.Embedder(ctx)
	if err != nil {
		return nil, err
	}
	return query.NewRetriever(query.NewRetrieverParams{
		Embedder:  emb,
		Index:     a.Store,
		Graph:     a.Store,
		OnDegrade: a.Metrics.RecordDegraded,
	})
}

func (a *App) Answerer(ctx context.Context) (*query.Answerer, error) {
	r, err := a.Retriever(ctx)
	if err != nil {
		return nil, err
	}
	return query.NewAnswerer(r, a.Chat, query.DefaultContextLimit), nil
}

func (a *App) CypherGenerator() *query.CypherGenerator {
	return query.NewCypherGenerator(a.Chat)
}
