package embedding

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/OFFIS-RIT/graphrag/pkg/ai"
	oai "github.com/OFFIS-RIT/graphrag/pkg/ai/ollama"
	gai "github.com/OFFIS-RIT/graphrag/pkg/ai/openai"
	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// Provider turns text into fixed width vectors.
type Provider interface {
	Name() string
	Model() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)
	Probe() []float32
}

// BackendProvider implements Provider on top of an ai.Embedder.
//
// A BackendProvider should be created using New or NewBackendProvider.
type BackendProvider struct {
	name           string
	model          string
	dim            int
	batchSize      int
	maxConcurrency int
	normalize      bool

	backend ai.Embedder
}

// New builds the backend named by cfg.Provider.
func New(cfg Config) (*BackendProvider, error) {
	cfg, err := cfg.Normalized()
	if err != nil {
		return nil, err
	}

	var backend ai.Embedder
	switch cfg.Provider {
	case ProviderOllama:
		client, err := oai.NewGraphOllamaClient(oai.NewGraphOllamaClientParams{
			EmbeddingModel:        cfg.RequestModel(),
			BaseURL:               cfg.Params.APIBase,
			ApiKey:                cfg.Params.APIKey,
			MaxConcurrentRequests: int64(cfg.Params.MaxConcurrency),
		})
		if err != nil {
			return nil, common.NewConfigurationError("embedding.New", "invalid ollama url %q: %v", cfg.Params.APIBase, err)
		}
		backend = client
	default:
		params := gai.NewGraphOpenAIClientParams{
			EmbeddingModel:        cfg.RequestModel(),
			EmbeddingURL:          cfg.Params.APIBase,
			EmbeddingKey:          cfg.Params.APIKey,
			MaxConcurrentRequests: int64(cfg.Params.MaxConcurrency),
		}
		if cfg.IsAzure() {
			params.APIType = gai.APITypeAzure
			params.APIVersion = cfg.Params.APIVersion
		}
		if cfg.Params.Dimensions > 0 && strings.HasPrefix(cfg.Params.Model, "text-embedding-3") {
			params.EmbeddingDimensions = cfg.Params.Dimensions
		}
		backend = gai.NewGraphOpenAIClient(params)
	}

	return NewBackendProvider(cfg, backend)
}

// NewBackendProvider wraps an existing embedder. cfg is normalized and must
// resolve to a dimension.
func NewBackendProvider(cfg Config, backend ai.Embedder) (*BackendProvider, error) {
	cfg, err := cfg.Normalized()
	if err != nil {
		return nil, err
	}
	dim, err := cfg.ResolveDimension()
	if err != nil {
		return nil, err
	}

	return &BackendProvider{
		name:           cfg.Provider,
		model:          cfg.Params.Model,
		dim:            dim,
		batchSize:      cfg.Params.BatchSize,
		maxConcurrency: cfg.Params.MaxConcurrency,
		normalize:      cfg.Params.Normalize,
		backend:        backend,
	}, nil
}

func (p *BackendProvider) Name() string   { return p.name }
func (p *BackendProvider) Model() string  { return p.model }
func (p *BackendProvider) Dimension() int { return p.dim }

// Probe returns a zero vector of the provider's dimension without I/O.
func (p *BackendProvider) Probe() []float32 {
	return make([]float32, p.dim)
}

// Embed embeds a single text.
func (p *BackendProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := p.BatchEmbed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// BatchEmbed embeds texts in sub-batches of the configured batch size,
// running up to MaxConcurrency requests at once. Element i of the result
// belongs to texts[i]. Blank texts map to zero vectors and never reach the
// backend.
func (p *BackendProvider) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	idx := make([]int, 0, len(texts))
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			out[i] = make([]float32, p.dim)
			continue
		}
		idx = append(idx, i)
	}
	if len(idx) == 0 {
		return out, nil
	}

	start := time.Now()
	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(p.maxConcurrency)

	for lo := 0; lo < len(idx); lo += p.batchSize {
		part := idx[lo:min(lo+p.batchSize, len(idx))]
		eg.Go(func() error {
			inputs := make([]string, len(part))
			for j, i := range part {
				inputs[j] = texts[i]
			}

			vecs, err := p.backend.GenerateEmbeddings(ectx, inputs)
			if err != nil {
				return fmt.Errorf("failed to embed batch of %d texts with %s: %w", len(inputs), p.name, err)
			}
			if len(vecs) != len(inputs) {
				return fmt.Errorf("%s returned %d vectors for %d texts", p.name, len(vecs), len(inputs))
			}

			for j, vec := range vecs {
				if len(vec) != p.dim {
					return common.NewConfigurationError(
						"embedding.BatchEmbed",
						"%s model %s returned %d dimensions, expected %d",
						p.name, p.model, len(vec), p.dim,
					)
				}
				if p.normalize {
					vec = Normalize(vec)
				}
				out[part[j]] = vec
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	logger.Debug("Embedded texts", "provider", p.name, "texts", len(texts), "duration", time.Since(start))
	return out, nil
}

// Normalize scales vec to unit L2 length. A zero vector is returned as is.
func Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := float32(math.Sqrt(sum))
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = v / norm
	}
	return out
}
