package metrics

import (
	"context"
	"time"

	"github.com/OFFIS-RIT/graphrag/pkg/embedding"
)

// InstrumentedProvider records latency and outcome of every embedding call.
type InstrumentedProvider struct {
	embedding.Provider
	m *Metrics
}

// Instrument wraps p. It has the signature expected by
// ingest.NewPipelineParams.Decorate.
func (m *Metrics) Instrument(p embedding.Provider) embedding.Provider {
	return &InstrumentedProvider{Provider: p, m: m}
}

func (p *InstrumentedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vec, err := p.Provider.Embed(ctx, text)
	p.m.RecordEmbed(p.Name(), p.Model(), 1, time.Since(start), err)
	return vec, err
}

func (p *InstrumentedProvider) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	vecs, err := p.Provider.BatchEmbed(ctx, texts)
	p.m.RecordEmbed(p.Name(), p.Model(), len(texts), time.Since(start), err)
	return vecs, err
}
