package query

import (
	"context"

	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/embedding"
	"github.com/OFFIS-RIT/graphrag/pkg/logger"
	"github.com/OFFIS-RIT/graphrag/pkg/store"
)

// Stages reported to DegradeFunc.
const (
	StageVector = "vector"
	StageGraph  = "graph"
)

// DegradeFunc is called when a retrieval stage fails and is replaced by an
// empty list.
type DegradeFunc func(stage string, err error)

// Retriever combines vector search and entity expansion.
//
// A Retriever should be created using NewRetriever.
type Retriever struct {
	embedder   embedding.Provider
	index      store.VectorIndex
	graph      store.GraphStore
	entities   EntityExtractor
	hops       int
	graphLimit int
	onDegrade  DegradeFunc
}

type NewRetrieverParams struct {
	Embedder embedding.Provider
	Index    store.VectorIndex
	Graph    store.GraphStore
	// Entities defaults to CapitalizedEntityExtractor.
	Entities   EntityExtractor
	Hops       int
	GraphLimit int
	OnDegrade  DegradeFunc
}

func NewRetriever(params NewRetrieverParams) (*Retriever, error) {
	if params.Embedder == nil || params.Index == nil || params.Graph == nil {
		return nil, common.NewConfigurationError("query.NewRetriever", "embedder, vector index and graph store are required")
	}
	r := &Retriever{
		embedder:   params.Embedder,
		index:      params.Index,
		graph:      params.Graph,
		entities:   params.Entities,
		hops:       params.Hops,
		graphLimit: params.GraphLimit,
		onDegrade:  params.OnDegrade,
	}
	if r.entities == nil {
		r.entities = CapitalizedEntityExtractor{}
	}
	if r.hops <= 0 {
		r.hops = DefaultHops
	}
	if r.graphLimit <= 0 {
		r.graphLimit = DefaultGraphLimit
	}
	return r, nil
}

// Retrieve never fails. A failing stage is logged and yields an empty list;
// graph expansion still runs on whatever the vector stage produced.
func (r *Retriever) Retrieve(ctx context.Context, question string, k int) Result {
	if k <= 0 {
		k = DefaultK
	}

	res := Result{
		VectorHits: r.vectorHits(ctx, question, k),
		GraphHits:  []common.EntityHit{},
	}

	texts := make([]string, 0, len(res.VectorHits))
	for _, hit := range res.VectorHits {
		texts = append(texts, hit.Text)
	}
	ents := r.entities.Extract(texts)
	if len(ents) == 0 {
		return res
	}

	hits, err := r.graph.ExpandEntities(ctx, ents, r.hops, r.graphLimit)
	if err != nil {
		r.degrade(StageGraph, err)
		return res
	}
	if hits != nil {
		res.GraphHits = hits
	}
	return res
}

func (r *Retriever) vectorHits(ctx context.Context, question string, k int) []common.VectorHit {
	vec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		r.degrade(StageVector, err)
		return []common.VectorHit{}
	}
	hits, err := r.index.SearchSimilar(ctx, vec, k)
	if err != nil {
		r.degrade(StageVector, err)
		return []common.VectorHit{}
	}
	if hits == nil {
		return []common.VectorHit{}
	}
	return hits
}

func (r *Retriever) degrade(stage string, err error) {
	logger.Error("Retrieval stage failed", "stage", stage, "err", err)
	if r.onDegrade != nil {
		r.onDegrade(stage, err)
	}
}
