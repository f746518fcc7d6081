// Package memory is an in-process implementation of store.Store. It follows
// the MERGE semantics of the Neo4j adapter and is used by tests and the
// --store memory mode of the CLI.
package memory

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"slices"
	"sort"
	"sync"

	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/store"
)

var relationRe = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

type index struct {
	dim        int
	similarity store.Similarity
}

type edge struct {
	from, rel, to string
}

// MemoryStore keeps chunks, entities and edges in maps guarded by one mutex.
type MemoryStore struct {
	name string

	mu       sync.RWMutex
	index    *index
	chunks   map[string]common.Chunk
	order    []string
	next     map[[2]string]struct{}
	entities map[string]struct{}
	edges    map[edge]struct{}

	// Fail, when set, is returned by every operation. Tests use it to
	// simulate an unreachable store.
	Fail error
}

func New(indexName string) *MemoryStore {
	if indexName == "" {
		indexName = store.DefaultIndexName
	}
	return &MemoryStore{
		name:     store.SanitizeIndexName(indexName),
		chunks:   map[string]common.Chunk{},
		next:     map[[2]string]struct{}{},
		entities: map[string]struct{}{},
		edges:    map[edge]struct{}{},
	}
}

func (m *MemoryStore) fail(op string) error {
	if m.Fail != nil {
		return common.NewConnectivityError(op, m.Fail)
	}
	return nil
}

func (m *MemoryStore) Name() string { return m.name }

func (m *MemoryStore) Close(context.Context) error { return nil }

func (m *MemoryStore) IndexExists(context.Context) (bool, error) {
	if err := m.fail("memory.IndexExists"); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.index != nil, nil
}

func (m *MemoryStore) IndexDimension(context.Context) (int, error) {
	if err := m.fail("memory.IndexDimension"); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.index == nil {
		return 0, nil
	}
	return m.index.dim, nil
}

// CreateIndex is a no-op when the index already exists, even if dim or
// similarity differ.
func (m *MemoryStore) CreateIndex(_ context.Context, dim int, similarity store.Similarity) error {
	if err := m.fail("memory.CreateIndex"); err != nil {
		return err
	}
	if dim <= 0 {
		return common.NewConfigurationError("memory.CreateIndex", "dimension must be positive, got %d", dim)
	}
	sim, err := store.ParseSimilarity(string(similarity))
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index == nil {
		m.index = &index{dim: dim, similarity: sim}
	}
	return nil
}

// UpsertChunks keeps the ingest timestamp of chunks that already exist.
func (m *MemoryStore) UpsertChunks(_ context.Context, rows []common.Chunk) error {
	if err := m.fail("memory.UpsertChunks"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range rows {
		row.Embedding = slices.Clone(row.Embedding)
		if old, ok := m.chunks[row.ID]; ok {
			row.IngestTS = old.IngestTS
		} else {
			m.order = append(m.order, row.ID)
		}
		m.chunks[row.ID] = row
	}
	return nil
}

func (m *MemoryStore) LinkSequence(_ context.Context, links []common.SequenceLink) error {
	if err := m.fail("memory.LinkSequence"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range links {
		_, okFrom := m.chunks[l.From]
		_, okTo := m.chunks[l.To]
		if okFrom && okTo {
			m.next[[2]string{l.From, l.To}] = struct{}{}
		}
	}
	return nil
}

func (m *MemoryStore) SearchSimilar(_ context.Context, vec []float32, k int) ([]common.VectorHit, error) {
	if err := m.fail("memory.SearchSimilar"); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, common.NewConfigurationError("memory.SearchSimilar", "k must be positive, got %d", k)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.index == nil {
		return nil, common.NewNotFoundError("memory.SearchSimilar", "vector index %s does not exist", m.name)
	}
	if len(vec) != m.index.dim {
		return nil, common.NewConfigurationError("memory.SearchSimilar", "query has dimension %d, index %s has %d", len(vec), m.name, m.index.dim)
	}

	hits := make([]common.VectorHit, 0, len(m.chunks))
	for _, id := range m.order {
		c := m.chunks[id]
		if len(c.Embedding) != len(vec) {
			continue
		}
		hits = append(hits, common.VectorHit{Score: score(m.index.similarity, vec, c.Embedding), Text: c.Text})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// score maps every similarity into "higher is closer" the way Neo4j does:
// cosine to (1+cos)/2 and euclidean to 1/(1+d²).
func score(sim store.Similarity, a, b []float32) float64 {
	var dot, na, nb, d2 float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
		d2 += (x - y) * (x - y)
	}
	switch sim {
	case store.SimilarityEuclidean:
		return 1 / (1 + d2)
	case store.SimilarityDotProduct:
		return dot
	}
	if na == 0 || nb == 0 {
		return 0.5
	}
	return (1 + dot/(math.Sqrt(na)*math.Sqrt(nb))) / 2
}

func (m *MemoryStore) TestConnection(context.Context) error {
	return m.fail("memory.TestConnection")
}

func (m *MemoryStore) MergeTriplets(_ context.Context, relation string, rows []common.Triplet) error {
	if err := m.fail("memory.MergeTriplets"); err != nil {
		return err
	}
	if !relationRe.MatchString(relation) {
		return common.NewConfigurationError("memory.MergeTriplets", "invalid relation type %q", relation)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range rows {
		m.entities[t.Subject] = struct{}{}
		m.entities[t.Object] = struct{}{}
		m.edges[edge{from: t.Subject, rel: relation, to: t.Object}] = struct{}{}
	}
	return nil
}

func (m *MemoryStore) GraphExists(context.Context) (bool, error) {
	if err := m.fail("memory.GraphExists"); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks) > 0 || len(m.entities) > 0, nil
}

// ExpandEntities walks edges in both directions breadth first. Start
// entities are only returned when reachable from another start entity.
func (m *MemoryStore) ExpandEntities(_ context.Context, names []string, hops, limit int) ([]common.EntityHit, error) {
	if err := m.fail("memory.ExpandEntities"); err != nil {
		return nil, err
	}
	names = store.EntityNames(names)
	if len(names) == 0 {
		return nil, nil
	}
	if hops < 1 {
		return nil, common.NewConfigurationError("memory.ExpandEntities", "hops must be at least 1, got %d", hops)
	}
	if limit <= 0 {
		return nil, common.NewConfigurationError("memory.ExpandEntities", "limit must be positive, got %d", limit)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	adj := map[string][]string{}
	for e := range m.edges {
		adj[e.from] = append(adj[e.from], e.to)
		adj[e.to] = append(adj[e.to], e.from)
	}
	for k := range adj {
		sort.Strings(adj[k])
	}

	var hits []common.EntityHit
	seen := map[string]bool{}
	for _, start := range names {
		if _, ok := m.entities[start]; !ok {
			continue
		}
		frontier := []string{start}
		visited := map[string]bool{start: true}
		for range hops {
			var nextFrontier []string
			for _, n := range frontier {
				for _, nb := range adj[n] {
					if visited[nb] {
						continue
					}
					visited[nb] = true
					nextFrontier = append(nextFrontier, nb)
					if !seen[nb] {
						seen[nb] = true
						hits = append(hits, common.EntityHit{Name: nb, Labels: []string{"Entity"}})
						if len(hits) == limit {
							return hits, nil
						}
					}
				}
			}
			frontier = nextFrontier
		}
	}
	return hits, nil
}

func (m *MemoryStore) ListVectorIndexes(context.Context) ([]common.IndexInfo, error) {
	if err := m.fail("memory.ListVectorIndexes"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.index == nil {
		return nil, nil
	}
	return []common.IndexInfo{{Name: m.name, Type: "VECTOR", EntityType: "NODE", State: "ONLINE"}}, nil
}

// Counts returns the number of chunks, NEXT_CHUNK links, entities and
// relation edges held.
func (m *MemoryStore) Counts() (chunks, links, entities, edges int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks), len(m.next), len(m.entities), len(m.edges)
}

// Chunk returns a stored chunk by id.
func (m *MemoryStore) Chunk(id string) (common.Chunk, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.chunks[id]
	return c, ok
}

// HasLink reports whether a NEXT_CHUNK link from -> to exists.
func (m *MemoryStore) HasLink(from, to string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.next[[2]string{from, to}]
	return ok
}

// HasEdge reports whether subject -[relation]-> object exists.
func (m *MemoryStore) HasEdge(subject, relation, object string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.edges[edge{from: subject, rel: relation, to: object}]
	return ok
}

func (m *MemoryStore) String() string {
	c, l, e, r := m.Counts()
	return fmt.Sprintf("memory(%s: %d chunks, %d links, %d entities, %d edges)", m.name, c, l, e, r)
}

var _ store.Store = (*MemoryStore)(nil)
