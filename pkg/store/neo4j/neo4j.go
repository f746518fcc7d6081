package neo4j

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/store"

	neo4jv5 "github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const defaultBatchSize = 500

var relationRe = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// Neo4jStore implements store.VectorIndex and store.GraphStore on Neo4j 5.
// Every call runs in its own session so a Neo4jStore is safe for concurrent
// use.
//
// A Neo4jStore should be created using NewNeo4jStore or NewWithRunner.
type Neo4jStore struct {
	runner    Runner
	driver    neo4jv5.DriverWithContext
	indexName string
	batchSize int
}

// NewNeo4jStoreParams configures the driver connection.
type NewNeo4jStoreParams struct {
	URI       string
	Username  string
	Password  string
	Database  string
	IndexName string
	BatchSize int
}

// NewNeo4jStore creates a driver for params.URI. The connection is not
// verified; use TestConnection.
func NewNeo4jStore(params NewNeo4jStoreParams) (*Neo4jStore, error) {
	driver, err := neo4jv5.NewDriverWithContext(
		params.URI,
		neo4jv5.BasicAuth(params.Username, params.Password, ""),
	)
	if err != nil {
		return nil, common.NewConfigurationError("neo4j.New", "invalid neo4j uri %q: %v", params.URI, err)
	}

	s := NewWithRunner(&driverRunner{driver: driver, database: params.Database}, params.IndexName)
	s.driver = driver
	if params.BatchSize > 0 {
		s.batchSize = params.BatchSize
	}
	return s, nil
}

// NewWithRunner builds a store on top of an arbitrary Runner.
func NewWithRunner(r Runner, indexName string) *Neo4jStore {
	if indexName == "" {
		indexName = store.DefaultIndexName
	}
	return &Neo4jStore{
		runner:    r,
		indexName: store.SanitizeIndexName(indexName),
		batchSize: defaultBatchSize,
	}
}

// Close releases the driver.
func (s *Neo4jStore) Close(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Close(ctx)
}

func (s *Neo4jStore) Name() string { return s.indexName }

func (s *Neo4jStore) IndexExists(ctx context.Context) (bool, error) {
	rows, err := s.runner.Run(ctx, "neo4j.IndexExists", cypherIndexExists, map[string]any{"name": s.indexName}, false)
	if err != nil {
		return false, err
	}
	return len(rows) > 0 && getInt(rows[0], "c") > 0, nil
}

func (s *Neo4jStore) IndexDimension(ctx context.Context) (int, error) {
	rows, err := s.runner.Run(ctx, "neo4j.IndexDimension", cypherIndexOptions, map[string]any{"name": s.indexName}, false)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return dimensionFromOptions(rows[0]["options"]), nil
}

func dimensionFromOptions(options any) int {
	opts, ok := options.(map[string]any)
	if !ok {
		return 0
	}
	cfg, ok := opts["indexConfig"].(map[string]any)
	if !ok {
		return 0
	}
	return getInt(Row(cfg), "vector.dimensions")
}

// CreateIndex creates the vector index if it does not exist. Neo4j supports
// cosine and euclidean similarity only.
func (s *Neo4jStore) CreateIndex(ctx context.Context, dim int, similarity store.Similarity) error {
	if dim <= 0 {
		return common.NewConfigurationError("neo4j.CreateIndex", "dimension must be positive, got %d", dim)
	}
	sim, err := store.ParseSimilarity(string(similarity))
	if err != nil {
		return err
	}
	if sim == store.SimilarityDotProduct {
		return common.NewConfigurationError("neo4j.CreateIndex", "similarity %q is not supported by neo4j", sim)
	}

	_, err = s.runner.Run(ctx, "neo4j.CreateIndex", createIndexCypher(s.indexName, dim, sim), nil, true)
	return err
}

func createIndexCypher(name string, dim int, sim store.Similarity) string {
	return fmt.Sprintf(cypherCreateIndex, name, dim, sim)
}

// UpsertChunks merges Chunk nodes by id. ingest_ts is only set on creation.
func (s *Neo4jStore) UpsertChunks(ctx context.Context, rows []common.Chunk) error {
	return store.InBatches(rows, s.batchSize, func(chunks []common.Chunk) error {
		batch := make([]map[string]any, 0, len(chunks))
		for _, c := range chunks {
			batch = append(batch, map[string]any{
				"cid":       c.ID,
				"text":      c.Text,
				"embedding": toFloat64(c.Embedding),
				"series":    c.Series,
				"ts":        c.IngestTS.UTC().Format(time.RFC3339),
			})
		}
		_, err := s.runner.Run(ctx, "neo4j.UpsertChunks", cypherUpsertChunks, map[string]any{"rows": batch}, true)
		return err
	})
}

// LinkSequence merges NEXT_CHUNK relationships. Links whose endpoints are
// missing are skipped by the MATCH.
func (s *Neo4jStore) LinkSequence(ctx context.Context, links []common.SequenceLink) error {
	return store.InBatches(links, s.batchSize, func(pairs []common.SequenceLink) error {
		batch := make([]map[string]any, 0, len(pairs))
		for _, l := range pairs {
			batch = append(batch, map[string]any{"from": l.From, "to": l.To})
		}
		_, err := s.runner.Run(ctx, "neo4j.LinkSequence", cypherLinkSequence, map[string]any{"rels": batch}, true)
		return err
	})
}

func (s *Neo4jStore) SearchSimilar(ctx context.Context, vec []float32, k int) ([]common.VectorHit, error) {
	if k <= 0 {
		return nil, common.NewConfigurationError("neo4j.SearchSimilar", "k must be positive, got %d", k)
	}
	rows, err := s.runner.Run(ctx, "neo4j.SearchSimilar", cypherSearchSimilar, map[string]any{
		"index": s.indexName,
		"k":     k,
		"vec":   toFloat64(vec),
	}, false)
	if err != nil {
		return nil, err
	}

	hits := make([]common.VectorHit, 0, len(rows))
	for _, row := range rows {
		hits = append(hits, common.VectorHit{Score: getFloat(row, "score"), Text: getString(row, "text")})
	}
	return hits, nil
}

func (s *Neo4jStore) TestConnection(ctx context.Context) error {
	rows, err := s.runner.Run(ctx, "neo4j.TestConnection", cypherPing, nil, false)
	if err != nil {
		return err
	}
	if len(rows) != 1 || getInt(rows[0], "ok") != 1 {
		return common.NewConnectivityError("neo4j.TestConnection", fmt.Errorf("unexpected ping result %v", rows))
	}
	return nil
}

// MergeTriplets merges Entity nodes by name and one relationship per row.
func (s *Neo4jStore) MergeTriplets(ctx context.Context, relation string, rows []common.Triplet) error {
	if !relationRe.MatchString(relation) {
		return common.NewConfigurationError("neo4j.MergeTriplets", "invalid relation type %q", relation)
	}
	query := fmt.Sprintf(cypherMergeTriplets, relation)

	return store.InBatches(rows, s.batchSize, func(triplets []common.Triplet) error {
		batch := make([]map[string]any, 0, len(triplets))
		for _, t := range triplets {
			batch = append(batch, map[string]any{"s": t.Subject, "o": t.Object})
		}
		_, err := s.runner.Run(ctx, "neo4j.MergeTriplets", query, map[string]any{"rows": batch}, true)
		return err
	})
}

func (s *Neo4jStore) GraphExists(ctx context.Context) (bool, error) {
	rows, err := s.runner.Run(ctx, "neo4j.GraphExists", cypherGraphExists, nil, false)
	if err != nil {
		return false, err
	}
	return len(rows) > 0 && getBool(rows[0], "found"), nil
}

// ExpandEntities returns up to limit distinct entities within hops of any of
// names.
func (s *Neo4jStore) ExpandEntities(ctx context.Context, names []string, hops, limit int) ([]common.EntityHit, error) {
	names = store.EntityNames(names)
	if len(names) == 0 {
		return nil, nil
	}
	if hops < 1 {
		return nil, common.NewConfigurationError("neo4j.ExpandEntities", "hops must be at least 1, got %d", hops)
	}
	if limit <= 0 {
		return nil, common.NewConfigurationError("neo4j.ExpandEntities", "limit must be positive, got %d", limit)
	}

	rows, err := s.runner.Run(ctx, "neo4j.ExpandEntities", fmt.Sprintf(cypherExpandEntities, hops), map[string]any{
		"ents":  names,
		"limit": limit,
	}, false)
	if err != nil {
		return nil, err
	}

	hits := make([]common.EntityHit, 0, len(rows))
	for _, row := range rows {
		hits = append(hits, common.EntityHit{Name: getString(row, "name"), Labels: getStrings(row, "labels")})
	}
	return hits, nil
}

func (s *Neo4jStore) ListVectorIndexes(ctx context.Context) ([]common.IndexInfo, error) {
	rows, err := s.runner.Run(ctx, "neo4j.ListVectorIndexes", cypherListVectorIndexes, nil, false)
	if err != nil {
		return nil, err
	}
	out := make([]common.IndexInfo, 0, len(rows))
	for _, row := range rows {
		out = append(out, common.IndexInfo{
			Name:       getString(row, "name"),
			Type:       getString(row, "type"),
			EntityType: getString(row, "entityType"),
			State:      getString(row, "state"),
		})
	}
	return out, nil
}

func toFloat64(vec []float32) []float64 {
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = float64(v)
	}
	return out
}
