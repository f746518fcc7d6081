package common

import "time"

// Chunk is a bounded unit of source text together with its embedding and
// series membership. Chunks are keyed by ID, which is derived from the series
// identifier and a zero-padded sequence number.
type Chunk struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding,omitempty"`
	Series    string    `json:"series"`
	IngestTS  time.Time `json:"ingest_ts"`
}

// SequenceLink is a directed NEXT_CHUNK edge between two consecutive chunks
// of the same ingestion run.
type SequenceLink struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Triplet is a (subject, relation, object) fact extracted from text.
//
// Relation is expected in uppercase snake case (LOCATED_IN, HAS_PRICE) and
// becomes the structural type of the edge between the two entities.
type Triplet struct {
	Subject  string `json:"subject" jsonschema_description:"Entity the fact is about, original casing"`
	Relation string `json:"relation" jsonschema_description:"Relation label in UPPERCASE_SNAKE_CASE"`
	Object   string `json:"object" jsonschema_description:"Entity or literal value the subject relates to"`
}

// VectorHit is one result of a similarity search.
type VectorHit struct {
	Score float64 `json:"score"`
	Text  string  `json:"text"`
}

// EntityHit is a neighbouring Entity node found during graph expansion.
type EntityHit struct {
	Name   string   `json:"name"`
	Labels []string `json:"labels"`
}

// IndexInfo describes a vector index in the store catalog.
type IndexInfo struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	EntityType string `json:"entity_type"`
	State      string `json:"state"`
}
