package queue

import (
	"encoding/json"
	"fmt"

	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/loader"
	"github.com/OFFIS-RIT/graphrag/pkg/store"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// IngestMsg asks the worker to embed and index a stored series.
type IngestMsg struct {
	CorrelationID string           `json:"correlation_id"`
	SeriesID      string           `json:"series_id"`
	Similarity    store.Similarity `json:"similarity,omitempty"`
	// BuildGraph chains a GraphMsg for the same series after indexing.
	BuildGraph bool `json:"build_graph,omitempty"`
}

// GraphMsg asks the worker to extract triplets from a stored series.
type GraphMsg struct {
	CorrelationID string `json:"correlation_id"`
	SeriesID      string `json:"series_id"`
}

// NewIngestMsg validates the series id and assigns a correlation id.
func NewIngestMsg(seriesID string, sim store.Similarity, buildGraph bool) (IngestMsg, error) {
	if !loader.ValidSeriesID(seriesID) {
		return IngestMsg{}, common.NewValidationError("queue", "invalid series id %q", seriesID)
	}
	id, err := gonanoid.New()
	if err != nil {
		return IngestMsg{}, fmt.Errorf("failed to generate correlation id: %w", err)
	}
	return IngestMsg{CorrelationID: id, SeriesID: seriesID, Similarity: sim, BuildGraph: buildGraph}, nil
}

func NewGraphMsg(seriesID string) (GraphMsg, error) {
	if !loader.ValidSeriesID(seriesID) {
		return GraphMsg{}, common.NewValidationError("queue", "invalid series id %q", seriesID)
	}
	id, err := gonanoid.New()
	if err != nil {
		return GraphMsg{}, fmt.Errorf("failed to generate correlation id: %w", err)
	}
	return GraphMsg{CorrelationID: id, SeriesID: seriesID}, nil
}

func decode(body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return common.NewValidationError("queue", "malformed message: %v", err)
	}
	return nil
}
