package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/OFFIS-RIT/graphrag/pkg/graph"
	"github.com/OFFIS-RIT/graphrag/pkg/ingest"
	"github.com/OFFIS-RIT/graphrag/pkg/logger"
)

// Handler runs queue messages against the core components.
type Handler struct {
	Pipeline  func() (*ingest.Pipeline, error)
	Builder   func() (*graph.Builder, error)
	Publisher Publisher

	OnIngested func(chunks int)
	OnMerged   func(triplets int)
}

// Handle dispatches body by queue name.
func (h *Handler) Handle(ctx context.Context, queueName string, body []byte) error {
	switch queueName {
	case IngestQueue:
		return h.ProcessIngestMessage(ctx, body)
	case GraphQueue:
		return h.ProcessGraphMessage(ctx, body)
	}
	return fmt.Errorf("no handler for queue %s", queueName)
}

func (h *Handler) ProcessIngestMessage(ctx context.Context, body []byte) error {
	var msg IngestMsg
	if err := decode(body, &msg); err != nil {
		return err
	}
	log := logger.With("correlation_id", msg.CorrelationID, "series", msg.SeriesID)

	p, err := h.Pipeline()
	if err != nil {
		return err
	}
	res, err := p.IngestFromSource(ctx, msg.SeriesID, msg.Similarity)
	if err != nil {
		return err
	}
	log.Info("[Queue] Series indexed", "run", res.RunID, "chunks", res.Count)
	if h.OnIngested != nil {
		h.OnIngested(res.Count)
	}

	if !msg.BuildGraph {
		return nil
	}
	next, err := json.Marshal(GraphMsg{CorrelationID: msg.CorrelationID, SeriesID: msg.SeriesID})
	if err != nil {
		return err
	}
	if err := PublishFIFO(h.Publisher, GraphQueue, msg.CorrelationID, next); err != nil {
		return fmt.Errorf("failed to enqueue graph build: %w", err)
	}
	log.Info("[Queue] Graph build enqueued")
	return nil
}

func (h *Handler) ProcessGraphMessage(ctx context.Context, body []byte) error {
	var msg GraphMsg
	if err := decode(body, &msg); err != nil {
		return err
	}

	b, err := h.Builder()
	if err != nil {
		return err
	}
	res, err := b.BuildFromSeries(ctx, msg.SeriesID)
	if err != nil {
		return err
	}
	logger.Info("[Queue] Graph built", "correlation_id", msg.CorrelationID, "series", msg.SeriesID, "triplets", res.TripletsCreated)
	if h.OnMerged != nil {
		h.OnMerged(res.TripletsCreated)
	}
	return nil
}
