package routes

import (
	"encoding/json"
	"net/http"

	"github.com/OFFIS-RIT/graphrag/internal/queue"
	"github.com/OFFIS-RIT/graphrag/internal/util"
	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/logger"
	"github.com/OFFIS-RIT/graphrag/pkg/store"

	"github.com/labstack/echo/v4"
)

type enqueuedResponse struct {
	CorrelationID string `json:"correlation_id"`
	Queue         string `json:"queue"`
	SeriesID      string `json:"series_id"`
}

// PostIndexHandler embeds and indexes a series. Texts in the body are
// indexed synchronously; otherwise the stored series is enqueued, or indexed
// in the request when no queue is configured.
func PostIndexHandler(c echo.Context) error {
	type indexBody struct {
		SeriesID   string   `json:"series_id" validate:"required"`
		Texts      []string `json:"texts"`
		Similarity string   `json:"similarity"`
		BuildGraph bool     `json:"build_graph"`
	}

	data := new(indexBody)
	if err := bind(c, data); err != nil {
		return errorJSON(c, err)
	}
	sim, err := store.ParseSimilarity(data.Similarity)
	if err != nil {
		return errorJSON(c, err)
	}

	ctx := c.Request().Context()
	a := appOf(c)

	if len(data.Texts) == 0 && queueOf(c) != nil {
		msg, err := queue.NewIngestMsg(data.SeriesID, sim, data.BuildGraph)
		if err != nil {
			return errorJSON(c, err)
		}
		return enqueue(c, queue.IngestQueue, msg.CorrelationID, data.SeriesID, msg)
	}

	p, err := a.Pipeline()
	if err != nil {
		return errorJSON(c, err)
	}
	if len(data.Texts) > 0 {
		texts := make([]string, len(data.Texts))
		for i, t := range data.Texts {
			texts[i] = util.SanitizeText(t)
		}
		res, err := p.IngestSeries(ctx, texts, data.SeriesID, sim)
		if err != nil {
			return errorJSON(c, err)
		}
		a.Metrics.AddIngestedChunks(res.Count)
		return c.JSON(http.StatusOK, res)
	}
	res, err := p.IngestFromSource(ctx, data.SeriesID, sim)
	if err != nil {
		return errorJSON(c, err)
	}
	a.Metrics.AddIngestedChunks(res.Count)
	return c.JSON(http.StatusOK, res)
}

// PostKGHandler extracts triplets from the given chunks, or from a stored
// series through the graph queue.
func PostKGHandler(c echo.Context) error {
	type kgBody struct {
		Chunks   []string `json:"chunks"`
		SeriesID string   `json:"series_id"`
	}

	data := new(kgBody)
	if err := bind(c, data); err != nil {
		return errorJSON(c, err)
	}
	if len(data.Chunks) == 0 && data.SeriesID == "" {
		return errorJSON(c, common.NewValidationError("kg", "chunks or series_id is required"))
	}

	ctx := c.Request().Context()
	a := appOf(c)

	if len(data.Chunks) == 0 && queueOf(c) != nil {
		msg, err := queue.NewGraphMsg(data.SeriesID)
		if err != nil {
			return errorJSON(c, err)
		}
		return enqueue(c, queue.GraphQueue, msg.CorrelationID, data.SeriesID, msg)
	}

	b, err := a.Builder()
	if err != nil {
		return errorJSON(c, err)
	}
	var res any
	if len(data.Chunks) > 0 {
		r, err := b.BuildFromChunks(ctx, data.Chunks)
		if err != nil {
			return errorJSON(c, err)
		}
		a.Metrics.AddMergedTriplets(r.TripletsCreated)
		res = r
	} else {
		r, err := b.BuildFromSeries(ctx, data.SeriesID)
		if err != nil {
			return errorJSON(c, err)
		}
		a.Metrics.AddMergedTriplets(r.TripletsCreated)
		res = r
	}
	return c.JSON(http.StatusOK, res)
}

func enqueue(c echo.Context, queueName, correlationID, seriesID string, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return errorJSON(c, err)
	}
	if err := queue.PublishFIFO(queueOf(c), queueName, correlationID, body); err != nil {
		return errorJSON(c, common.NewConnectivityError("queue.Publish", err))
	}
	logger.Info("Job enqueued", "queue", queueName, "series", seriesID, "correlation_id", correlationID)
	return c.JSON(http.StatusAccepted, enqueuedResponse{
		CorrelationID: correlationID,
		Queue:         queueName,
		SeriesID:      seriesID,
	})
}
