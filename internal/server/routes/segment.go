package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/graphrag/pkg/segment"

	"github.com/labstack/echo/v4"
)

// PostSegmentHandler splits text with one strategy. With a series_id the
// chunks are also stored so they can be indexed later.
func PostSegmentHandler(c echo.Context) error {
	type segmentBody struct {
		Text       string   `json:"text" validate:"required"`
		Strategy   string   `json:"strategy"`
		Separators []string `json:"separators"`
		SourceDoc  string   `json:"source_doc"`
		Limit      int      `json:"limit" validate:"gte=0"`
		MaxSize    int      `json:"max_size" validate:"gte=0"`
		SeriesID   string   `json:"series_id"`
	}

	type segmentResponse struct {
		Strategy segment.Strategy        `json:"strategy"`
		Count    int                     `json:"count"`
		Chunks   []segment.ChunkMetadata `json:"chunks"`
		SeriesID string                  `json:"series_id,omitempty"`
		Files    []string                `json:"files,omitempty"`
	}

	data := new(segmentBody)
	if err := bind(c, data); err != nil {
		return errorJSON(c, err)
	}

	name := data.Strategy
	if name == "" {
		name = string(segment.StrategyRecursive)
	}
	strategy, err := segment.ParseStrategy(name)
	if err != nil {
		return errorJSON(c, err)
	}

	a := appOf(c)
	var chunks []string
	if strategy == segment.StrategyRecursive && len(data.Separators) > 0 {
		chunks, err = a.Segmenter.Recursive(data.Text, data.Separators)
	} else {
		chunks, err = a.Segmenter.Split(data.Text, strategy)
	}
	if err != nil {
		return errorJSON(c, err)
	}

	source := data.SourceDoc
	if source == "" {
		source = "input"
	}
	resp := segmentResponse{
		Strategy: strategy,
		Count:    len(chunks),
		Chunks:   segment.BuildMetadata(chunks, source, data.Limit, data.MaxSize),
	}
	if resp.Chunks == nil {
		resp.Chunks = []segment.ChunkMetadata{}
	}

	if data.SeriesID != "" && len(chunks) > 0 {
		files, err := a.Series.SaveSeries(c.Request().Context(), data.SeriesID, chunks)
		if err != nil {
			return errorJSON(c, err)
		}
		resp.SeriesID = data.SeriesID
		resp.Files = files
	}
	return c.JSON(http.StatusOK, resp)
}

func PostPreviewHandler(c echo.Context) error {
	type previewBody struct {
		Text       string   `json:"text" validate:"required"`
		Strategies []string `json:"strategies"`
	}

	data := new(previewBody)
	if err := bind(c, data); err != nil {
		return errorJSON(c, err)
	}

	var strategies []segment.Strategy
	for _, name := range data.Strategies {
		if s, err := segment.ParseStrategy(name); err == nil {
			strategies = append(strategies, s)
		}
	}
	if len(data.Strategies) > 0 && len(strategies) == 0 {
		return c.JSON(http.StatusOK, map[segment.Strategy]segment.Stats{})
	}
	return c.JSON(http.StatusOK, appOf(c).Segmenter.Preview(data.Text, strategies...))
}

func PostSuggestHandler(c echo.Context) error {
	type suggestBody struct {
		Text string `json:"text" validate:"required"`
	}

	data := new(suggestBody)
	if err := bind(c, data); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]segment.Strategy{"strategy": segment.Suggest(data.Text)})
}
