package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/embedding"

	"github.com/labstack/echo/v4"
)

func GetNeo4jStatusHandler(c echo.Context) error {
	type statusResponse struct {
		Connected bool   `json:"connected"`
		Index     string `json:"index"`
		Message   string `json:"message,omitempty"`
	}

	a := appOf(c)
	if err := a.Store.TestConnection(c.Request().Context()); err != nil {
		return c.JSON(common.HTTPStatus(err), statusResponse{
			Connected: false,
			Index:     a.Store.Name(),
			Message:   err.Error(),
		})
	}
	return c.JSON(http.StatusOK, statusResponse{Connected: true, Index: a.Store.Name()})
}

func GetIndexesHandler(c echo.Context) error {
	type indexesResponse struct {
		Indexes []common.IndexInfo `json:"indexes"`
	}

	indexes, err := appOf(c).Store.ListVectorIndexes(c.Request().Context())
	if err != nil {
		return errorJSON(c, err)
	}
	if indexes == nil {
		indexes = []common.IndexInfo{}
	}
	return c.JSON(http.StatusOK, indexesResponse{Indexes: indexes})
}

func GetGraphStatusHandler(c echo.Context) error {
	exists, err := appOf(c).Store.GraphExists(c.Request().Context())
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"exists": exists})
}

// GetEmbeddersHandler validates every supported backend without sending
// requests and reports the current selection.
func GetEmbeddersHandler(c echo.Context) error {
	type embeddersResponse struct {
		Current   string             `json:"current"`
		Embedders []embedding.Status `json:"embedders"`
	}

	cur, err := appOf(c).Embedders.Current(c.Request().Context())
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, embeddersResponse{
		Current:   cur.Provider,
		Embedders: embedding.ValidateAll(cur),
	})
}
