package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/graphrag/pkg/embedding"

	"github.com/labstack/echo/v4"
)

// GetEmbedderHandler reports the selected backend. The API key is never
// echoed back.
func GetEmbedderHandler(c echo.Context) error {
	cur, err := appOf(c).Embedders.Current(c.Request().Context())
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, embedding.Validate(cur))
}

// PutEmbedderHandler replaces the selection after checking that the backend
// can be constructed with the expected dimension.
func PutEmbedderHandler(c echo.Context) error {
	type putEmbedderBody struct {
		Provider string           `json:"provider" validate:"required"`
		Params   embedding.Params `json:"params"`
	}

	data := new(putEmbedderBody)
	if err := bind(c, data); err != nil {
		return errorJSON(c, err)
	}

	cfg := embedding.Config{Provider: data.Provider, Params: data.Params}
	if _, err := cfg.Normalized(); err != nil {
		return errorJSON(c, err)
	}
	status := embedding.Validate(cfg)
	if !status.OK {
		return c.JSON(http.StatusBadRequest, status)
	}
	if err := appOf(c).Embedders.Select(c.Request().Context(), cfg); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, status)
}
