package routes

import (
	"errors"
	"net/http"

	"github.com/OFFIS-RIT/graphrag/internal/app"
	"github.com/OFFIS-RIT/graphrag/internal/queue"
	"github.com/OFFIS-RIT/graphrag/internal/server/middleware"
	"github.com/OFFIS-RIT/graphrag/internal/util"
	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/logger"

	"github.com/labstack/echo/v4"
)

const maxRawLen = 4000

type errorResponse struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
	Raw     string `json:"raw,omitempty"`
}

// errorJSON answers with the status matching the error kind.
func errorJSON(c echo.Context, err error) error {
	status := common.HTTPStatus(err)
	resp := errorResponse{Message: err.Error(), Kind: string(common.KindOf(err))}

	var e *common.Error
	if errors.As(err, &e) && e.Kind == common.KindExtraction {
		resp.Raw = util.Truncate(e.Raw, maxRawLen)
	}
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "path", c.Path(), "err", err)
	}
	return c.JSON(status, resp)
}

// bind decodes and validates the request body into data.
func bind(c echo.Context, data any) error {
	if err := c.Bind(data); err != nil {
		return common.NewValidationError("request", "invalid request body")
	}
	if err := c.Validate(data); err != nil {
		return common.NewValidationError("request", "%v", err)
	}
	return nil
}

func appOf(c echo.Context) *app.App {
	return c.(*middleware.AppContext).App
}

func queueOf(c echo.Context) queue.Publisher {
	return c.(*middleware.AppContext).Queue
}
