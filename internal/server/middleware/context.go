package middleware

import (
	"github.com/OFFIS-RIT/graphrag/internal/app"
	"github.com/OFFIS-RIT/graphrag/internal/queue"

	"github.com/labstack/echo/v4"
)

// AppContext gives handlers access to the shared collaborators.
type AppContext struct {
	echo.Context
	App *app.App
	// Queue is nil when RabbitMQ is not configured; handlers then run
	// long jobs synchronously.
	Queue queue.Publisher
}

func AppContextMiddleware(a *app.App, q queue.Publisher) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{Context: c, App: a, Queue: q}
			return next(cc)
		}
	}
}
