package server

import (
	"github.com/OFFIS-RIT/graphrag/internal/server/routes"

	"github.com/labstack/echo/v4"
)

// RegisterRoutes mounts the API. limit guards the routes that call a
// language model or an embedding backend.
func RegisterRoutes(e *echo.Echo, limit echo.MiddlewareFunc) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api")

	// Store status routes
	apiRoutes.GET("/status/neo4j", routes.GetNeo4jStatusHandler)
	apiRoutes.GET("/status/indexes", routes.GetIndexesHandler)
	apiRoutes.GET("/status/graph", routes.GetGraphStatusHandler)
	apiRoutes.GET("/status/embedders", routes.GetEmbeddersHandler)

	// Segmentation routes
	apiRoutes.POST("/segment", routes.PostSegmentHandler)
	apiRoutes.POST("/segment/preview", routes.PostPreviewHandler)
	apiRoutes.POST("/segment/suggest", routes.PostSuggestHandler)

	// Embedder selection routes
	apiRoutes.GET("/embedder", routes.GetEmbedderHandler)
	apiRoutes.PUT("/embedder", routes.PutEmbedderHandler)

	// Ingestion and graph routes
	apiRoutes.POST("/index", routes.PostIndexHandler, limit)
	apiRoutes.POST("/kg", routes.PostKGHandler, limit)

	// Retrieval routes
	apiRoutes.POST("/query", routes.PostQueryHandler, limit)
	apiRoutes.POST("/answer", routes.PostAnswerHandler, limit)
	apiRoutes.POST("/cypher", routes.PostCypherHandler, limit)
}
