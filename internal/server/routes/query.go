package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/graphrag/pkg/query"
	"github.com/OFFIS-RIT/graphrag/pkg/store"

	"github.com/labstack/echo/v4"
)

type questionBody struct {
	Question     string `json:"question" validate:"required"`
	K            int    `json:"k" validate:"gte=0"`
	ContextLimit int    `json:"context_limit" validate:"gte=0"`
}

func PostQueryHandler(c echo.Context) error {
	type queryResponse struct {
		query.Result
		Context string `json:"context"`
	}

	data := new(questionBody)
	if err := bind(c, data); err != nil {
		return errorJSON(c, err)
	}

	r, err := appOf(c).Retriever(c.Request().Context())
	if err != nil {
		return errorJSON(c, err)
	}
	k := data.K
	if k == 0 {
		k = query.DefaultK
	}
	limit := data.ContextLimit
	if limit == 0 {
		limit = query.DefaultContextLimit
	}

	res := r.Retrieve(c.Request().Context(), data.Question, k)
	return c.JSON(http.StatusOK, queryResponse{Result: res, Context: query.MergeContext(res, limit)})
}

func PostAnswerHandler(c echo.Context) error {
	data := new(questionBody)
	if err := bind(c, data); err != nil {
		return errorJSON(c, err)
	}

	ans, err := appOf(c).Answerer(c.Request().Context())
	if err != nil {
		return errorJSON(c, err)
	}
	out, err := ans.Answer(c.Request().Context(), data.Question, data.K)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// PostCypherHandler returns a generated read-only query for display. It is
// never executed.
func PostCypherHandler(c echo.Context) error {
	type cypherBody struct {
		Question string   `json:"question" validate:"required"`
		Entities []string `json:"entities"`
	}
	type cypherResponse struct {
		Cypher   string   `json:"cypher"`
		Entities []string `json:"entities"`
	}

	data := new(cypherBody)
	if err := bind(c, data); err != nil {
		return errorJSON(c, err)
	}

	entities := store.EntityNames(data.Entities)
	if len(entities) == 0 {
		entities = query.CapitalizedEntityExtractor{}.Extract([]string{data.Question})
	}
	cypher, err := appOf(c).CypherGenerator().Generate(c.Request().Context(), data.Question, entities)
	if err != nil {
		return errorJSON(c, err)
	}
	if entities == nil {
		entities = []string{}
	}
	return c.JSON(http.StatusOK, cypherResponse{Cypher: cypher, Entities: entities})
}
