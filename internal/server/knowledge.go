package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/paddockai/apex/internal/store"
)

type KnowledgeHandler struct {
	Server *Server
}

func (h *KnowledgeHandler) Register(g *echo.Group) {
	g.GET("/search", h.search)
	g.GET("/facts", h.facts)
	g.GET("/theories", h.theories)
	g.POST("/theories/:id/validate", h.validate)
}

func (h *KnowledgeHandler) search(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}
	minConfidence, _ := strconv.ParseFloat(c.QueryParam("min_confidence"), 64)
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	hits, err := h.Server.Knowledge.Search(c.Request().Context(), q, minConfidence, 0, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"results": hits, "count": len(hits)})
}

func (h *KnowledgeHandler) facts(c echo.Context) error {
	minConfidence, _ := strconv.ParseFloat(c.QueryParam("min_confidence"), 64)
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	facts, err := h.Server.Store.ListFacts(c.Request().Context(), minConfidence, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, facts)
}

func (h *KnowledgeHandler) theories(c echo.Context) error {
	status := c.QueryParam("status")
	switch status {
	case "", store.TheoryStatusPending, store.TheoryStatusValidated, store.TheoryStatusAnomaly, store.TheoryStatusRejected:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown status")
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	theories, err := h.Server.Store.ListTheoriesByStatus(c.Request().Context(), status, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, theories)
}

// validate runs the cascade on one pending theory immediately instead of
// waiting for the loop's next batch.
func (h *KnowledgeHandler) validate(c echo.Context) error {
	ctx := c.Request().Context()
	theory, err := h.Server.Store.GetTheory(ctx, c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "theory not found")
	}
	if theory.Status != store.TheoryStatusPending {
		return echo.NewHTTPError(http.StatusConflict, "theory already resolved")
	}
	verdict, err := h.Server.Cascade.ValidateTheory(ctx, theory)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"theory_id": theory.ID, "verdict": verdict})
}
