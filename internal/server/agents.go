package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

type AgentsHandler struct {
	Server *Server
}

func (h *AgentsHandler) Register(g *echo.Group) {
	g.GET("", h.list)
	g.GET("/:name", h.get)
	g.POST("/:name/evaluate", h.evaluate)
}

func (h *AgentsHandler) list(c echo.Context) error {
	if tierParam := c.QueryParam("tier"); tierParam != "" {
		tier, err := strconv.Atoi(tierParam)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "tier must be an integer")
		}
		agents, err := h.Server.Store.ListAgentsByTier(c.Request().Context(), tier)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, agents)
	}
	agents, err := h.Server.Store.ListAgents(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, agents)
}

func (h *AgentsHandler) get(c echo.Context) error {
	rec, err := h.Server.Store.GetAgentByName(c.Request().Context(), c.Param("name"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "agent not found")
	}
	return c.JSON(http.StatusOK, rec)
}

// evaluate runs the admission question bank for the agent's tier (or an
// explicit ?tier=) and returns the scored report.
func (h *AgentsHandler) evaluate(c echo.Context) error {
	name := c.Param("name")
	candidate, ok := h.Server.Roster.Get(name)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "agent not found")
	}
	tier := candidate.Persona.Tier
	if tierParam := c.QueryParam("tier"); tierParam != "" {
		parsed, err := strconv.Atoi(tierParam)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "tier must be an integer")
		}
		tier = parsed
	}
	report, err := h.Server.Evals.Evaluate(c.Request().Context(), candidate, tier)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, report)
}
