package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

type AwardHandler struct {
	Server *Server
}

type SettlePredictionRequest struct {
	Correct bool `json:"correct"`
}

func (h *AwardHandler) Register(g *echo.Group) {
	g.GET("/leaderboard", h.leaderboard)
	g.GET("/winner", h.winner)
	g.GET("/predictions/:agent_id", h.predictions)
	g.POST("/predictions/:id/settle", h.settle)
	g.POST("/validate", h.validate)
}

// validate runs the judge agent over open predictions against recent news.
func (h *AwardHandler) validate(c echo.Context) error {
	ctx := c.Request().Context()
	judge, ok := h.Server.Roster.Get(validatorName)
	if !ok {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "validator agent unavailable")
	}
	newsContext := h.Server.Feed.BuildContext(ctx, 10)
	settled := h.Server.Awards.ValidateAgainstNews(ctx, judge, newsContext, 20)
	return c.JSON(http.StatusOK, map[string]int{"settled": settled})
}

func (h *AwardHandler) leaderboard(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	entries, err := h.Server.Awards.Leaderboard(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *AwardHandler) winner(c echo.Context) error {
	entry, err := h.Server.Awards.Winner(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "no eligible agents yet")
	}
	return c.JSON(http.StatusOK, entry)
}

func (h *AwardHandler) predictions(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	preds, err := h.Server.Store.ListPredictionsByAgent(c.Request().Context(), c.Param("agent_id"), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, preds)
}

func (h *AwardHandler) settle(c echo.Context) error {
	var req SettlePredictionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.Server.Awards.Settle(c.Request().Context(), c.Param("id"), req.Correct); err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"prediction_id": c.Param("id"),
		"correct":       req.Correct,
	})
}
