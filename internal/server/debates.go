package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

type DebatesHandler struct {
	Server *Server
}

type TriggerDebateRequest struct {
	Topic        string   `json:"topic"`
	Domain       string   `json:"domain"`
	Participants []string `json:"participants"`
}

func (h *DebatesHandler) Register(g *echo.Group) {
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.POST("", h.trigger)
	g.GET("/:id/stream", h.stream)
}

func (h *DebatesHandler) list(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	sessions, err := h.Server.Store.ListDebateSessions(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, sessions)
}

func (h *DebatesHandler) get(c echo.Context) error {
	ctx := c.Request().Context()
	sess, err := h.Server.Store.GetDebateSession(ctx, c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "debate not found")
	}
	messages, err := h.Server.Store.ListDebateMessages(ctx, sess.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"session":  sess,
		"messages": messages,
	})
}

// trigger starts a debate synchronously and returns the finished result.
// Long debates are expected; clients wanting live progress subscribe to the
// stream endpoint or the global feed first.
func (h *DebatesHandler) trigger(c echo.Context) error {
	var req TriggerDebateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Topic) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "topic is required")
	}
	domain := req.Domain
	if domain == "" {
		domain = "general"
	}
	res, err := h.Server.Engine.Run(c.Request().Context(), req.Topic, domain, req.Participants, nil)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"session": res.Session,
		"verdict": res.Verdict,
		"summary": res.Summary,
	})
}

// stream upgrades to a websocket subscribed to one debate's events.
func (h *DebatesHandler) stream(c echo.Context) error {
	debateID := c.Param("id")
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	sub := newWSSubscriber(conn)
	h.Server.Broadcast.Subscribe(debateID, sub)
	defer func() {
		h.Server.Broadcast.Unsubscribe(debateID, sub)
		sub.Close()
	}()

	// reads only serve to detect the client hanging up
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}
