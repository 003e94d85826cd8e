package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type LoopHandler struct {
	Server *Server
}

func (h *LoopHandler) Register(g *echo.Group) {
	g.GET("", h.status)
	g.GET("/status", h.status)
	g.POST("/start", h.start)
	g.POST("/stop", h.stop)
}

func (h *LoopHandler) status(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Server.Loop.Snapshot())
}

func (h *LoopHandler) start(c echo.Context) error {
	h.Server.Loop.Start()
	return c.JSON(http.StatusOK, h.Server.Loop.Snapshot())
}

func (h *LoopHandler) stop(c echo.Context) error {
	h.Server.Loop.Stop()
	return c.JSON(http.StatusOK, h.Server.Loop.Snapshot())
}

// feedReplay bounds how much recent history a new feed subscriber receives
// before live events.
const feedReplay = 40

type FeedHandler struct {
	Server *Server
}

// stream upgrades to the global event feed: recent history first, then every
// event published anywhere on the platform.
func (h *FeedHandler) stream(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	sub := newWSSubscriber(conn)
	for _, ev := range h.Server.Broadcast.Recent(feedReplay) {
		if err := sub.Send(ev); err != nil {
			sub.Close()
			return nil
		}
	}
	h.Server.Broadcast.SubscribeGlobal(sub)
	defer func() {
		h.Server.Broadcast.UnsubscribeGlobal(sub)
		sub.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}
