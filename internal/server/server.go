// Package server exposes the HTTP and WebSocket API: auth, debates, the
// knowledge base, the autonomous loop and the observer endpoints.
package server

import (
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/paddockai/apex/config"
	"github.com/paddockai/apex/internal/agent"
	"github.com/paddockai/apex/internal/award"
	"github.com/paddockai/apex/internal/broadcast"
	"github.com/paddockai/apex/internal/cascade"
	"github.com/paddockai/apex/internal/debate"
	"github.com/paddockai/apex/internal/evaluation"
	"github.com/paddockai/apex/internal/knowledge"
	"github.com/paddockai/apex/internal/loop"
	"github.com/paddockai/apex/internal/newsfeed"
	"github.com/paddockai/apex/internal/runtime"
	"github.com/paddockai/apex/internal/store"
	"github.com/paddockai/apex/internal/telemetry"
)

// Server bundles the API dependencies.
type Server struct {
	Config    *config.Config
	Store     *store.Store
	Roster    *agent.Roster
	Engine    *debate.Engine
	Cascade   *cascade.Cascade
	Loop      *loop.Loop
	Knowledge *knowledge.Base
	Feed      *newsfeed.Feed
	Awards    *award.Service
	Evals     *evaluation.Engine
	Broadcast *broadcast.Registry
	Costs     *telemetry.CostTracker
	Redis     *redis.Client
	Secret    []byte
	Logger    *log.Logger
}

// Echo builds the configured echo instance with all routes registered.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	httpLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		httpLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}

	origins := s.Config.Server.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")

	authHandler := &AuthHandler{Store: s.Store, Secret: s.Secret}
	authHandler.Register(api.Group("/auth"))

	withAuth := runtime.EchoAuthMiddleware(s.Secret)

	agents := &AgentsHandler{Server: s}
	agents.Register(api.Group("/agents", withAuth))

	debates := &DebatesHandler{Server: s}
	debates.Register(api.Group("/debates", withAuth))

	kb := &KnowledgeHandler{Server: s}
	kb.Register(api.Group("/knowledge", withAuth))

	loopHandler := &LoopHandler{Server: s}
	loopHandler.Register(api.Group("/loop", withAuth))

	awards := &AwardHandler{Server: s}
	awards.Register(api.Group("/awards", withAuth))

	// spectator surface: reads are public, ingest is not
	observers := &ObserversHandler{Server: s}
	observers.Register(api.Group("/observe"), withAuth)

	feed := &FeedHandler{Server: s}
	api.GET("/loop/feed", feed.stream)

	return e
}

// Run starts the HTTP server and blocks.
func (s *Server) Run() error {
	addr := s.Config.Server.Address
	if addr == "" {
		addr = ":8090"
	}
	s.Logger.Printf("[HTTP] listening on %s", addr)
	return s.Echo().Start(addr)
}
