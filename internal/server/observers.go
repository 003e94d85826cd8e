package server

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/paddockai/apex/internal/store"
)

// ObserversHandler serves the read-mostly surface used by dashboards and
// spectators: news, platform stats, spend, and debate exports.
type ObserversHandler struct {
	Server *Server
}

type IngestNewsRequest struct {
	Headline string `json:"headline"`
	Source   string `json:"source"`
	URL      string `json:"url"`
	Category string `json:"category"`
}

func (h *ObserversHandler) Register(g *echo.Group, auth echo.MiddlewareFunc) {
	g.GET("/news", h.news)
	g.POST("/news", h.ingest, auth)
	g.GET("/stats", h.stats)
	g.GET("/costs", h.costs)
	g.GET("/export", h.export)
}

func (h *ObserversHandler) news(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	events, err := h.Server.Feed.Recent(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, events)
}

func (h *ObserversHandler) ingest(c echo.Context) error {
	var req IngestNewsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Headline) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "headline is required")
	}
	event, err := h.Server.Feed.Ingest(c.Request().Context(), req.Headline, req.Source, req.URL, req.Category)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, event)
}

// statsCacheKey holds the serialized platform counters for a few seconds so
// spectator-heavy dashboards cannot hammer the count queries.
const (
	statsCacheKey = "apex:stats:platform"
	statsCacheTTL = 15 * time.Second
)

func (h *ObserversHandler) stats(c echo.Context) error {
	ctx := c.Request().Context()
	stats, err := h.cachedStats(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"platform": stats,
		"costs":    h.Server.Costs.Snapshot(),
	})
}

// cachedStats serves the counters from Redis when possible and falls back to
// the database on any cache failure.
func (h *ObserversHandler) cachedStats(ctx context.Context) (store.Stats, error) {
	if h.Server.Redis != nil {
		if cached, err := h.Server.Redis.Get(ctx, statsCacheKey).Bytes(); err == nil {
			var stats store.Stats
			if json.Unmarshal(cached, &stats) == nil {
				return stats, nil
			}
		}
	}
	stats, err := h.Server.Store.PlatformStats(ctx)
	if err != nil {
		return store.Stats{}, err
	}
	if h.Server.Redis != nil {
		if payload, err := json.Marshal(stats); err == nil {
			h.Server.Redis.Set(ctx, statsCacheKey, payload, statsCacheTTL)
		}
	}
	return stats, nil
}

func (h *ObserversHandler) costs(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Server.Costs.Snapshot())
}

// export dumps platform records: debates (default, JSON or ?format=csv),
// ?kind=facts as CSV, ?kind=theories as JSON.
func (h *ObserversHandler) export(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	switch c.QueryParam("kind") {
	case "", "debates":
	case "facts":
		return h.exportFacts(c, limit)
	case "theories":
		theories, err := h.Server.Store.ListTheoriesByStatus(c.Request().Context(), "", limit)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, theories)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown export kind")
	}

	sessions, err := h.Server.Store.ListDebateSessions(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if c.QueryParam("format") != "csv" {
		return c.JSON(http.StatusOK, sessions)
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="debates.csv"`)
	c.Response().WriteHeader(http.StatusOK)
	w := csv.NewWriter(c.Response())
	if err := w.Write([]string{"id", "topic", "domain", "status", "verdict", "confidence", "participants", "started_at"}); err != nil {
		return err
	}
	for _, s := range sessions {
		record := []string{
			s.ID,
			s.Topic,
			s.Domain,
			s.Status,
			s.Verdict,
			fmt.Sprintf("%.1f", s.VerdictConfidence),
			strings.Join(s.ParticipantIDs, "|"),
			s.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func (h *ObserversHandler) exportFacts(c echo.Context, limit int) error {
	facts, err := h.Server.Store.ListFacts(c.Request().Context(), 0, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="facts.csv"`)
	c.Response().WriteHeader(http.StatusOK)
	w := csv.NewWriter(c.Response())
	if err := w.Write([]string{"id", "content", "category", "confidence", "is_seed", "t2_lookups", "t3_lookups"}); err != nil {
		return err
	}
	for _, f := range facts {
		record := []string{
			f.ID,
			f.Content,
			f.Category,
			strconv.FormatFloat(f.Confidence, 'f', 2, 64),
			strconv.FormatBool(f.IsSeed),
			strconv.Itoa(f.T2Lookups),
			strconv.Itoa(f.T3Lookups),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
