// Package api serves the latest pipeline snapshot over HTTP. The
// server is read-only: it never mutates artifacts, it only reflects
// whatever the last run wrote.
package api

import (
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/nuview/topo-pipeline/internal/config"
	"github.com/nuview/topo-pipeline/internal/models"
	"github.com/nuview/topo-pipeline/internal/output"
)

type Server struct {
	Echo   *echo.Echo
	cfg    config.Config
	logger *zap.Logger

	// snapshot cache, refreshed when the file on disk changes
	mu          sync.Mutex
	snapshot    *output.Snapshot
	snapModTime time.Time
}

func NewServer(cfg config.Config, logger *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{Echo: e, cfg: cfg, logger: logger}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	api := s.Echo.Group("/api/v1")
	api.GET("/opportunities", s.handleListOpportunities)
	api.GET("/opportunities/:id", s.handleGetOpportunity)
	api.GET("/qc", s.handleGetQCReport)
	api.GET("/sources", s.handleGetSources)
}

// Start blocks serving until the listener fails.
func (s *Server) Start() error {
	addr := ":" + strconv.Itoa(s.cfg.Server.Port)
	s.logger.Info("api server listening", zap.String("addr", addr))
	return s.Echo.Start(addr)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// loadSnapshot returns the cached snapshot, rereading the file when its
// mtime moved.
func (s *Server) loadSnapshot() (*output.Snapshot, error) {
	path := filepath.Join(s.cfg.Output.Dir, s.cfg.Output.SnapshotFile)

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot != nil && info.ModTime().Equal(s.snapModTime) {
		return s.snapshot, nil
	}

	snap, err := output.ReadSnapshot(path)
	if err != nil {
		return nil, err
	}
	s.snapshot = snap
	s.snapModTime = info.ModTime()
	return snap, nil
}

func (s *Server) handleListOpportunities(c echo.Context) error {
	snap, err := s.loadSnapshot()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "no snapshot available")
	}

	category := c.QueryParam("category")
	urgency := c.QueryParam("urgency")
	minScore := 0
	if v := c.QueryParam("min_score"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			minScore = n
		}
	}
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	filtered := make([]models.Opportunity, 0, len(snap.Opportunities))
	for _, opp := range snap.Opportunities {
		if category != "" && string(opp.Category) != category {
			continue
		}
		if urgency != "" && string(opp.Urgency) != urgency {
			continue
		}
		if opp.PriorityScore < minScore {
			continue
		}
		filtered = append(filtered, opp)
		if limit > 0 && len(filtered) >= limit {
			break
		}
	}

	return c.JSON(http.StatusOK, output.Snapshot{
		Meta:          output.Meta{Updated: snap.Meta.Updated, TotalCount: len(filtered)},
		Opportunities: filtered,
	})
}

func (s *Server) handleGetOpportunity(c echo.Context) error {
	snap, err := s.loadSnapshot()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "no snapshot available")
	}

	id := c.Param("id")
	for _, opp := range snap.Opportunities {
		if opp.ID == id {
			return c.JSON(http.StatusOK, opp)
		}
	}
	return echo.NewHTTPError(http.StatusNotFound, "opportunity not found")
}

func (s *Server) handleGetQCReport(c echo.Context) error {
	path := filepath.Join(s.cfg.Output.Dir, s.cfg.Output.QCReportFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "no qc report available")
	}
	return c.JSONBlob(http.StatusOK, data)
}

// sourceSummary aggregates snapshot records per scraper.
type sourceSummary struct {
	Source   string  `json:"source"`
	Country  string  `json:"country"`
	Records  int     `json:"records"`
	Verified int     `json:"verified"`
	TopScore int     `json:"topScore"`
	AvgScore float64 `json:"avgScore"`
}

func (s *Server) handleGetSources(c echo.Context) error {
	snap, err := s.loadSnapshot()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "no snapshot available")
	}

	bySource := make(map[string]*sourceSummary)
	for _, opp := range snap.Opportunities {
		sum, ok := bySource[opp.Provenance.Scraper]
		if !ok {
			sum = &sourceSummary{Source: opp.Provenance.Scraper, Country: opp.Provenance.Country}
			bySource[opp.Provenance.Scraper] = sum
		}
		sum.Records++
		if opp.SourceVerified {
			sum.Verified++
		}
		if opp.PriorityScore > sum.TopScore {
			sum.TopScore = opp.PriorityScore
		}
		sum.AvgScore += float64(opp.PriorityScore)
	}

	summaries := make([]sourceSummary, 0, len(bySource))
	for _, sum := range bySource {
		sum.AvgScore /= float64(sum.Records)
		summaries = append(summaries, *sum)
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Source < summaries[j].Source })

	return c.JSON(http.StatusOK, summaries)
}
