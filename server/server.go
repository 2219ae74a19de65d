// Package server exposes the review API: a small gin surface for browsing
// canonical entities and triggering exports while curators validate a run.
package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"coletores/database"
	"coletores/export"
	"coletores/internal/config"
)

// Server wires the review API over the canonical store.
type Server struct {
	cfg    *config.Config
	db     *database.CanonicalDB
	logger *slog.Logger
}

// New creates the server.
func New(cfg *config.Config, db *database.CanonicalDB) *Server {
	return &Server{
		cfg:    cfg,
		db:     db,
		logger: slog.Default().With("component", "review_api"),
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	api := router.Group("/api")
	{
		api.GET("/entities", s.listEntities)
		api.GET("/entities/:id", s.getEntity)
		api.GET("/stats", s.stats)
		api.POST("/export", s.runExport)
	}
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return router
}

// Run serves until the listener fails.
func (s *Server) Run() error {
	s.logger.Info("review api listening", "port", s.cfg.Port)
	return s.Router().Run(":" + s.cfg.Port)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds())
	}
}

func errorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// listEntities returns a page of entities, optionally filtered by type,
// minimum grouping confidence and a case-insensitive name search.
func (s *Server) listEntities(c *gin.Context) {
	entities, err := s.db.AllEntities()
	if err != nil {
		s.logger.Error("failed to list entities", "error", err)
		errorResponse(c, http.StatusInternalServerError, "failed to list entities")
		return
	}

	entityType := c.Query("type")
	search := strings.ToLower(c.Query("search"))
	minConfidence, _ := strconv.ParseFloat(c.DefaultQuery("min_confidence", "0"), 64)

	filtered := make([]*database.CanonicalEntity, 0, len(entities))
	for _, e := range entities {
		if entityType != "" && string(e.EntityType) != entityType {
			continue
		}
		if e.GroupingConfidence < minConfidence {
			continue
		}
		if search != "" && !entityMatchesSearch(e, search) {
			continue
		}
		filtered = append(filtered, e)
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 500 {
		perPage = 50
	}

	startIdx := (page - 1) * perPage
	if startIdx > len(filtered) {
		startIdx = len(filtered)
	}
	endIdx := min(startIdx+perPage, len(filtered))

	c.JSON(http.StatusOK, gin.H{
		"total":    len(filtered),
		"page":     page,
		"per_page": perPage,
		"entities": filtered[startIdx:endIdx],
	})
}

func entityMatchesSearch(e *database.CanonicalEntity, search string) bool {
	if strings.Contains(strings.ToLower(e.CanonicalName), search) {
		return true
	}
	for _, v := range e.Variations {
		if strings.Contains(strings.ToLower(v.VariationText), search) {
			return true
		}
	}
	return false
}

func (s *Server) getEntity(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid entity id")
		return
	}

	entities, err := s.db.AllEntities()
	if err != nil {
		s.logger.Error("failed to load entities", "error", err)
		errorResponse(c, http.StatusInternalServerError, "failed to load entity")
		return
	}
	for _, e := range entities {
		if e.ID == id {
			c.JSON(http.StatusOK, e)
			return
		}
	}
	errorResponse(c, http.StatusNotFound, "entity not found")
}

func (s *Server) stats(c *gin.Context) {
	counts, err := s.db.CountByType()
	if err != nil {
		s.logger.Error("failed to count entities", "error", err)
		errorResponse(c, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	entities, err := s.db.AllEntities()
	if err != nil {
		s.logger.Error("failed to load entities", "error", err)
		errorResponse(c, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	variations := 0
	occurrences := 0
	for _, e := range entities {
		variations += len(e.Variations)
		for _, v := range e.Variations {
			occurrences += v.OccurrenceCount
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"entities":    len(entities),
		"by_type":     counts,
		"variations":  variations,
		"occurrences": occurrences,
	})
}

type exportRequest struct {
	Format string `json:"format"`
	Path   string `json:"path"`
}

func (s *Server) runExport(c *gin.Context) {
	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid export request")
		return
	}
	if req.Path == "" {
		req.Path = s.cfg.CSVOutputPath
	}
	format := export.Format(req.Format)
	if req.Format == "" {
		format = export.FormatCSV
	}

	exporter := export.NewExporter(s.db)
	if err := exporter.Export(format, req.Path); err != nil {
		s.logger.Error("export failed", "format", string(format), "error", err)
		errorResponse(c, http.StatusInternalServerError, "export failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"format": string(format), "path": req.Path})
}
