// Package api serves the latest snapshots to the dashboard.
package api

import (
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"go-crowdworks-watcher/internal/snapshot"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	dataDir string
	log     *zap.Logger
}

func NewHandler(dataDir string, log *zap.Logger) *Handler {
	return &Handler{dataDir: dataDir, log: log}
}

// NewRouter wires the read-only endpoints.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.log))

	r.GET("/", h.Health)
	r.GET("/health", h.Health)
	r.GET("/api/listings/latest", h.LatestListings)
	return r
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "CrowdWorks watcher API is running!",
		"status":  "healthy",
	})
}

// LatestListings returns the newest raw snapshot, or the newest filtered one
// with ?filtered=true. A snapshot that is missing or still being written is
// reported as an empty list, never as an error.
func (h *Handler) LatestListings(c *gin.Context) {
	filtered, err := strconv.ParseBool(c.DefaultQuery("filtered", "false"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "filtered must be a boolean"})
		return
	}

	listings, path := snapshot.Latest(h.dataDir, filtered)
	source := ""
	if path != "" {
		source = filepath.Base(path)
	}

	c.JSON(http.StatusOK, gin.H{
		"filtered": filtered,
		"source":   source,
		"count":    len(listings),
		"listings": listings,
	})
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("🌐 Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
