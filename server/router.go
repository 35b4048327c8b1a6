package server

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/allfeat/massload/engine/pipeline"
	"github.com/allfeat/massload/engine/registry"
	"github.com/allfeat/massload/pkg/logger"
	"github.com/allfeat/massload/pkg/version"
)

// Uploads above this size are rejected before parsing.
const maxUploadBytes = 32 << 20

// NewRouter builds the gin engine with all routes registered.
func NewRouter(pipe *pipeline.Service, reg *registry.Registry) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), loggerMiddleware(), corsMiddleware())

	r.GET("/", handleHealth)
	r.GET("/health", handleHealth)

	api := r.Group("/api/v0")
	api.POST("/transform", handleTransform(pipe))
	api.GET("/templates", handleListTemplates(reg))
	api.DELETE("/templates/:id", handleDeleteTemplate(reg))
	return r
}

func handleHealth(c *gin.Context) {
	info := version.Get()
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "massload",
		"version": info.Version,
		"commit":  info.CommitHash,
		"endpoints": gin.H{
			"transform": "POST /api/v0/transform",
			"templates": "GET /api/v0/templates",
		},
	})
}

// handleTransform accepts a multipart CSV upload under the "file" field
// and runs the full pipeline on it. Options arrive as form values.
func handleTransform(pipe *pipeline.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		log := logger.FromContext(ctx)

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no file provided"})
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot open upload"})
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read upload"})
			return
		}

		opts := pipeline.DefaultOptions()
		opts.SkipValidation = c.PostForm("skipValidation") == "true"
		opts.NoCache = c.PostForm("noCache") == "true"
		opts.NoSave = c.PostForm("noSave") == "true"

		name := strings.TrimSuffix(fileHeader.Filename, filepath.Ext(fileHeader.Filename))
		log.Info("received upload", "file", fileHeader.Filename, "bytes", len(data))

		result, err := pipe.TransformBytes(ctx, data, name, opts)
		if err != nil {
			log.Error("transform failed", "file", fileHeader.Filename, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, newUploadResponse(result))
	}
}

func handleListTemplates(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		stored := reg.List()
		templates := make([]TemplateSummary, 0, len(stored))
		for _, m := range stored {
			summary := TemplateSummary{
				ID:          m.ID,
				Name:        m.Name,
				CsvColumns:  m.CsvColumns,
				CreatedAt:   m.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
				SuccessRate: m.SuccessRate,
				UseCount:    m.UseCount,
			}
			if m.LastUsed != nil {
				summary.LastUsed = m.LastUsed.Format("2006-01-02T15:04:05Z07:00")
			}
			templates = append(templates, summary)
		}
		c.JSON(http.StatusOK, gin.H{"templates": templates})
	}
}

func handleDeleteTemplate(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := reg.Delete(id); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": id})
	}
}
