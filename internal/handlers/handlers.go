package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/example/damage-analyzer/internal/repository"
	"github.com/example/damage-analyzer/internal/usecase"
)

// MaxUploadSize caps direct image uploads.
const MaxUploadSize = 10 << 20 // 10 MB

const serviceName = "vehicle-damage-analyzer"

// AnalyzeRequest is the analyze-by-reference request body.
type AnalyzeRequest struct {
	IpfsCID string `json:"ipfsCid"`
}

// RegisterRoutes wires the HTTP handlers to the Gin router. authMiddleware
// may be nil, in which case the analyze routes are open.
func RegisterRoutes(router *gin.Engine, uc *usecase.AnalysisUseCase, authMiddleware gin.HandlerFunc) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":       serviceName,
			"status":        "running",
			"backend_ready": uc.BackendReady(),
		})
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":        "healthy",
			"backend_ready": uc.BackendReady(),
		})
	})

	analyze := router.Group("/")
	if authMiddleware != nil {
		analyze.Use(authMiddleware)
	}

	analyze.POST("/analyze", func(c *gin.Context) {
		var req AnalyzeRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.IpfsCID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ipfsCid is required"})
			return
		}

		report, err := uc.AnalyzeCID(c.Request.Context(), req.IpfsCID)
		if err != nil {
			respondAnalysisError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	})

	analyze.POST("/analyze/upload", func(c *gin.Context) {
		file, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
			return
		}
		if file.Size > MaxUploadSize {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
			return
		}
		if ct := file.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "unsupported content type"})
			return
		}

		src, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unable to open image"})
			return
		}
		defer src.Close()

		data, err := io.ReadAll(src)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read image"})
			return
		}

		report, err := uc.AnalyzeUpload(c.Request.Context(), data)
		if err != nil {
			respondAnalysisError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	})

	router.GET("/reports/:id", func(c *gin.Context) {
		report, err := uc.GetReport(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, usecase.ErrPersistenceDisabled) {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
				return
			}
			if repository.IsNotFound(err) {
				c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, report)
	})

	router.GET("/metrics/summary", func(c *gin.Context) {
		summary, err := uc.GetMetricsSummary(c.Request.Context())
		if err != nil {
			if errors.Is(err, usecase.ErrPersistenceDisabled) {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, summary)
	})
}

// respondAnalysisError maps a vehicle-gate rejection to a structured 400 and
// everything else to a 500 with the raw message.
func respondAnalysisError(c *gin.Context, err error) {
	var gateErr *usecase.GateError
	if errors.As(err, &gateErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "Invalid image: Not a vehicle",
			"message":    gateErr.Message,
			"severity":   0.0,
			"is_vehicle": false,
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
