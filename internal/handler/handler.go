package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"inbox-janitor-go/internal/executor"
	metricsPkg "inbox-janitor-go/internal/metrics"
	"inbox-janitor-go/internal/scan"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	db           *gorm.DB
	orchestrator *scan.Orchestrator
	executor     *executor.Executor
	metrics      *metricsPkg.Metrics
}

// NewHandlers creates new HTTP handlers
func NewHandlers(db *gorm.DB, orchestrator *scan.Orchestrator, exec *executor.Executor, metrics *metricsPkg.Metrics) *Handlers {
	return &Handlers{
		db:           db,
		orchestrator: orchestrator,
		executor:     exec,
		metrics:      metrics,
	}
}

// SetupRoutes sets up all HTTP routes
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	router.GET("/healthz", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	{
		api.POST("/scans", h.StartScan)
		api.GET("/scans/:id", h.GetScan)
		api.POST("/scans/:id/batches", h.ProcessNextBatch)

		api.POST("/actions/execute", h.ExecuteActions)
		api.POST("/actions/:id/reject", h.RejectAction)
		api.POST("/batches/:batchId/undo", h.UndoBatch)
	}
}

// userID extracts the caller identity set by the auth layer in front of
// this service.
func userID(c *gin.Context) string {
	return c.GetHeader("X-User-ID")
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Database:  "ok",
	}

	if err := h.db.Raw("SELECT 1").Error; err != nil {
		response.Status = "error"
		response.Database = "error"
		logrus.Errorf("Database health check failed: %v", err)
	}

	statusCode := http.StatusOK
	if response.Status == "error" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, response)
}
