package handler

import (
	"net/http"
	"time"

	"github.com/erp/customerdir/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger is satisfied by persistence.Database
type Pinger interface {
	Ping() error
}

// HealthHandler reports whether the service can reach its database
type HealthHandler struct {
	db        Pinger
	startTime time.Time
	now       func() time.Time
}

// NewHealthHandler creates a HealthHandler
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{
		db:        db,
		startTime: time.Now(),
		now:       time.Now,
	}
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status   string `json:"status"`
	Time     string `json:"time"`
	Uptime   string `json:"uptime"`
	Database string `json:"database"`
}

// Check pings the database; an unreachable database yields 503
func (h *HealthHandler) Check(c *gin.Context) {
	now := h.now()
	resp := HealthResponse{
		Status:   "healthy",
		Time:     now.Format(time.RFC3339),
		Uptime:   now.Sub(h.startTime).Round(time.Second).String(),
		Database: "ok",
	}

	if err := h.db.Ping(); err != nil {
		logger.GetGinLogger(c).Warn("Health check failed", zap.Error(err))
		resp.Status = "unhealthy"
		resp.Database = "error"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}

	c.JSON(http.StatusOK, resp)
}
