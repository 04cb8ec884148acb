package handler

import (
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

// PingResult is the body of the ping endpoints
type PingResult struct {
	Result string `json:"result"`
}

// PingHandler answers liveness probes. Every ping bumps a process-wide counter.
type PingHandler struct {
	count atomic.Int64
}

// NewPingHandler creates a PingHandler
func NewPingHandler() *PingHandler {
	return &PingHandler{}
}

// RegisterRoutes mounts /ping and /pong
func (h *PingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ping", h.Ping)
	rg.GET("/pong", h.Pong)
}

// Ping responds with "Pong N", N counting the pings served so far
func (h *PingHandler) Ping(c *gin.Context) {
	n := h.count.Add(1)
	c.JSON(http.StatusOK, PingResult{Result: fmt.Sprintf("Pong %d", n)})
}

// Pong responds with "Ping"
func (h *PingHandler) Pong(c *gin.Context) {
	c.JSON(http.StatusOK, PingResult{Result: "Ping"})
}
