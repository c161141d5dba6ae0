package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// RootStatus is GET /'s response, per spec.md §6.
type RootStatus struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Port      string `json:"port"`
	Env       string `json:"env"`
}

func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, RootStatus{
		Status:    "ok",
		Timestamp: time.Now().Format(time.RFC3339),
		Port:      h.cfg.Port,
		Env:       h.cfg.NodeEnv,
	})
}

// HealthResponse is GET /health's response, per spec.md §6.
type HealthResponse struct {
	Status string  `json:"status"`
	Uptime float64 `json:"uptime"`
}

func (h *Handler) HealthCheck(c *gin.Context) {
	uptime := time.Since(time.Unix(h.startedAt, 0)).Seconds()
	c.JSON(http.StatusOK, HealthResponse{
		Status: "healthy",
		Uptime: uptime,
	})
}
