package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetMetrics renders the four C5 counters as Prometheus text
// exposition, per spec.md §4.5/§6.
func (h *Handler) GetMetrics(c *gin.Context) {
	c.Data(http.StatusOK, "text/plain", []byte(h.metrics.Prometheus()))
}
