package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/troikatech/voicebridge/internal/bridge"
	"github.com/troikatech/voicebridge/pkg/errors"
)

// MediaStream upgrades the provider's media-stream request to a
// WebSocket and runs the C6 BridgeSession for the rest of the call.
// The handler blocks for the lifetime of the call: gin's handler
// goroutine is the right place for that, since the connection must
// stay open until the session terminates.
func (h *Handler) MediaStream(c *gin.Context) {
	reqID := c.Query("reqId")
	if reqID == "" {
		errors.BadRequest(c, "reqId is required")
		return
	}

	conn, err := bridge.UpgradeTelephony(c.Writer, c.Request)
	if err != nil {
		h.logger.Warn("failed to upgrade media-stream connection", zap.Error(err), zap.String("reqId", reqID))
		return
	}

	h.sessions.Add(1)
	defer h.sessions.Done()

	session := bridge.New(conn, reqID, bridge.Dependencies{
		Config:      h.cfg,
		AIClient:    h.aiClient,
		Registry:    h.registry,
		Transcripts: h.transcripts,
		Metrics:     h.metrics,
		Logger:      h.logger,
		Shutdown:    h.shutdown,
	})
	session.Run(c.Request.Context())
}
