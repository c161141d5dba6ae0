package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/troikatech/voicebridge/pkg/errors"
	"github.com/troikatech/voicebridge/pkg/webhook"
)

// CallStatusPayload is Twilio's StatusCallback form body; only the
// fields the relay consumes are bound, per spec.md §4.3/§6.
type CallStatusPayload struct {
	CallSid    string `form:"CallSid"`
	CallStatus string `form:"CallStatus"`
}

// terminalStatuses are the Twilio CallStatus values spec.md §6
// treats as ending a call's active_calls membership.
var terminalStatuses = map[string]bool{
	"completed": true,
	"busy":      true,
	"no-answer": true,
	"failed":    true,
	"canceled":  true,
}

// CallStatus handles the provider's StatusCallback webhook. On a
// terminal status it decrements active_calls, but only the first time
// a given CallSid is seen there: Twilio may redeliver the same
// callback, and registry.MarkNotified is what makes the decrement
// idempotent (spec.md §8, testable property 6). MarkNotified is kept
// independent of Forget's existence check: the bridge session's own
// terminate() also calls Forget for this callID on telephony stop/
// WS-close, and the two are unordered, independently-delivered
// signals for the same hangup — whichever fires first must not steal
// the other's decrement.
func (h *Handler) CallStatus(c *gin.Context) {
	var payload CallStatusPayload
	if err := c.ShouldBind(&payload); err != nil {
		errors.BadRequest(c, "invalid payload")
		return
	}

	if payload.CallSid == "" {
		errors.BadRequest(c, "CallSid is required")
		return
	}

	if h.cfg.TwilioWebhookSecret != "" {
		requestURL := "https://" + c.Request.Host + c.Request.URL.RequestURI()
		if err := c.Request.ParseForm(); err == nil {
			sig := c.GetHeader("X-Twilio-Signature")
			if err := webhook.VerifyTwilioSignature(h.cfg.TwilioWebhookSecret, requestURL, c.Request.PostForm, sig); err != nil {
				h.logger.Warn("rejected call_status webhook with bad signature")
				errors.Forbidden(c, "invalid signature")
				return
			}
		}
	}

	if terminalStatuses[payload.CallStatus] {
		h.registry.Forget(payload.CallSid)
		if h.registry.MarkNotified(payload.CallSid) {
			h.metrics.DecActiveCalls()
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}
