package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/troikatech/voicebridge/pkg/errors"
	"github.com/troikatech/voicebridge/pkg/registry"
	"github.com/troikatech/voicebridge/pkg/telephonyclient"
	"github.com/troikatech/voicebridge/pkg/validation"
)

// OutboundCallRequest is POST /twilio/outbound_call's body, per
// spec.md §4.3. Script/Persona/Context are forwarded to the AI peer
// once the media stream opens; none are required.
type OutboundCallRequest struct {
	To      string `json:"to" binding:"required"`
	From    string `json:"from"`
	Script  string `json:"script"`
	Persona string `json:"persona"`
	Context string `json:"context"`
}

// OutboundCallResponse mirrors the Twilio-shaped result the caller
// expects back, plus the reqId a subsequent outbound_twiml request
// must echo.
type OutboundCallResponse struct {
	Success   bool   `json:"success"`
	CallSid   string `json:"callSid"`
	To        string `json:"to"`
	From      string `json:"from"`
	Status    string `json:"status"`
	ReqID     string `json:"reqId"`
	Timestamp string `json:"timestamp"`
}

// newRequestID generates a 16-hex-char request id, short enough to
// carry as a TwiML query parameter and long enough to not collide
// across concurrently-placed calls.
func newRequestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// CreateOutboundCall places a call via the telephony provider and
// registers the request's context in C3 so the media stream handler
// can find it once the provider opens the WebSocket, per spec.md §4.3.
func (h *Handler) CreateOutboundCall(c *gin.Context) {
	var req OutboundCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, err.Error())
		return
	}

	if err := validation.ValidateE164(req.To); err != nil {
		errors.BadRequest(c, err.Error())
		return
	}

	from := req.From
	if from == "" {
		from = h.cfg.TwilioPhoneNumber
	}

	reqID := newRequestID()
	h.registry.Put(&registry.CallContext{
		RequestID: reqID,
		Script:    req.Script,
		Persona:   req.Persona,
		Context:   req.Context,
		CreatedAt: time.Now(),
	})

	markupURL := "https://" + c.Request.Host + "/twilio/outbound_twiml?reqId=" + reqID
	statusURL := "https://" + c.Request.Host + "/twilio/call_status"

	result, err := h.telephony.PlaceCall(c.Request.Context(), telephonyclient.PlaceCallRequest{
		To:        req.To,
		From:      from,
		MarkupURL: markupURL,
		StatusURL: statusURL,
	})
	if err != nil {
		h.metrics.IncErrorsTotal()
		errors.InternalError(c, err, h.logger)
		return
	}

	h.registry.BindCallID(reqID, result.CallID)
	h.metrics.IncCallsTotal()
	h.metrics.IncActiveCalls()

	c.JSON(http.StatusOK, OutboundCallResponse{
		Success:   true,
		CallSid:   result.CallID,
		To:        req.To,
		From:      from,
		Status:    result.Status,
		ReqID:     reqID,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// OutboundTwiML answers the provider's markup fetch with a <Connect>
// <Stream> document pointing back at /media-stream, per spec.md §4.3.
func (h *Handler) OutboundTwiML(c *gin.Context) {
	reqID := c.Query("reqId")
	if reqID == "" {
		errors.BadRequest(c, "reqId is required")
		return
	}

	markup := telephonyclient.BuildStreamMarkup(c.Request.Host, reqID)
	c.Data(http.StatusOK, "text/xml", []byte(markup))
}
