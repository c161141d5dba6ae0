package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// TranscriptResponse is GET /transcripts/:callSid's response, per
// spec.md §4.4/§6.
type TranscriptResponse struct {
	CallSid    string      `json:"callSid"`
	Transcript interface{} `json:"transcript"`
}

func (h *Handler) GetTranscript(c *gin.Context) {
	callSid := c.Param("callSid")
	turns := h.transcripts.Read(callSid)
	c.JSON(http.StatusOK, TranscriptResponse{
		CallSid:    callSid,
		Transcript: turns,
	})
}
