package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/troikatech/voicebridge/pkg/aiclient"
	"github.com/troikatech/voicebridge/pkg/env"
	"github.com/troikatech/voicebridge/pkg/metrics"
	"github.com/troikatech/voicebridge/pkg/registry"
	"github.com/troikatech/voicebridge/pkg/telephonyclient"
	"github.com/troikatech/voicebridge/pkg/transcript"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestHandler(telephonyBaseURL string) *Handler {
	cfg := &env.Config{
		Port: "8000", NodeEnv: "test", MaxAIRetries: 3, MediaStreamTimeoutMs: 300000,
		TwilioPhoneNumber: "+15550001111",
	}
	m := metrics.New()
	reg := registry.New()
	transcripts := transcript.New()
	telephony := telephonyclient.New(telephonyBaseURL, "AC_test", "token", m)
	ai := aiclient.New("https://api.elevenlabs.test", "key", m)
	var sessions sync.WaitGroup
	return NewHandler(cfg, reg, transcripts, m, telephony, ai, time.Now().Unix(), &sessions, make(chan struct{}))
}

func TestCreateOutboundCallSuccess(t *testing.T) {
	twilio := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sid":"CA123","status":"queued"}`))
	}))
	defer twilio.Close()

	h := newTestHandler(twilio.URL)

	router := gin.New()
	router.POST("/twilio/outbound_call", h.CreateOutboundCall)

	body, _ := json.Marshal(OutboundCallRequest{To: "+15551234567"})
	req := httptest.NewRequest(http.MethodPost, "/twilio/outbound_call", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp OutboundCallResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.CallSid != "CA123" {
		t.Errorf("CallSid = %q, want CA123", resp.CallSid)
	}
	if len(resp.ReqID) != 16 {
		t.Errorf("ReqID = %q, want 16 hex chars", resp.ReqID)
	}

	if _, ok := h.registry.Get(resp.ReqID); !ok {
		t.Error("expected reqId to be registered")
	}

	calls, _, active, _ := h.metrics.Snapshot()
	if calls != 1 || active != 1 {
		t.Errorf("calls_total=%d active_calls=%d, want 1 and 1", calls, active)
	}
}

func TestCreateOutboundCallRejectsInvalidNumber(t *testing.T) {
	h := newTestHandler("http://unused.invalid")

	router := gin.New()
	router.POST("/twilio/outbound_call", h.CreateOutboundCall)

	body, _ := json.Marshal(OutboundCallRequest{To: "not-a-number"})
	req := httptest.NewRequest(http.MethodPost, "/twilio/outbound_call", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestOutboundTwiMLReturnsStreamMarkup(t *testing.T) {
	h := newTestHandler("http://unused.invalid")

	router := gin.New()
	router.POST("/twilio/outbound_twiml", h.OutboundTwiML)

	req := httptest.NewRequest(http.MethodPost, "/twilio/outbound_twiml?reqId=abcdef0123456789", nil)
	req.Host = "relay.example.com"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("wss://relay.example.com/media-stream?reqId=abcdef0123456789")) {
		t.Errorf("unexpected markup: %s", rec.Body.String())
	}
}
