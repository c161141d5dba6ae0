package test

import (
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/troikatech/voicebridge/internal/api/handlers"
	"github.com/troikatech/voicebridge/pkg/aiclient"
	"github.com/troikatech/voicebridge/pkg/env"
	"github.com/troikatech/voicebridge/pkg/metrics"
	"github.com/troikatech/voicebridge/pkg/registry"
	"github.com/troikatech/voicebridge/pkg/telephonyclient"
	"github.com/troikatech/voicebridge/pkg/transcript"
)

// buildTestRouter registers the relay's route table without the
// Redis-backed rate limiter, since route registration doesn't need a
// live Redis connection.
func buildTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	cfg := &env.Config{Port: "8000", NodeEnv: "test", MaxAIRetries: 3, MediaStreamTimeoutMs: 300000}
	m := metrics.New()
	reg := registry.New()
	transcripts := transcript.New()
	telephony := telephonyclient.New("https://api.twilio.test", "AC_test", "token", m)
	ai := aiclient.New("https://api.elevenlabs.test", "key", m)

	var sessions sync.WaitGroup
	h := handlers.NewHandler(cfg, reg, transcripts, m, telephony, ai, time.Now().Unix(), &sessions, make(chan struct{}))

	router.GET("/", h.Root)
	router.GET("/health", h.HealthCheck)
	router.GET("/metrics", h.GetMetrics)
	router.POST("/twilio/outbound_call", h.CreateOutboundCall)
	router.POST("/twilio/outbound_twiml", h.OutboundTwiML)
	router.POST("/twilio/call_status", h.CallStatus)
	router.GET("/transcripts/:callSid", h.GetTranscript)
	router.GET("/media-stream", h.MediaStream)

	return router
}

var expectedRoutes = []struct {
	method string
	path   string
}{
	{"GET", "/"},
	{"GET", "/health"},
	{"GET", "/metrics"},
	{"POST", "/twilio/outbound_call"},
	{"POST", "/twilio/outbound_twiml"},
	{"POST", "/twilio/call_status"},
	{"GET", "/transcripts/:callSid"},
	{"GET", "/media-stream"},
}

func Test_Routes_Registered(t *testing.T) {
	r := buildTestRouter()
	routes := r.Routes()

	registered := make(map[string]bool)
	for _, rt := range routes {
		registered[rt.Method+" "+rt.Path] = true
	}

	for _, expected := range expectedRoutes {
		key := expected.method + " " + expected.path
		if !registered[key] {
			t.Errorf("missing route: %s %s", expected.method, expected.path)
		}
	}
}

func Test_Routes_Count(t *testing.T) {
	r := buildTestRouter()
	routes := r.Routes()

	if len(routes) < len(expectedRoutes) {
		t.Errorf("expected at least %d routes, got %d", len(expectedRoutes), len(routes))
	}
}
