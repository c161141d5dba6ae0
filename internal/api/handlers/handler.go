package handlers

import (
	"sync"

	"go.uber.org/zap"

	"github.com/troikatech/voicebridge/pkg/aiclient"
	"github.com/troikatech/voicebridge/pkg/env"
	"github.com/troikatech/voicebridge/pkg/logger"
	"github.com/troikatech/voicebridge/pkg/metrics"
	"github.com/troikatech/voicebridge/pkg/registry"
	"github.com/troikatech/voicebridge/pkg/telephonyclient"
	"github.com/troikatech/voicebridge/pkg/transcript"
)

// Handler bundles C7's collaborators: the control-plane endpoints
// share the registry and transcript store C6 also owns, plus the two
// outbound HTTPS clients and the process-wide metrics counters.
type Handler struct {
	cfg         *env.Config
	registry    *registry.Registry
	transcripts *transcript.Store
	metrics     *metrics.Metrics
	telephony   *telephonyclient.Client
	aiClient    *aiclient.Client
	logger      *zap.Logger
	startedAt   int64

	// sessions and shutdown let main give live BridgeSessions a grace
	// period on SIGTERM: srv.Shutdown alone can't see them, since
	// gorilla's Upgrader hijacks the connection out of net/http's own
	// tracking the moment /media-stream upgrades it.
	sessions *sync.WaitGroup
	shutdown <-chan struct{}
}

func NewHandler(
	cfg *env.Config,
	reg *registry.Registry,
	transcripts *transcript.Store,
	m *metrics.Metrics,
	telephony *telephonyclient.Client,
	aiClient *aiclient.Client,
	startedAt int64,
	sessions *sync.WaitGroup,
	shutdown <-chan struct{},
) *Handler {
	return &Handler{
		cfg:         cfg,
		registry:    reg,
		transcripts: transcripts,
		metrics:     m,
		telephony:   telephony,
		aiClient:    aiClient,
		logger:      logger.Log,
		startedAt:   startedAt,
		sessions:    sessions,
		shutdown:    shutdown,
	}
}
