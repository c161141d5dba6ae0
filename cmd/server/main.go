package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/troikatech/voicebridge/internal/api/handlers"
	"github.com/troikatech/voicebridge/pkg/aiclient"
	"github.com/troikatech/voicebridge/pkg/env"
	"github.com/troikatech/voicebridge/pkg/logger"
	"github.com/troikatech/voicebridge/pkg/metrics"
	"github.com/troikatech/voicebridge/pkg/middleware"
	"github.com/troikatech/voicebridge/pkg/otel"
	"github.com/troikatech/voicebridge/pkg/registry"
	"github.com/troikatech/voicebridge/pkg/telephonyclient"
	"github.com/troikatech/voicebridge/pkg/transcript"
)

// Server owns the relay's process-wide collaborators: the C3/C4
// stores, the C5 counters, the C1/C2 clients to each peer, and the
// Redis-backed rate limiter shared across the control plane.
type Server struct {
	cfg           *env.Config
	redisClient   *redis.Client
	redisDisabled bool
	registry      *registry.Registry
	transcripts   *transcript.Store
	metrics       *metrics.Metrics
	handler       *handlers.Handler
}

func main() {
	// env.Load panics on a missing required variable; recover it here so
	// log.Fatalf exits with status 1 instead of the runtime's panic exit.
	cfg, err := func() (cfg *env.Config, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%v", r)
			}
		}()
		return env.Load(".env")
	}()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := logger.Init(cfg.LogLevel, cfg.NodeEnv); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if cfg.OTELEnabled {
		shutdown, err := otel.InitTracing("voicebridge", "1.0.0", cfg.OTELEndpoint)
		if err != nil {
			logger.Log.Warn("failed to initialize OpenTelemetry", zap.Error(err))
		} else {
			defer shutdown()
			logger.Log.Info("OpenTelemetry tracing enabled", zap.String("endpoint", cfg.OTELEndpoint))
		}
	}

	logger.Log.Info("starting voicebridge relay", zap.String("env", cfg.NodeEnv), zap.String("port", cfg.Port))

	// REDIS_URL is ambient-only (SPEC_FULL.md §4.8): it backs nothing
	// but the control plane's rate limiter, and is absent from spec.md
	// §6's required-env-var list and exit-code table. A Redis outage
	// must not take down call placement and bridging (C1-C6), so a
	// bad URL or failed ping disables rate limiting instead of exiting.
	var redisClient *redis.Client
	redisDisabled := false
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Log.Warn("failed to parse Redis URL, rate limiting disabled", zap.Error(err))
		redisDisabled = true
	} else {
		redisClient = redis.NewClient(opt)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Log.Warn("failed to connect to Redis, rate limiting disabled", zap.Error(err))
			redisClient.Close()
			redisClient = nil
			redisDisabled = true
		}
	}

	m := metrics.New()
	reg := registry.New()
	defer reg.Close()
	transcripts := transcript.New()

	telephony := telephonyclient.New(cfg.TwilioBaseURL, cfg.TwilioAccountSID, cfg.TwilioAuthToken, m)
	ai := aiclient.New(cfg.ElevenLabsBaseURL, cfg.ElevenLabsAPIKey, m)

	// sessionWG and shutdownSignal let main give live BridgeSessions a
	// grace period on SIGTERM (see the wait below): net/http's own
	// Shutdown can't see them once gorilla's Upgrader hijacks the
	// connection.
	var sessionWG sync.WaitGroup
	shutdownSignal := make(chan struct{})

	apiHandler := handlers.NewHandler(cfg, reg, transcripts, m, telephony, ai, time.Now().Unix(), &sessionWG, shutdownSignal)

	server := &Server{
		cfg:           cfg,
		redisClient:   redisClient,
		redisDisabled: redisDisabled,
		registry:      reg,
		transcripts:   transcripts,
		metrics:       m,
		handler:       apiHandler,
	}

	router := server.setupRouter()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: time.Duration(cfg.MediaStreamTimeoutMs) * time.Millisecond,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Log.Info("relay listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("shutting down relay")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Warn("server forced to shutdown", zap.Error(err))
	}

	// srv.Shutdown only stops new accepts; every /media-stream
	// connection already upgraded to a WebSocket was hijacked out of
	// net/http's tracking the moment it upgraded, so it's given its own
	// grace period here via sessionWG, bounded by the same 10s deadline
	// spec.md §5 allows in-flight sessions to close within. Whatever is
	// still running past the deadline is force-terminated by closing
	// shutdownSignal.
	sessionsDone := make(chan struct{})
	go func() {
		sessionWG.Wait()
		close(sessionsDone)
	}()

	select {
	case <-sessionsDone:
		logger.Log.Info("all bridge sessions closed cleanly")
	case <-shutdownCtx.Done():
		logger.Log.Warn("bridge sessions still open past shutdown deadline, forcing close")
		close(shutdownSignal)
		<-sessionsDone
	}

	if redisClient != nil {
		redisClient.Close()
	}

	logger.Log.Info("relay exited")
}

func (s *Server) setupRouter() *gin.Engine {
	if s.cfg.NodeEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.TraceMiddleware())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestSizeLimit(1 << 20))

	if s.cfg.OTELEnabled {
		router.Use(otel.GinMiddleware())
	}

	router.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("[%s] %s %s %d %s\n",
			param.TimeStamp.Format(time.RFC3339),
			param.Method,
			param.Path,
			param.StatusCode,
			param.Latency,
		)
	}))

	corsConfig := cors.DefaultConfig()
	if s.cfg.CORSAllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = []string{s.cfg.CORSAllowedOrigins}
	}
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Twilio-Signature"}
	router.Use(cors.New(corsConfig))

	router.GET("/", s.handler.Root)
	router.GET("/health", s.handler.HealthCheck)
	router.GET("/metrics", s.handler.GetMetrics)

	// Only the call-creation endpoint is rate-limited: outbound_twiml
	// and call_status are provider callbacks driven by call volume
	// already admitted through outbound_call, not by a caller we want
	// to throttle. When Redis is unreachable at boot the limiter is
	// left out of the chain entirely rather than failing every request.
	if s.redisDisabled {
		logger.Log.Warn("rate limiting disabled: no Redis connection")
		router.POST("/twilio/outbound_call", s.handler.CreateOutboundCall)
	} else {
		rateLimiter := middleware.NewRateLimiter(s.redisClient, s.cfg.APIRateLimitRPM)
		router.POST("/twilio/outbound_call", rateLimiter.Middleware(), s.handler.CreateOutboundCall)
	}
	router.POST("/twilio/outbound_twiml", s.handler.OutboundTwiML)
	router.POST("/twilio/call_status", s.handler.CallStatus)

	router.GET("/transcripts/:callSid", s.handler.GetTranscript)
	router.GET("/media-stream", s.handler.MediaStream)

	return router
}
