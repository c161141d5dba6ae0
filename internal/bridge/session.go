// Package bridge implements C6, the Bridge Session: one instance per
// telephony call, owning both the telephony WebSocket and the AI
// WebSocket and relaying audio and control frames between them.
//
// Grounded on the teacher's internal/api/handlers/voicebot.go (the
// VoiceSession struct, its mutex-guarded fields, and its read-loop /
// ping-ticker goroutine split), generalized from a single fixed
// telephony<->OpenAI pipeline into the two-independently-reconnecting
// peers this relay bridges, with the STT/TTS processing pipeline
// replaced by pure forwarding.
package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/troikatech/voicebridge/pkg/aiclient"
	"github.com/troikatech/voicebridge/pkg/env"
	"github.com/troikatech/voicebridge/pkg/metrics"
	"github.com/troikatech/voicebridge/pkg/registry"
	"github.com/troikatech/voicebridge/pkg/retry"
	"github.com/troikatech/voicebridge/pkg/transcript"
)

// State is one of BridgeSession's lifecycle states, per spec.md §4.6.
type State int

const (
	StateOpening State = iota
	StateAwaitStreamID
	StateAIConnecting
	StateAIOpenNotReady
	StateReady
	StateTerminating
	StateClosed
)

// Dependencies bundles a Session's collaborators.
type Dependencies struct {
	Config      *env.Config
	AIClient    *aiclient.Client
	Registry    *registry.Registry
	Transcripts *transcript.Store
	Metrics     *metrics.Metrics
	Logger      *zap.Logger

	// Shutdown, when closed, tells a running Session the process is
	// past its shutdown grace period and must terminate now rather
	// than wait for the call to end on its own. Nil is fine: a nil
	// channel never fires, so Run never force-terminates.
	Shutdown <-chan struct{}
}

// Session is one BridgeSession instance: one telephony peer, one
// reconnecting AI peer, and the state coupling them.
//
// A single mutex guards every field below the line plus every write
// to either WebSocket peer. gorilla's Conn forbids concurrent
// writers, and the coupling between aiReady and pendingAudio must be
// atomic with the writes it gates, so one coarse lock is simpler and
// safer here than per-field locks plus a separate write-serializing
// channel.
type Session struct {
	requestID     string
	telephonyConn wsConn
	dialAI        dialFunc
	sleepFn       func(time.Duration) bool

	cfg           *env.Config
	aiClient      *aiclient.Client
	registry      *registry.Registry
	transcripts   *transcript.Store
	metrics       *metrics.Metrics
	logger        *zap.Logger
	maxRetries    int
	mediaTimeout  time.Duration
	backoffConfig retry.Config
	shutdown      <-chan struct{}

	callCtx *registry.CallContext

	mu                sync.Mutex
	state             State
	streamID          string
	aiConn            wsConn
	aiReady           bool
	pendingAudio      []string
	reconnectAttempts int
	closed            bool

	doneCh    chan struct{}
	closeOnce sync.Once
	idleTimer *time.Timer
}

// New constructs a Session for one telephony WebSocket connection.
func New(telephonyConn wsConn, requestID string, deps Dependencies) *Session {
	return &Session{
		requestID:     requestID,
		telephonyConn: telephonyConn,
		dialAI:        defaultDialAI,
		cfg:           deps.Config,
		aiClient:      deps.AIClient,
		registry:      deps.Registry,
		transcripts:   deps.Transcripts,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		maxRetries:    deps.Config.MaxAIRetries,
		mediaTimeout:  time.Duration(deps.Config.MediaStreamTimeoutMs) * time.Millisecond,
		shutdown:      deps.Shutdown,
		backoffConfig: retry.Config{
			InitialDelay: time.Second,
			MaxDelay:     time.Hour,
			Multiplier:   2.0,
			Jitter:       false,
		},
		state:  StateOpening,
		doneCh: make(chan struct{}),
	}
}

// Run drives the session to completion: it blocks until the telephony
// peer disconnects, the AI peer's retries are exhausted, or the idle
// timer fires.
func (s *Session) Run(ctx context.Context) {
	callCtx, ok := s.registry.Get(s.requestID)
	if !ok {
		s.logger.Warn("media-stream connected with unknown reqId", zap.String("reqId", s.requestID))
		s.telephonyConn.Close()
		return
	}
	s.callCtx = callCtx

	s.mu.Lock()
	s.state = StateAwaitStreamID
	s.mu.Unlock()

	s.idleTimer = time.AfterFunc(s.mediaTimeout, func() {
		s.terminate("idle timeout")
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.runAILoop(ctx)
	}()

	if s.shutdown != nil {
		go func() {
			select {
			case <-s.shutdown:
				s.terminate("server shutting down")
			case <-s.doneCh:
			}
		}()
	}

	s.runTelephonyLoop()
	wg.Wait()
}

func (s *Session) runTelephonyLoop() {
	for {
		_, msg, err := s.telephonyConn.ReadMessage()
		if err != nil {
			s.terminate("telephony read error")
			return
		}

		var env telephonyEnvelope
		if err := json.Unmarshal(msg, &env); err != nil {
			s.logger.Warn("failed to parse telephony frame", zap.Error(err))
			continue
		}

		switch env.Event {
		case "start":
			s.mu.Lock()
			s.streamID = env.Start.StreamSid
			s.mu.Unlock()
		case "media":
			s.handleTelephonyMedia(env.Media.Payload)
		case "stop":
			if !s.hasStreamID() {
				continue
			}
			s.terminate("telephony stop event")
			return
		default:
			s.logger.Debug("ignoring telephony event", zap.String("event", env.Event))
		}
	}
}

func (s *Session) hasStreamID() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamID != ""
}

func (s *Session) handleTelephonyMedia(payload string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.streamID == "" || s.closed {
		return
	}
	if !s.aiReady {
		s.pendingAudio = append(s.pendingAudio, payload)
		return
	}
	s.writeAILocked(userAudioChunkFrame{UserAudioChunk: payload})
}

// runAILoop owns the AI peer's entire lifecycle: connect, read until
// disconnect, back off, and retry, until the session closes or
// retries are exhausted.
func (s *Session) runAILoop(ctx context.Context) {
	for {
		if s.isClosed() {
			return
		}

		signedURL, err := s.aiClient.FetchSignedURL(ctx, s.cfg.ElevenLabsAgentID)
		var conn wsConn
		if err == nil {
			conn, err = s.dialAI(ctx, signedURL)
		}
		if err != nil {
			s.logger.Warn("ai connect failed", zap.Error(err))
			if !s.registerFailureAndWait() {
				return
			}
			continue
		}

		s.onAIOpen(conn)
		s.readAILoop(conn)

		if s.isClosed() {
			return
		}
		if !s.registerFailureAndWait() {
			return
		}
	}
}

func (s *Session) onAIOpen(conn wsConn) {
	s.mu.Lock()
	s.aiConn = conn
	s.state = StateAIOpenNotReady
	cc := s.callCtx
	if cc != nil && (cc.Script != "" || cc.Persona != "" || cc.Context != "") {
		s.writeAILocked(initClientDataFrame{
			Type: "conversation_initiation_client_data",
			ConversationInitiationClientData: initClientData{
				Script:  cc.Script,
				Persona: cc.Persona,
				Context: cc.Context,
			},
		})
	}
	s.mu.Unlock()
}

func (s *Session) readAILoop(conn wsConn) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.dispatchAIMessage(msg)
	}
}

func (s *Session) dispatchAIMessage(raw []byte) {
	var env aiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.logger.Warn("failed to parse ai frame", zap.Error(err))
		return
	}

	switch env.Type {
	case aiTypeConversationInitiationMetadata:
		s.onAIReady()
	case aiTypeAudio:
		s.mu.Lock()
		if s.streamID != "" {
			s.writeTelephonyLocked(newMediaOutFrame(s.streamID, env.AudioEvent.AudioBase64))
		}
		s.mu.Unlock()
	case aiTypeInterruption:
		s.mu.Lock()
		if s.streamID != "" {
			s.writeTelephonyLocked(newClearOutFrame(s.streamID))
		}
		s.mu.Unlock()
	case aiTypePing:
		s.mu.Lock()
		s.writeAILocked(pongFrame{Type: "pong", EventID: env.PingEvent.EventID})
		s.mu.Unlock()
	case aiTypeUserTranscript:
		if s.callCtx != nil {
			s.transcripts.Append(s.callCtx.CallID, transcript.Turn{
				Role: transcript.RoleUser, Text: env.UserTranscriptionEvent.UserTranscript, Timestamp: time.Now(),
			})
		}
	case aiTypeAgentResponse:
		if s.callCtx != nil {
			s.transcripts.Append(s.callCtx.CallID, transcript.Turn{
				Role: transcript.RoleAgent, Text: env.AgentResponseEvent.AgentResponse, Timestamp: time.Now(),
			})
		}
	default:
		s.logger.Debug("ignoring ai event", zap.String("type", env.Type))
	}
}

// onAIReady flips aiReady and drains pendingAudio in FIFO order. This
// is the one successful-reconnect event that resets reconnectAttempts
// and increments the reconnects metric: a socket that opens and dies
// before reaching readiness is not the "successful open" spec.md §4.6
// means, since S5 expects reconnects_total=0 despite three opens.
func (s *Session) onAIReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.aiReady {
		return
	}
	s.aiReady = true
	s.state = StateReady
	s.reconnectAttempts = 0
	queue := s.pendingAudio
	s.pendingAudio = nil
	for _, payload := range queue {
		s.writeAILocked(userAudioChunkFrame{UserAudioChunk: payload})
	}
	s.metrics.IncReconnects()
}

func (s *Session) registerFailureAndWait() bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.aiReady = false
	s.aiConn = nil
	if s.reconnectAttempts >= s.maxRetries {
		s.mu.Unlock()
		s.terminate("ai reconnect attempts exhausted")
		return false
	}
	s.reconnectAttempts++
	attempt := s.reconnectAttempts
	s.state = StateAIConnecting
	s.mu.Unlock()

	delay := retry.Backoff(s.backoffConfig, attempt-1)
	return s.sleepCancelable(delay)
}

func (s *Session) sleepCancelable(d time.Duration) bool {
	if s.sleepFn != nil {
		return s.sleepFn(d)
	}
	select {
	case <-time.After(d):
		return true
	case <-s.doneCh:
		return false
	}
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// writeAILocked and writeTelephonyLocked must be called with s.mu
// held; every write to either peer goes through the session's lock so
// that a flush and a concurrent live write can never interleave.
func (s *Session) writeAILocked(frame interface{}) {
	if s.aiConn == nil {
		return
	}
	b, err := json.Marshal(frame)
	if err != nil {
		s.logger.Warn("failed to marshal ai frame", zap.Error(err))
		return
	}
	if err := s.aiConn.WriteMessage(websocket.TextMessage, b); err != nil {
		s.logger.Warn("write to ai peer failed", zap.Error(err))
	}
}

func (s *Session) writeTelephonyLocked(frame interface{}) {
	if s.closed {
		return
	}
	b, err := json.Marshal(frame)
	if err != nil {
		s.logger.Warn("failed to marshal telephony frame", zap.Error(err))
		return
	}
	if err := s.telephonyConn.WriteMessage(websocket.TextMessage, b); err != nil {
		s.logger.Warn("write to telephony peer failed", zap.Error(err))
	}
}

// terminate tears the session down exactly once: both peers closed,
// the idle timer cancelled, any pending backoff cancelled, and the
// registry entry released. active_calls is left unchanged.
func (s *Session) terminate(reason string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.state = StateTerminating
	aiConn := s.aiConn
	s.mu.Unlock()

	s.closeOnce.Do(func() { close(s.doneCh) })
	if s.idleTimer != nil {
		s.idleTimer.Stop()
	}

	s.telephonyConn.Close()
	if aiConn != nil {
		aiConn.Close()
	}

	// active_calls is owned by the call-status webhook (spec.md §6), not
	// by the bridge session's own lifecycle, so it is not touched here.
	if s.callCtx != nil {
		s.registry.Forget(s.callCtx.CallID)
	}

	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()

	s.logger.Info("bridge session closed", zap.String("reqId", s.requestID), zap.String("reason", reason))
}
