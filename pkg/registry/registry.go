// Package registry implements C3, the Call Registry: an in-memory,
// TTL-swept map from a request ID to the per-call context that must
// survive the HTTP-to-WebSocket hop between outbound-call creation
// and the telephony peer opening its media stream.
//
// Grounded on the session-map idiom in the teacher's
// internal/api/handlers/voicebot.go (a map guarded by a RWMutex, with
// getOrCreateSession/getSession/removeSession helpers), generalized
// here from a WebSocket-session map to a call-context map.
package registry

import (
	"sync"
	"time"
)

// CallContext is one C3 entry, per spec.md §3.
type CallContext struct {
	RequestID string
	CallID    string
	Script    string
	Persona   string
	Context   string
	CreatedAt time.Time
}

// TTL is how long an entry survives without being explicitly
// forgotten, per spec.md §3/§4.3.
const TTL = 24 * time.Hour

// Registry is the concurrency-safe C3 store.
type Registry struct {
	mu       sync.RWMutex
	byReqID  map[string]*CallContext
	byCall   map[string]string    // callID -> requestID, for Forget(callID)
	notified map[string]time.Time // callID -> when MarkNotified first fired

	stopSweep chan struct{}
}

// New returns an empty registry and starts its hourly TTL sweep.
func New() *Registry {
	r := &Registry{
		byReqID:   make(map[string]*CallContext),
		byCall:    make(map[string]string),
		notified:  make(map[string]time.Time),
		stopSweep: make(chan struct{}),
	}
	go r.sweepLoop()
	return r
}

// Put stores a context keyed by its RequestID.
func (r *Registry) Put(ctx *CallContext) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byReqID[ctx.RequestID] = ctx
	if ctx.CallID != "" {
		r.byCall[ctx.CallID] = ctx.RequestID
	}
}

// BindCallID associates a callID with an already-registered requestID,
// for the common case where the provider's call ID is known only
// after placeCall returns, slightly after Put.
func (r *Registry) BindCallID(requestID, callID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ctx, ok := r.byReqID[requestID]; ok {
		ctx.CallID = callID
		r.byCall[callID] = requestID
	}
}

// Get looks up a context by request ID.
func (r *Registry) Get(requestID string) (*CallContext, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctx, ok := r.byReqID[requestID]
	return ctx, ok
}

// Forget removes the entry for a given call ID, if present, and
// reports whether an entry actually existed. Used purely for registry
// cleanup (both the bridge session's own termination and the
// call-status webhook call this on the same callID); active-calls
// decrement idempotency must not be built on this return value, since
// either caller may run first — see MarkNotified.
func (r *Registry) Forget(callID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	reqID, ok := r.byCall[callID]
	if !ok {
		return false
	}
	delete(r.byReqID, reqID)
	delete(r.byCall, callID)
	return true
}

// MarkNotified records that the call-status webhook's active-calls
// decrement has fired for callID. It reports true only the first time
// for a given callID, and is kept independent of byReqID/byCall so
// that it still works after terminate (internal/bridge.Session) has
// already Forgotten the same callID: the two are racing, independently
// delivered signals for the same hangup with no ordering guarantee,
// and active-calls idempotency must not depend on which one runs first.
func (r *Registry) MarkNotified(callID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.notified[callID]; ok {
		return false
	}
	r.notified[callID] = time.Now()
	return true
}

// Sweep removes every entry created before the cutoff. Exported for
// tests; the sweep loop calls it hourly with now-24h.
func (r *Registry) Sweep(olderThan time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for reqID, ctx := range r.byReqID {
		if ctx.CreatedAt.Before(olderThan) {
			delete(r.byReqID, reqID)
			if ctx.CallID != "" {
				delete(r.byCall, ctx.CallID)
			}
		}
	}
	for callID, at := range r.notified {
		if at.Before(olderThan) {
			delete(r.notified, callID)
		}
	}
}

// Len reports the number of live entries (tests only).
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byReqID)
}

func (r *Registry) sweepLoop() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.Sweep(time.Now().Add(-TTL))
		case <-r.stopSweep:
			return
		}
	}
}

// Close stops the background sweep goroutine.
func (r *Registry) Close() {
	close(r.stopSweep)
}
