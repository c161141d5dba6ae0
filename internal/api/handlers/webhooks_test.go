package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/troikatech/voicebridge/pkg/registry"
)

func TestCallStatusDecrementsActiveCallsOnce(t *testing.T) {
	h := newTestHandler("http://unused.invalid")
	h.registry.Put(&registry.CallContext{RequestID: "req1", CreatedAt: time.Now()})
	h.registry.BindCallID("req1", "CA999")
	h.metrics.IncActiveCalls()

	router := gin.New()
	router.POST("/twilio/call_status", h.CallStatus)

	form := url.Values{"CallSid": {"CA999"}, "CallStatus": {"completed"}}
	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/twilio/call_status", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec1 := post()
	if rec1.Code != http.StatusOK {
		t.Fatalf("first call_status: status = %d", rec1.Code)
	}
	_, _, active, _ := h.metrics.Snapshot()
	if active != 0 {
		t.Errorf("active_calls after first terminal status = %d, want 0", active)
	}

	rec2 := post()
	if rec2.Code != http.StatusOK {
		t.Fatalf("second call_status: status = %d", rec2.Code)
	}
	_, _, active, _ = h.metrics.Snapshot()
	if active != 0 {
		t.Errorf("active_calls after duplicate terminal status = %d, want 0 (floored, not negative)", active)
	}
}

func TestCallStatusDecrementsEvenWhenBridgeForgotFirst(t *testing.T) {
	h := newTestHandler("http://unused.invalid")
	h.registry.Put(&registry.CallContext{RequestID: "req2", CreatedAt: time.Now()})
	h.registry.BindCallID("req2", "CA1000")
	h.metrics.IncActiveCalls()

	// Simulate the bridge session's own terminate() racing ahead of the
	// call_status webhook and Forgetting the registry entry first.
	if !h.registry.Forget("CA1000") {
		t.Fatal("expected registry entry to exist before Forget")
	}

	router := gin.New()
	router.POST("/twilio/call_status", h.CallStatus)

	form := url.Values{"CallSid": {"CA1000"}, "CallStatus": {"completed"}}
	req := httptest.NewRequest(http.MethodPost, "/twilio/call_status", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	_, _, active, _ := h.metrics.Snapshot()
	if active != 0 {
		t.Errorf("active_calls after call_status following a prior bridge Forget = %d, want 0 (decrement must not be lost)", active)
	}
}

func TestCallStatusRequiresCallSid(t *testing.T) {
	h := newTestHandler("http://unused.invalid")

	router := gin.New()
	router.POST("/twilio/call_status", h.CallStatus)

	form := url.Values{"CallStatus": {"completed"}}
	req := httptest.NewRequest(http.MethodPost, "/twilio/call_status", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
