package telephonyclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/troikatech/voicebridge/pkg/metrics"
)

func TestPlaceCallSendsExpectedFormAndAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC123" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm() error = %v", err)
		}
		if r.Form.Get("To") != "+14155551234" {
			t.Errorf("To = %q, want +14155551234", r.Form.Get("To"))
		}
		if r.Form.Get("Url") != "https://bridge.example.com/twiml" {
			t.Errorf("Url = %q", r.Form.Get("Url"))
		}
		if !strings.Contains(r.URL.Path, "AC123") {
			t.Errorf("path %q missing account sid", r.URL.Path)
		}
		w.Write([]byte(`{"sid":"CA123","status":"queued"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "AC123", "secret", metrics.New())
	result, err := c.PlaceCall(context.Background(), PlaceCallRequest{
		To:        "+14155551234",
		From:      "+14155556789",
		MarkupURL: "https://bridge.example.com/twiml",
		StatusURL: "https://bridge.example.com/status",
	})
	if err != nil {
		t.Fatalf("PlaceCall() error = %v", err)
	}
	if result.CallID != "CA123" || result.Status != "queued" {
		t.Errorf("result = %+v, want {CA123 queued}", result)
	}
}

func TestPlaceCallRejectsInvalidNumber(t *testing.T) {
	c := New("https://example.com", "AC123", "secret", metrics.New())
	_, err := c.PlaceCall(context.Background(), PlaceCallRequest{To: "not-a-number"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "validation") {
		t.Errorf("error = %v, want validation error", err)
	}
}

func TestPlaceCallFailsWithoutRetryOnProviderError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, "AC123", "secret", metrics.New())
	_, err := c.PlaceCall(context.Background(), PlaceCallRequest{To: "+14155551234"})
	if err == nil {
		t.Fatal("expected transport error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want exactly 1 (no retry)", attempts)
	}
}
