package aiclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/troikatech/voicebridge/pkg/metrics"
)

func TestFetchSignedURLPrefersSignedURLField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("agent_id") != "agent-1" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.Header.Get("xi-api-key") != "key-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"signed_url":"wss://ai.example.com/session","url":"wss://fallback"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "key-1", metrics.New())
	got, err := c.FetchSignedURL(context.Background(), "agent-1")
	if err != nil {
		t.Fatalf("FetchSignedURL() error = %v", err)
	}
	if got != "wss://ai.example.com/session" {
		t.Errorf("got %q, want signed_url value", got)
	}
}

func TestFetchSignedURLFallsBackToURLField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"url":"wss://fallback.example.com"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "key-1", metrics.New())
	got, err := c.FetchSignedURL(context.Background(), "agent-1")
	if err != nil {
		t.Fatalf("FetchSignedURL() error = %v", err)
	}
	if got != "wss://fallback.example.com" {
		t.Errorf("got %q, want url value", got)
	}
}

func TestFetchSignedURLFailsWithoutRetry(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "key-1", metrics.New())
	_, err := c.FetchSignedURL(context.Background(), "agent-1")
	if err == nil {
		t.Fatal("expected error on server failure")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want exactly 1 (no retry)", attempts)
	}
}
