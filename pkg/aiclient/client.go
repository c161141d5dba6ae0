// Package aiclient implements C1, the Signed-URL Fetcher: an HTTPS
// client exchanging an agent ID and API key for a short-lived signed
// WebSocket URL used to dial the AI peer.
//
// Grounded on the teacher's pkg/exotel/client.go struct-with-
// constructor shape (fields for credentials, one *http.Client,
// methods returning a typed response). Fails without retry per
// spec.md §4.1; the bridge session owns retry/backoff policy.
package aiclient

import (
	"context"
	"fmt"
	"time"

	"github.com/troikatech/voicebridge/pkg/httpclient"
	"github.com/troikatech/voicebridge/pkg/metrics"
)

// Client fetches signed conversational-AI WebSocket URLs.
type Client struct {
	baseURL string
	apiKey  string
	http    *httpclient.Client
}

// New creates a signed-URL fetcher against the given base URL.
func New(baseURL, apiKey string, m *metrics.Metrics) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    httpclient.New("ai-signed-url", 10*time.Second, m),
	}
}

type signedURLResponse struct {
	SignedURL string `json:"signed_url"`
	URL       string `json:"url"`
}

// FetchSignedURL resolves spec.md §9's Open Question on endpoint
// shape in favor of ElevenLabs' documented convai endpoint: GET with
// the agent id as a query parameter and the API key in a header.
// Accepts either "signed_url" or "url" in the response body,
// preferring "signed_url" as the spec directs.
func (c *Client) FetchSignedURL(ctx context.Context, agentID string) (string, error) {
	endpoint := fmt.Sprintf("%s/v1/convai/conversation/get-signed-url?agent_id=%s", c.baseURL, agentID)
	headers := map[string]string{"xi-api-key": c.apiKey}

	var body signedURLResponse
	if _, err := c.http.GetJSON(ctx, endpoint, headers, &body); err != nil {
		return "", fmt.Errorf("fetch signed url: %w", err)
	}

	if body.SignedURL != "" {
		return body.SignedURL, nil
	}
	if body.URL != "" {
		return body.URL, nil
	}
	return "", fmt.Errorf("fetch signed url: response had neither signed_url nor url")
}
