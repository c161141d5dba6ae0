// Package httpclient wraps http.Client with circuit-breaker
// protection and metrics recording for the relay's two outbound
// HTTPS collaborators (C1 signed-URL fetch, C2 call placement).
//
// Unlike the teacher's pkg/client, this does not retry internally:
// spec.md §4.1/§4.2 require C1 and C2 to fail without retry, leaving
// retry policy to the caller (the bridge session's reconnect loop for
// C1, the control-plane caller for C2).
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/troikatech/voicebridge/pkg/circuitbreaker"
	"github.com/troikatech/voicebridge/pkg/metrics"
)

// Client wraps http.Client with circuit breaker protection.
type Client struct {
	http           *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	serviceName    string
	metrics        *metrics.Metrics
}

// New creates an HTTP client for one named downstream service.
func New(serviceName string, timeout time.Duration, m *metrics.Metrics) *Client {
	return &Client{
		http:           &http.Client{Timeout: timeout},
		circuitBreaker: circuitbreaker.New(circuitbreaker.DefaultConfig()),
		serviceName:    serviceName,
		metrics:        m,
	}
}

// Do executes a single attempt of an already-built request under
// circuit-breaker protection. No retry: a single failure is returned
// to the caller.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	var resp *http.Response
	err := c.circuitBreaker.Execute(ctx, func() error {
		var doErr error
		resp, doErr = c.http.Do(req)
		if doErr != nil {
			return doErr
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%s: server error %d", c.serviceName, resp.StatusCode)
		}
		return nil
	})

	if c.metrics != nil && err != nil {
		c.metrics.IncErrorsTotal()
	}

	return resp, err
}

// PostForm POSTs an application/x-www-form-urlencoded body with basic
// auth, the shape C2 (Telephony Client) needs against Twilio's REST API.
func (c *Client) PostForm(ctx context.Context, endpoint string, form url.Values, basicUser, basicPass string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(basicUser, basicPass)
	return c.Do(ctx, req)
}

// GetJSON issues an authenticated GET and decodes a JSON body, the
// shape C1 (Signed-URL Fetcher) needs against the AI provider.
func (c *Client) GetJSON(ctx context.Context, endpoint string, headers map[string]string, out interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.Do(ctx, req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, fmt.Errorf("%s: unexpected status %d: %s", c.serviceName, resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to parse response: %w", err)
	}
	return resp.StatusCode, nil
}
