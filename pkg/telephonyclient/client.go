// Package telephonyclient implements C2, the Telephony Client: an
// HTTPS client that creates outbound calls against a Twilio-shaped
// REST API, receiving a call identifier and status stream.
//
// Grounded on the teacher's pkg/exotel/client.go ConnectCall (struct
// constructor, form-encoded POST, basic auth, status-code check,
// json.Unmarshal), narrowed to the one operation the spec names.
package telephonyclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/troikatech/voicebridge/pkg/httpclient"
	"github.com/troikatech/voicebridge/pkg/metrics"
	"github.com/troikatech/voicebridge/pkg/validation"
)

// Client places outbound calls through the telephony provider.
type Client struct {
	baseURL    string
	accountSID string
	authToken  string
	http       *httpclient.Client
}

// New creates a telephony client against the given base URL.
func New(baseURL, accountSID, authToken string, m *metrics.Metrics) *Client {
	return &Client{
		baseURL:    baseURL,
		accountSID: accountSID,
		authToken:  authToken,
		http:       httpclient.New("telephony", 15*time.Second, m),
	}
}

// PlaceCallRequest mirrors spec.md §4.2's placeCall arguments.
type PlaceCallRequest struct {
	To        string
	From      string
	MarkupURL string
	StatusURL string
}

// PlaceCallResult is the (callId, status) pair spec.md §4.2 returns.
type PlaceCallResult struct {
	CallID string
	Status string
}

type createCallResponse struct {
	Sid    string `json:"sid"`
	Status string `json:"status"`
}

// PlaceCall validates `to` against E.164 and, on success, creates the
// call. It fails without retry; the caller owns retry policy.
func (c *Client) PlaceCall(ctx context.Context, req PlaceCallRequest) (*PlaceCallResult, error) {
	if err := validation.ValidateE164(req.To); err != nil {
		return nil, fmt.Errorf("validation: %w", err)
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls.json", c.baseURL, c.accountSID)

	form := url.Values{}
	form.Set("To", req.To)
	form.Set("From", req.From)
	form.Set("Url", req.MarkupURL)
	form.Set("StatusCallback", req.StatusURL)
	form.Set("StatusCallbackEvent", "initiated ringing answered completed busy no-answer failed canceled")

	resp, err := c.http.PostForm(ctx, endpoint, form, c.accountSID, c.authToken)
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("transport: failed to read response: %w", err)
	}

	var result createCallResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("provider: failed to parse response: %w", err)
	}

	return &PlaceCallResult{CallID: result.Sid, Status: result.Status}, nil
}
