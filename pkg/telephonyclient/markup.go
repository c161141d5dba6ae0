package telephonyclient

import (
	"fmt"
	"net"
)

// BuildStreamMarkup renders the TwiML-shaped XML document telling the
// telephony provider to open a bidirectional media stream back to
// this relay for the given request id.
//
// Grounded on the teacher's ExotelVoicebotEndpoint scheme-flip logic:
// wss:// for real hosts, ws:// for loopback hosts exercised in local
// testing.
func BuildStreamMarkup(host, reqID string) string {
	scheme := "wss"
	if isLoopbackHost(host) {
		scheme = "ws"
	}
	return fmt.Sprintf(
		"<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<Response>\n  <Connect>\n    <Stream url=\"%s://%s/media-stream?reqId=%s\" />\n  </Connect>\n</Response>\n",
		scheme, host, reqID,
	)
}

func isLoopbackHost(host string) bool {
	h := host
	if hostOnly, _, err := net.SplitHostPort(host); err == nil {
		h = hostOnly
	}
	if h == "localhost" {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
