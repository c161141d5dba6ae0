package bridge

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// wsConn is the minimal surface BridgeSession needs from a WebSocket
// peer. Both *websocket.Conn and the in-memory fakes used by tests
// satisfy it; gorilla's Conn forbids concurrent writers, which is why
// every write in this package goes through the session's single mutex.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

var _ wsConn = (*websocket.Conn)(nil)

// dialFunc dials the AI peer's signed WebSocket URL. Swapped out in
// tests to avoid real network I/O.
type dialFunc func(ctx context.Context, signedURL string) (wsConn, error)

func defaultDialAI(ctx context.Context, signedURL string) (wsConn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, signedURL, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

var telephonyUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// UpgradeTelephony upgrades an incoming HTTP request to the telephony
// WebSocket peer for one BridgeSession.
func UpgradeTelephony(w http.ResponseWriter, r *http.Request) (wsConn, error) {
	return telephonyUpgrader.Upgrade(w, r, nil)
}
