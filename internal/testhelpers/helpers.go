// Package testhelpers provides common utilities for testing the room chat server.
//
// It offers helpers for dialing the WebSocket endpoint, exchanging JSON frames
// and asserting HTTP responses, to reduce duplication in package tests.
package testhelpers

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// Frame is a decoded server frame.
type Frame map[string]any

// Type returns the frame's type field.
func (f Frame) Type() string {
	s, _ := f["type"].(string)
	return s
}

// String returns field key as a string.
func (f Frame) String(key string) string {
	s, _ := f[key].(string)
	return s
}

// List returns field key as a slice.
func (f Frame) List(key string) []any {
	l, _ := f[key].([]any)
	return l
}

// Object returns field key as an object.
func (f Frame) Object(key string) map[string]any {
	o, _ := f[key].(map[string]any)
	return o
}

// WebSocketURL turns an httptest server URL into its /ws endpoint.
func WebSocketURL(serverURL string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http") + "/ws"
}

// ConnectWebSocket dials url with the given Origin header (none when empty).
func ConnectWebSocket(url, origin string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, resp, err
}

// MustConnect dials url and fails the test on error.
func MustConnect(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := ConnectWebSocket(url, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// SendJSON writes v as a text frame.
func SendJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

// ReadFrame reads the next frame, failing the test after timeout.
func ReadFrame(t *testing.T, conn *websocket.Conn, timeout time.Duration) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var f Frame
	require.NoError(t, json.Unmarshal(data, &f), "frame %q", data)
	return f
}

// ReadFrameOfType reads frames until one of the given type arrives.
func ReadFrameOfType(t *testing.T, conn *websocket.Conn, kind string, timeout time.Duration) Frame {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		require.Positive(t, remaining, "no %q frame within %s", kind, timeout)
		f := ReadFrame(t, conn, remaining)
		if f.Type() == kind {
			return f
		}
	}
}

// ExpectNoFrame asserts that nothing arrives within wait. A timed out
// connection cannot be read again, so call it last.
func ExpectNoFrame(t *testing.T, conn *websocket.Conn, wait time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(wait)))
	_, data, err := conn.ReadMessage()
	require.Error(t, err, "unexpected frame %q", data)
}

// CloseWebSocket sends a normal close frame and closes the connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}

// MakeRequest executes an HTTP request with a 5 second timeout.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}
