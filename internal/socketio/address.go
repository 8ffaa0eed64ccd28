package socketio

import (
	"fmt"
	"net/url"
	"strconv"
)

// socketPath is appended to every server address. The ":8443" suffix is part of the
// scheme the drawing server expects and must be kept as-is.
const socketPath = "/socket.io/:8443"

// BuildAddress returns the session address for host and port,
// e.g. http://vr.fox-gieg.com:8080/socket.io/:8443.
func BuildAddress(host string, port int) string {
	return "http://" + host + ":" + strconv.Itoa(port) + socketPath
}

// WebsocketURL converts a session address to the websocket endpoint used for the
// Engine.IO v4 websocket transport.
func WebsocketURL(addr string) (string, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return "", fmt.Errorf("invalid socket address %q: %w", addr, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q in socket address", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("socket address %q has no host", addr)
	}
	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
