package testutil

import (
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tobyv/gamenight/internal/message"
)

// WSClient is a WebSocket test client for integration testing.
type WSClient struct {
	conn *websocket.Conn
	t    *testing.T
}

// NewWSClient dials the given address with the identity query parameters
// and returns a connected test client.
//
// Precondition: addr must be a "host:port" string with a listening server.
// Postcondition: Returns a connected WSClient or fails the test.
func NewWSClient(t *testing.T, addr, path, userID, groupID, name string) *WSClient {
	t.Helper()
	start := time.Now()

	u := url.URL{
		Scheme: "ws",
		Host:   addr,
		Path:   path,
		RawQuery: url.Values{
			"user_id":  {userID},
			"group_id": {groupID},
			"name":     {name},
		}.Encode(),
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		t.Fatalf("dialing %s: %v [%s]", u.String(), err, time.Since(start))
	}

	t.Cleanup(func() {
		conn.Close()
	})

	t.Logf("websocket client connected to %s [%s]", addr, time.Since(start))
	return &WSClient{conn: conn, t: t}
}

// Send encodes and writes an envelope to the server.
func (c *WSClient) Send(env message.Envelope) {
	c.t.Helper()
	data, err := env.Encode()
	if err != nil {
		c.t.Fatalf("encoding envelope: %v", err)
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.t.Fatalf("sending %s envelope: %v", env.Type, err)
	}
}

// ReadEnvelope reads the next envelope from the server, failing on timeout.
func (c *WSClient) ReadEnvelope(timeout time.Duration) message.Envelope {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		c.t.Fatalf("reading envelope: %v", err)
	}
	env, err := message.Decode(data)
	if err != nil {
		c.t.Fatalf("decoding envelope: %v", err)
	}
	return env
}

// ReadUntil reads envelopes until one of the given type arrives or the
// timeout elapses. Envelopes of other types are discarded.
//
// Postcondition: Returns the first matching envelope, or fails the test.
func (c *WSClient) ReadUntil(typ message.Type, timeout time.Duration) message.Envelope {
	c.t.Helper()
	deadline := time.Now().Add(timeout)
	var seen []string
	for time.Now().Before(deadline) {
		_ = c.conn.SetReadDeadline(deadline)
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.t.Fatalf("reading until %s: saw %v, error: %v", typ, seen, err)
		}
		env, err := message.Decode(data)
		if err != nil {
			c.t.Fatalf("decoding envelope: %v", err)
		}
		if env.Type == typ {
			return env
		}
		seen = append(seen, string(env.Type))
	}
	c.t.Fatalf("timed out waiting for %s; saw %v", typ, seen)
	return message.Envelope{}
}

// Close closes the underlying connection.
func (c *WSClient) Close() {
	_ = c.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	c.conn.Close()
}

// Addrf is a small helper for building "host:port" strings in tests.
func Addrf(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
