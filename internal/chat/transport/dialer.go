package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// WebsocketDialer gorilla/websocket client Dialer
type WebsocketDialer struct {
	dialer *websocket.Dialer
}

// NewWebsocketDialer create WebsocketDialer, handshakeTimeout <= 0 relies on ctx only
func NewWebsocketDialer(handshakeTimeout time.Duration) *WebsocketDialer {
	d := *websocket.DefaultDialer
	if handshakeTimeout > 0 {
		d.HandshakeTimeout = handshakeTimeout
	}
	return &WebsocketDialer{dialer: &d}
}

// Dial open url
func (d *WebsocketDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &gorillaConn{Conn: conn}, nil
}

// gorillaConn maps gorilla close errors onto *CloseError
type gorillaConn struct {
	*websocket.Conn
}

func (c *gorillaConn) ReadMessage() (int, []byte, error) {
	mt, data, err := c.Conn.ReadMessage()
	if err != nil {
		var ce *websocket.CloseError
		if errors.As(err, &ce) {
			return mt, data, &CloseError{Code: ce.Code, Text: ce.Text}
		}
	}
	return mt, data, err
}
