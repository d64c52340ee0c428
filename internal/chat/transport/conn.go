// Package transport websocket lifecycle shared by the chat server and client.
package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Message types, RFC 6455 opcodes shared by gorilla and fasthttp websocket
const (
	TextMessage   = 1
	BinaryMessage = 2
	CloseMessage  = 8
)

// Close codes used by the chat transport
const (
	CloseNormalClosure   = 1000
	CloseGoingAway       = 1001
	CloseNoStatus        = 1005
	CloseAbnormalClosure = 1006
)

var (
	// ErrNotOpen send while the connection is not Open
	ErrNotOpen = errors.New("transport: connection not open")
	// ErrSessionClosed send on a closed session
	ErrSessionClosed = errors.New("transport: session closed")
	// ErrSendBufferFull the peer is not draining its frames
	ErrSendBufferFull = errors.New("transport: send buffer full")
	// ErrConnectFailed handshake failed or timed out
	ErrConnectFailed = errors.New("transport: connect failed")
)

// Conn the websocket surface a Session drives.
// *gofiber websocket.Conn and the gorilla wrapper both satisfy it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Dialer opens a client Conn, must honour ctx cancellation
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}

// CloseError peer closed the connection with Code
type CloseError struct {
	Code int
	Text string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("websocket: close %d %s", e.Code, e.Text)
}

// IsNormalClose err is a close frame with code 1000
func IsNormalClose(err error) bool {
	var ce *CloseError
	return errors.As(err, &ce) && ce.Code == CloseNormalClosure
}

// FormatCloseMessage close frame payload
func FormatCloseMessage(code int, text string) []byte {
	buf := make([]byte, 2+len(text))
	binary.BigEndian.PutUint16(buf, uint16(code))
	copy(buf[2:], text)
	return buf
}

func parseCloseMessage(payload []byte) *CloseError {
	if len(payload) < 2 {
		return &CloseError{Code: CloseNoStatus}
	}
	return &CloseError{Code: int(binary.BigEndian.Uint16(payload)), Text: string(payload[2:])}
}
