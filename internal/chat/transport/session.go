package transport

import (
	"sync"
	"time"

	"direct_message_service/internal/chat/domain"
	"direct_message_service/pkg/config"
	"direct_message_service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FrameHandler receives inbound application frames, keepalive frames never reach it
type FrameHandler func(data []byte)

// Session one live connection: read loop, buffered writer, keepalive.
// Both ends send a literal "ping" every HeartbeatInterval and answer "ping" with "pong";
// any inbound frame extends the read deadline by PongWait.
type Session struct {
	id      string
	conn    Conn
	cfg     config.TransportConfig
	onFrame FrameHandler

	send    chan []byte
	done    chan struct{}
	writeMu sync.Mutex
	once    sync.Once
}

// NewSession wrap conn, zero cfg fields take TransportDefaults
func NewSession(conn Conn, cfg config.TransportConfig, onFrame FrameHandler) *Session {
	cfg = cfg.WithDefaults()
	if onFrame == nil {
		onFrame = func([]byte) {}
	}
	return &Session{
		id:      uuid.NewString(),
		conn:    conn,
		cfg:     cfg,
		onFrame: onFrame,
		send:    make(chan []byte, cfg.SendBuffer),
		done:    make(chan struct{}),
	}
}

// ID connection id
func (s *Session) ID() string { return s.id }

// Done closed once the session is closed
func (s *Session) Done() <-chan struct{} { return s.done }

// Run start the writer and block in the read loop until the connection ends.
// The returned error is the read error (a *CloseError when the peer sent a close frame).
func (s *Session) Run() error {
	go s.writeLoop()
	err := s.readLoop()
	s.Close()
	return err
}

func (s *Session) readLoop() error {
	_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))

		if mt != TextMessage {
			continue
		}
		switch string(data) {
		case domain.PingFrame:
			if err := s.Send([]byte(domain.PongFrame)); err != nil {
				logger.Log.Debug("pong dropped", zap.String("session", s.id), zap.Error(err))
			}
		case domain.PongFrame:
		default:
			s.onFrame(data)
		}
	}
}

func (s *Session) writeLoop() {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case data := <-s.send:
			if err := s.write(TextMessage, data); err != nil {
				logger.Log.Debug("session write failed", zap.String("session", s.id), zap.Error(err))
				s.Close()
				return
			}
		case <-ticker.C:
			if err := s.write(TextMessage, []byte(domain.PingFrame)); err != nil {
				logger.Log.Debug("session ping failed", zap.String("session", s.id), zap.Error(err))
				s.Close()
				return
			}
		}
	}
}

func (s *Session) write(mt int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	return s.conn.WriteMessage(mt, data)
}

// Send queue data without blocking
func (s *Session) Send(data []byte) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	select {
	case <-s.done:
		return ErrSessionClosed
	case s.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// CloseWithCode send a close frame then close
func (s *Session) CloseWithCode(code int, text string) {
	select {
	case <-s.done:
		return
	default:
	}
	if err := s.write(CloseMessage, FormatCloseMessage(code, text)); err != nil {
		logger.Log.Debug("close frame failed", zap.String("session", s.id), zap.Error(err))
	}
	s.Close()
}

// Close close the underlying conn once
func (s *Session) Close() {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}
