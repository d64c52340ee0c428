package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"direct_message_service/internal/chat/domain"
	"direct_message_service/pkg/config"
	"direct_message_service/pkg/logger"

	"go.uber.org/zap"
)

// ConnectionManager client side connection lifecycle: one transport at a time,
// serialized reconnects with a fixed delay and a hard attempt ceiling.
type ConnectionManager struct {
	dialer  Dialer
	url     string
	header  http.Header
	cfg     config.TransportConfig
	subject *Subject

	// connectMu serializes dials, Connect and the reconnect loop never overlap
	connectMu sync.Mutex

	mu          sync.Mutex
	state       State
	session     *Session
	attempts    int
	budget      int
	explicit    bool
	stop        chan struct{}
	stopOnce    *sync.Once
	listeners   []func(State)
	after       func(time.Duration) <-chan time.Time
	dialCounter int
}

// NewConnectionManager create a manager for url, header carries auth (may be nil)
func NewConnectionManager(dialer Dialer, url string, header http.Header, cfg config.TransportConfig) *ConnectionManager {
	cfg = cfg.WithDefaults()
	return &ConnectionManager{
		dialer:   dialer,
		url:      url,
		header:   header,
		cfg:      cfg,
		subject:  NewSubject(),
		state:    Disconnected,
		budget:   cfg.MaxReconnectAttempts,
		stop:     make(chan struct{}),
		stopOnce: new(sync.Once),
		after:    time.After,
	}
}

// State current state
func (m *ConnectionManager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempts reconnect attempts since the last successful open
func (m *ConnectionManager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Dials number of dial attempts made so far
func (m *ConnectionManager) Dials() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dialCounter
}

// OnStateChange register a state listener, called outside the manager lock
func (m *ConnectionManager) OnStateChange(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Subscribe add an observer of inbound frames
func (m *ConnectionManager) Subscribe(o Observer) uint64 {
	return m.subject.Subscribe(o)
}

// Unsubscribe remove an observer
func (m *ConnectionManager) Unsubscribe(id uint64) bool {
	return m.subject.Unsubscribe(id)
}

// Observers number of subscribed observers
func (m *ConnectionManager) Observers() int {
	return m.subject.Len()
}

// Connect open the transport. An explicit Connect after Disconnect restores the retry budget.
func (m *ConnectionManager) Connect(ctx context.Context) error {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	m.mu.Lock()
	if m.state == Open {
		m.mu.Unlock()
		return nil
	}
	if m.explicit {
		m.explicit = false
		m.stop = make(chan struct{})
		m.stopOnce = new(sync.Once)
	}
	m.budget = m.cfg.MaxReconnectAttempts
	m.mu.Unlock()

	return m.dial(ctx)
}

// dial caller holds connectMu
func (m *ConnectionManager) dial(ctx context.Context) error {
	m.mu.Lock()
	if m.explicit {
		// Disconnect won before the attempt started
		m.mu.Unlock()
		return ErrNotOpen
	}
	m.dialCounter++
	notify := m.setStateLocked(Connecting)
	m.mu.Unlock()
	notify()

	dctx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()

	conn, err := m.dialer.Dial(dctx, m.url, m.header)
	if err != nil {
		m.mu.Lock()
		notify := m.setStateLocked(Disconnected)
		m.mu.Unlock()
		notify()
		return fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}

	session := NewSession(conn, m.cfg, m.subject.Notify)

	m.mu.Lock()
	if m.explicit {
		// Disconnect raced the handshake
		notify := m.setStateLocked(Disconnected)
		m.mu.Unlock()
		notify()
		session.CloseWithCode(CloseNormalClosure, "disconnected")
		return ErrNotOpen
	}
	m.session = session
	m.attempts = 0
	notify = m.setStateLocked(Open)
	m.mu.Unlock()
	notify()

	logger.Log.Info("transport open", zap.String("url", m.url), zap.String("session", session.ID()))
	go m.run(session)
	return nil
}

func (m *ConnectionManager) run(session *Session) {
	err := session.Run()

	m.mu.Lock()
	if m.session != session {
		// replaced or explicitly disconnected
		m.mu.Unlock()
		return
	}
	m.session = nil
	if IsNormalClose(err) {
		notify := m.setStateLocked(Disconnected)
		m.mu.Unlock()
		notify()
		logger.Log.Info("transport closed by peer", zap.String("url", m.url))
		return
	}
	m.mu.Unlock()

	logger.Log.Warn("transport lost", zap.String("url", m.url), zap.Error(err))
	m.reconnectLoop()
}

// reconnectLoop fixed delay, at most budget attempts, then Disconnected with observers cleared
func (m *ConnectionManager) reconnectLoop() {
	for {
		m.mu.Lock()
		if m.explicit {
			m.mu.Unlock()
			return
		}
		if m.attempts >= m.budget {
			notify := m.setStateLocked(Disconnected)
			m.mu.Unlock()
			m.subject.Clear()
			notify()
			logger.Log.Error("transport gave up reconnecting", zap.String("url", m.url), zap.Int("attempts", m.budget))
			return
		}
		m.attempts++
		attempt := m.attempts
		stop := m.stop
		notify := m.setStateLocked(Reconnecting)
		m.mu.Unlock()
		notify()

		select {
		case <-stop:
			return
		case <-m.after(m.cfg.ReconnectDelay):
		}

		if err := m.reconnect(stop); err != nil {
			logger.Log.Warn("transport reconnect failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		return
	}
}

func (m *ConnectionManager) reconnect(stop chan struct{}) error {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	m.mu.Lock()
	if m.explicit || m.stop != stop {
		m.mu.Unlock()
		return nil
	}
	if m.state == Open {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	err := m.dial(context.Background())
	if err != nil {
		// dial leaves Disconnected; the loop moves back to Reconnecting or gives up
		return err
	}
	return nil
}

// Disconnect user initiated close, never followed by a reconnect
func (m *ConnectionManager) Disconnect() {
	m.mu.Lock()
	m.explicit = true
	m.budget = 0
	m.stopOnce.Do(func() { close(m.stop) })
	session := m.session
	m.session = nil
	var notify func()
	if session != nil {
		notify = m.setStateLocked(Closing)
	} else {
		notify = m.setStateLocked(Disconnected)
	}
	m.mu.Unlock()
	notify()

	if session == nil {
		return
	}
	session.CloseWithCode(CloseNormalClosure, "client disconnect")

	m.mu.Lock()
	notify = m.setStateLocked(Disconnected)
	m.mu.Unlock()
	notify()
}

// Send queue raw data, ErrNotOpen unless Open
func (m *ConnectionManager) Send(data []byte) error {
	m.mu.Lock()
	session := m.session
	open := m.state == Open
	m.mu.Unlock()

	if !open || session == nil {
		return ErrNotOpen
	}
	return session.Send(data)
}

// SendFrame encode and send a frame
func (m *ConnectionManager) SendFrame(f domain.Frame) error {
	data, err := f.Encode()
	if err != nil {
		return err
	}
	return m.Send(data)
}

// setStateLocked caller holds mu, the returned func fires listeners and must run after unlock
func (m *ConnectionManager) setStateLocked(to State) func() {
	if m.state == to {
		return func() {}
	}
	m.state = to
	listeners := append([]func(State){}, m.listeners...)
	return func() {
		for _, fn := range listeners {
			fn(to)
		}
	}
}
