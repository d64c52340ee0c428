package app

import (
	"context"
	"sync"
)

// ConnectionHandle one live connection of a user
type ConnectionHandle interface {
	ID() string
	UserID() string
	// Send queue data without blocking
	Send(data []byte) error
	Close()
}

// PresenceDirectory user id -> live connections. Safe for concurrent use.
type PresenceDirectory struct {
	mu    sync.RWMutex
	conns map[string]map[string]ConnectionHandle
}

// NewPresenceDirectory create an empty directory
func NewPresenceDirectory() *PresenceDirectory {
	return &PresenceDirectory{conns: make(map[string]map[string]ConnectionHandle)}
}

// Register add conn under its user
func (p *PresenceDirectory) Register(conn ConnectionHandle) {
	p.mu.Lock()
	defer p.mu.Unlock()

	byID, ok := p.conns[conn.UserID()]
	if !ok {
		byID = make(map[string]ConnectionHandle)
		p.conns[conn.UserID()] = byID
	}
	byID[conn.ID()] = conn
}

// Unregister remove connID of userID, no-op when absent
func (p *PresenceDirectory) Unregister(userID, connID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	byID, ok := p.conns[userID]
	if !ok {
		return
	}
	delete(byID, connID)
	if len(byID) == 0 {
		delete(p.conns, userID)
	}
}

// ConnectionsFor snapshot of userID's connections
func (p *PresenceDirectory) ConnectionsFor(userID string) []ConnectionHandle {
	p.mu.RLock()
	defer p.mu.RUnlock()

	byID := p.conns[userID]
	out := make([]ConnectionHandle, 0, len(byID))
	for _, c := range byID {
		out = append(out, c)
	}
	return out
}

// IsOnline userID has at least one connection
func (p *PresenceDirectory) IsOnline(userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.conns[userID]) > 0
}

// OnlineUsers number of users with a live connection
func (p *PresenceDirectory) OnlineUsers() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.conns)
}

// Connections total live connections
func (p *PresenceDirectory) Connections() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := 0
	for _, byID := range p.conns {
		n += len(byID)
	}
	return n
}

type connectionIDKey struct{}

// WithConnectionID tag ctx with the connection that issued a request
func WithConnectionID(ctx context.Context, connID string) context.Context {
	return context.WithValue(ctx, connectionIDKey{}, connID)
}

// ConnectionIDFrom connection id set by WithConnectionID, "" for REST calls
func ConnectionIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(connectionIDKey{}).(string)
	return id
}
