package transport

import (
	"fmt"
	"sync"

	"direct_message_service/pkg/logger"

	"go.uber.org/zap"
)

// Observer receives every inbound application frame
type Observer interface {
	Update(data []byte)
}

// ObserverFunc adapt a func to Observer
type ObserverFunc func(data []byte)

// Update implement Observer
func (f ObserverFunc) Update(data []byte) { f(data) }

type entry struct {
	id       uint64
	observer Observer
}

// Subject observer set with snapshot notification
type Subject struct {
	mu        sync.RWMutex
	nextID    uint64
	observers []entry
}

// NewSubject create an empty Subject
func NewSubject() *Subject {
	return &Subject{}
}

// Subscribe add o, the id is used to Unsubscribe
func (s *Subject) Subscribe(o Observer) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.observers = append(s.observers, entry{id: s.nextID, observer: o})
	return s.nextID
}

// Unsubscribe remove id, false if it was not subscribed
func (s *Subject) Unsubscribe(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.observers {
		if e.id == id {
			next := make([]entry, 0, len(s.observers)-1)
			next = append(next, s.observers[:i]...)
			s.observers = append(next, s.observers[i+1:]...)
			return true
		}
	}
	return false
}

// Clear drop every observer
func (s *Subject) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = nil
}

// Len number of observers
func (s *Subject) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.observers)
}

// Notify call Update on a snapshot of the observers, a panicking observer doesn't stop the rest
func (s *Subject) Notify(data []byte) {
	s.mu.RLock()
	snapshot := s.observers
	s.mu.RUnlock()

	for _, e := range snapshot {
		s.update(e, data)
	}
}

func (s *Subject) update(e entry, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error("observer panic",
				zap.Uint64("observer", e.id),
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	e.observer.Update(data)
}
