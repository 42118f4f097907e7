// session/session.go
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/wfunc/blockroom/network"
)

var (
	ErrSendBufferFull = errors.New("session send buffer full")
	ErrSessionClosed  = errors.New("session closed")
)

// Session is one live client connection. Outbound frames go through a bounded
// buffer drained by WritePump, so Send never blocks on the socket.
type Session struct {
	ID         string
	Conn       network.Connection
	RoomID     string
	CreatedAt  time.Time
	lastActive time.Time
	send       chan []byte
	done       chan struct{}
	closeOnce  sync.Once
	mutex      sync.RWMutex
}

func NewSession(id string, conn network.Connection, buffer int) *Session {
	if buffer <= 0 {
		buffer = 1
	}
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		CreatedAt:  now,
		lastActive: now,
		send:       make(chan []byte, buffer),
		done:       make(chan struct{}),
	}
}

func (s *Session) GetID() string {
	return s.ID
}

// Send queues data for the write pump. It fails instead of waiting when the
// buffer is full.
func (s *Session) Send(data []byte) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	select {
	case s.send <- data:
		return nil
	case <-s.done:
		return ErrSessionClosed
	default:
		return ErrSendBufferFull
	}
}

// Touch records inbound activity.
func (s *Session) Touch() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.lastActive = time.Now()
}

func (s *Session) LastActive() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.lastActive
}

// WritePump writes queued frames to the connection until the session is
// closed or a write fails. A positive pingInterval also sends keepalive pings.
func (s *Session) WritePump(pingInterval time.Duration) error {
	var tick <-chan time.Time
	if pingInterval > 0 {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case data := <-s.send:
			if err := s.Conn.Send(data); err != nil {
				return err
			}
		case <-tick:
			if err := s.Conn.Ping(); err != nil {
				return err
			}
		case <-s.done:
			return nil
		}
	}
}

// Done is closed when the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close closes the session and its connection. Safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.Conn.Close()
	})
	return err
}

// Manager tracks every live session in the process.
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// GetByRoomID returns the sessions attached to a room.
func (m *Manager) GetByRoomID(roomID string) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if session.RoomID == roomID {
			result = append(result, session)
		}
	}
	return result
}

// CloseAll closes every session. Used at shutdown.
func (m *Manager) CloseAll() {
	m.mutex.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mutex.RUnlock()

	for _, s := range sessions {
		s.Close()
	}
}
