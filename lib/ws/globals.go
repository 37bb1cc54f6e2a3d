package ws

import (
	"sync"

	"github.com/ether/easysync/lib/models/ws"
)

type sessionEntry struct {
	mu      sync.Mutex
	session *ws.Session
}

// SessionStore holds the session of every connected socket. Each session has
// its own lock so that the messages of one client go out in order.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*sessionEntry),
	}
}

func (s *SessionStore) initSession(sessionId string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionId] = &sessionEntry{session: &ws.Session{Revision: -1}}
}

func (s *SessionStore) removeSession(sessionId string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionId)
}

func (s *SessionStore) hasSession(sessionId string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[sessionId]
	return ok
}

// getSession returns a copy of the session.
func (s *SessionStore) getSession(sessionId string) (ws.Session, bool) {
	var session ws.Session
	found := s.withSession(sessionId, func(current *ws.Session) {
		session = *current
	})
	return session, found
}

// withSession runs fn with the session locked. It reports false if there is
// no such session.
func (s *SessionStore) withSession(sessionId string, fn func(session *ws.Session)) bool {
	s.mu.RLock()
	entry, ok := s.sessions[sessionId]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	fn(entry.session)
	return true
}

func (s *SessionStore) resetSession(sessionId string) {
	s.withSession(sessionId, func(session *ws.Session) {
		*session = ws.Session{Revision: -1}
	})
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
