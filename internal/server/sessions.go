package server

import (
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Session is one client connection being served.
//
// The ID is a random UUID attached to every log record for the
// connection. Requests counts lines handled so far, successful or not.
type Session struct {
	ID         string
	RemoteAddr string
	Started    time.Time

	conn     net.Conn
	requests atomic.Uint64
}

func newSession(conn net.Conn) *Session {
	addr := ""
	if ra := conn.RemoteAddr(); ra != nil {
		addr = ra.String()
	}
	return &Session{
		ID:         uuid.NewString(),
		RemoteAddr: addr,
		Started:    time.Now(),
		conn:       conn,
	}
}

// Requests returns the number of lines handled on this session.
func (s *Session) Requests() uint64 {
	return s.requests.Load()
}

// SessionInfo is a point-in-time copy of a Session.
type SessionInfo struct {
	ID         string    `json:"id"`
	RemoteAddr string    `json:"remote_addr"`
	Started    time.Time `json:"started"`
	Requests   uint64    `json:"requests"`
}

// SessionRegistry tracks live sessions so they can be listed and closed
// together on shutdown.
//
// Concurrency Model:
//   - Lookups and listings take the read lock
//   - Add, Remove and CloseAll take the write lock
//   - Listings return copies, never the live sessions
type SessionRegistry struct {
	sessions map[string]*Session // session ID -> session
	mu       sync.RWMutex
	closed   bool // set by CloseAll; later Adds are refused
}

// NewSessionRegistry returns an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*Session)}
}

// Add registers s. It returns false if the registry has already been
// closed, in which case the caller must close the connection itself.
func (r *SessionRegistry) Add(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.sessions[s.ID] = s
	return true
}

// Remove unregisters the session with the given ID. Unknown IDs are ignored.
func (r *SessionRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// get returns a copy of the session with the given ID.
func (r *SessionRegistry) get(id string) (SessionInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return SessionInfo{}, false
	}
	return s.info(), true
}

// All returns copies of every live session, oldest first.
func (r *SessionRegistry) All() []SessionInfo {
	r.mu.RLock()
	out := make([]SessionInfo, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.info())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Started.Equal(out[j].Started) {
			return out[i].ID < out[j].ID
		}
		return out[i].Started.Before(out[j].Started)
	})
	return out
}

// Len returns the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll closes every live connection and refuses further sessions.
// Sessions stay registered until their handlers call Remove.
func (r *SessionRegistry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for _, s := range r.sessions {
		s.conn.Close()
	}
}

func (s *Session) info() SessionInfo {
	return SessionInfo{
		ID:         s.ID,
		RemoteAddr: s.RemoteAddr,
		Started:    s.Started,
		Requests:   s.Requests(),
	}
}
