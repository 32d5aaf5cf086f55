package registry

import (
	"sync"

	"github.com/rocketscienceinc/tictactoe-relay/internal/session"
)

// Registry holds the live sessions and indexes them by assigned player id.
type Registry struct {
	mu       sync.RWMutex
	sessions map[*session.Session]struct{}
	byPlayer map[string]*session.Session
}

func New() *Registry {
	return &Registry{
		sessions: make(map[*session.Session]struct{}),
		byPlayer: make(map[string]*session.Session),
	}
}

// Register - adds a session and returns the number of live sessions.
func (that *Registry) Register(sess *session.Session) int {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.sessions[sess] = struct{}{}
	if id := sess.PlayerID(); id != "" {
		that.byPlayer[id] = sess
	}

	return len(that.sessions)
}

// Unregister - removes a session with its index entry and returns the number of live sessions left.
func (that *Registry) Unregister(sess *session.Session) int {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.sessions, sess)
	if id := sess.PlayerID(); id != "" && that.byPlayer[id] == sess {
		delete(that.byPlayer, id)
	}

	return len(that.sessions)
}

// Assign - gives the session a new player id, replacing the previous one in the index.
func (that *Registry) Assign(sess *session.Session, playerID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if old := sess.PlayerID(); old != "" && that.byPlayer[old] == sess {
		delete(that.byPlayer, old)
	}

	sess.SetPlayerID(playerID)

	if _, ok := that.sessions[sess]; ok && playerID != "" {
		that.byPlayer[playerID] = sess
	}
}

// FindByPlayerID - returns the live session assigned to id.
func (that *Registry) FindByPlayerID(id string) (*session.Session, bool) {
	if id == "" {
		return nil, false
	}

	that.mu.RLock()
	defer that.mu.RUnlock()

	sess, ok := that.byPlayer[id]
	return sess, ok
}

// ForEach - calls fn for a snapshot of the live sessions, so fn may register, unregister or terminate.
func (that *Registry) ForEach(fn func(sess *session.Session)) {
	that.mu.RLock()
	snapshot := make([]*session.Session, 0, len(that.sessions))
	for sess := range that.sessions {
		snapshot = append(snapshot, sess)
	}
	that.mu.RUnlock()

	for _, sess := range snapshot {
		fn(sess)
	}
}

// Terminate - requests the transport to close the session; disconnect handling follows from the transport.
func (that *Registry) Terminate(sess *session.Session) {
	sess.Terminate()
}

func (that *Registry) Count() int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.sessions)
}
