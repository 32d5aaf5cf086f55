package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// State is the protocol state of one connection.
type State int

const (
	Unmatched State = iota
	WaitingForOpponent
	Matched
	Terminated
)

var (
	ErrClosed     = errors.New("session is closed")
	ErrOutboxFull = errors.New("session outbox is full")
)

func (s State) String() string {
	switch s {
	case Unmatched:
		return "unmatched"
	case WaitingForOpponent:
		return "waiting"
	case Matched:
		return "matched"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session annotates a live connection with the fields the protocol needs. The transport owns the
// network side: it drains Outbox and closes the connection when asked through the closer.
type Session struct {
	id     string
	closer io.Closer

	mu         sync.RWMutex
	playerID   string
	opponentID string
	state      State

	alive atomic.Bool

	outbox    chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func New(id string, outboxSize int, closer io.Closer) *Session {
	sess := &Session{
		id:     id,
		closer: closer,
		outbox: make(chan []byte, outboxSize),
		done:   make(chan struct{}),
	}
	sess.alive.Store(true)

	return sess
}

// ID - returns the connection id, stable for the session lifetime.
func (that *Session) ID() string {
	return that.id
}

func (that *Session) PlayerID() string {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return that.playerID
}

// SetPlayerID should only be called by the registry, which indexes sessions by player id.
func (that *Session) SetPlayerID(playerID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.playerID = playerID
}

func (that *Session) OpponentID() string {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return that.opponentID
}

func (that *Session) State() State {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return that.state
}

// Transition - moves the session to state and records the opponent id ("" clears it).
func (that *Session) Transition(state State, opponentID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.state = state
	that.opponentID = opponentID
}

func (that *Session) Alive() bool {
	return that.alive.Load()
}

func (that *Session) SetAlive(alive bool) {
	that.alive.Store(alive)
}

// Send - encodes msg and queues it without blocking. A full queue terminates the session.
func (that *Session) Send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	select {
	case <-that.done:
		return ErrClosed
	default:
	}

	select {
	case that.outbox <- data:
		return nil
	default:
		that.Terminate()
		return ErrOutboxFull
	}
}

// Outbox - encoded frames waiting to be written by the transport.
func (that *Session) Outbox() <-chan []byte {
	return that.outbox
}

// Done is closed once the session is terminated.
func (that *Session) Done() <-chan struct{} {
	return that.done
}

// Terminate - asks the transport to close the connection. Safe to call more than once.
func (that *Session) Terminate() {
	that.closeOnce.Do(func() {
		close(that.done)
		if that.closer != nil {
			_ = that.closer.Close()
		}
	})
}
