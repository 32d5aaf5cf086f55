package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closerStub struct {
	calls int
}

func (that *closerStub) Close() error {
	that.calls++
	return nil
}

func TestSession_Send(t *testing.T) {
	t.Run("Queues encoded messages", func(t *testing.T) {
		// Given: a new session
		sess := New("c1", 2, &closerStub{})

		// When: a message is sent
		err := sess.Send(map[string]string{"messageType": "ping"})

		// Then: the encoded frame is waiting in the outbox
		require.NoError(t, err)
		assert.JSONEq(t, `{"messageType":"ping"}`, string(<-sess.Outbox()))
	})

	t.Run("A full outbox terminates the session", func(t *testing.T) {
		// Given: a session with room for one frame
		closer := &closerStub{}
		sess := New("c1", 1, closer)
		require.NoError(t, sess.Send("first"))

		// When: a second frame is sent
		err := sess.Send("second")

		// Then: the session is closed
		require.ErrorIs(t, err, ErrOutboxFull)
		assert.Equal(t, 1, closer.calls)

		select {
		case <-sess.Done():
		default:
			t.Fatal("session should be done")
		}

		// And: later sends are rejected
		require.ErrorIs(t, sess.Send("third"), ErrClosed)
	})
}

func TestSession_Terminate(t *testing.T) {
	// Given: a session
	closer := &closerStub{}
	sess := New("c1", 1, closer)

	// When: it is terminated twice
	sess.Terminate()
	sess.Terminate()

	// Then: the connection is closed once
	assert.Equal(t, 1, closer.calls)
}

func TestSession_State(t *testing.T) {
	// Given: a new session
	sess := New("c1", 1, nil)

	// Then: it starts unmatched and alive
	assert.Equal(t, Unmatched, sess.State())
	assert.True(t, sess.Alive())

	// When: it is matched against an opponent
	sess.Transition(Matched, "po")

	// Then: state and opponent are recorded
	assert.Equal(t, Matched, sess.State())
	assert.Equal(t, "po", sess.OpponentID())
	assert.Equal(t, "matched", sess.State().String())

	// When: the game ends
	sess.Transition(Terminated, "")

	// Then: the opponent is cleared
	assert.Empty(t, sess.OpponentID())
}
