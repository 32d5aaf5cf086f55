package liveness

import (
	"log/slog"
	"sync"
	"time"

	"github.com/rocketscienceinc/tictactoe-relay/internal/protocol"
	"github.com/rocketscienceinc/tictactoe-relay/internal/session"
)

type connections interface {
	ForEach(fn func(sess *session.Session))
	Terminate(sess *session.Session)
}

// Monitor pings every session on a fixed interval and terminates those that missed the previous ping.
type Monitor struct {
	logger      *slog.Logger
	connections connections
	interval    time.Duration

	mu   sync.Mutex
	stop chan struct{}
	wg   sync.WaitGroup
}

func NewMonitor(logger *slog.Logger, connections connections, interval time.Duration) *Monitor {
	return &Monitor{
		logger:      logger.With("component", "liveness"),
		connections: connections,
		interval:    interval,
	}
}

// Start - launches the heartbeat loop unless it is already running.
func (that *Monitor) Start() {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.stop != nil {
		return
	}

	that.stop = make(chan struct{})
	that.wg.Add(1)
	go that.run(that.stop)

	that.logger.Debug("heartbeat started", "interval", that.interval)
}

// Stop - halts the loop and resets the monitor so that Start can run it again.
func (that *Monitor) Stop() {
	that.mu.Lock()
	if that.stop == nil {
		that.mu.Unlock()
		return
	}
	close(that.stop)
	that.stop = nil
	that.mu.Unlock()

	that.wg.Wait()

	that.logger.Debug("heartbeat stopped")
}

// Running reports whether the heartbeat loop is active.
func (that *Monitor) Running() bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.stop != nil
}

func (that *Monitor) run(stop <-chan struct{}) {
	defer that.wg.Done()

	ticker := time.NewTicker(that.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			that.Tick()
		}
	}
}

// Tick - one heartbeat round over all sessions.
func (that *Monitor) Tick() {
	that.connections.ForEach(func(sess *session.Session) {
		if !sess.Alive() {
			that.logger.Info("session not responsive, dropping", "sessionID", sess.ID(), "playerID", sess.PlayerID())
			that.connections.Terminate(sess)
			return
		}

		sess.SetAlive(false)
		if err := sess.Send(protocol.NewPing()); err != nil {
			that.logger.Debug("failed to send ping", "sessionID", sess.ID(), "error", err)
		}
	})
}
