package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rocketscienceinc/tictactoe-relay/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-relay/internal/entity"
	"github.com/rocketscienceinc/tictactoe-relay/internal/pkg"
	"github.com/rocketscienceinc/tictactoe-relay/internal/protocol"
	"github.com/rocketscienceinc/tictactoe-relay/internal/session"
)

type gameStore interface {
	CreateGame(ctx context.Context) (string, string, error)
	GetGame(ctx context.Context, gameID string) (*entity.Game, error)
	DeleteGame(ctx context.Context, gameID string) error

	GetField(ctx context.Context, gameID, field string) (string, error)
	SetField(ctx context.Context, gameID, field, value string) error
	SetFields(ctx context.Context, gameID string, fields map[string]string) error
	DeleteField(ctx context.Context, gameID, field string) error

	EnqueueWaiting(ctx context.Context, gameID string) error
	DequeueWaiting(ctx context.Context) (string, error)
	RequeueWaiting(ctx context.Context, gameID string) error
	WaitingCount(ctx context.Context) (int64, error)
	RemoveWaiting(ctx context.Context, gameID string) error

	IndexPlayer(ctx context.Context, playerID, gameID string) error
	LookupGameForPlayer(ctx context.Context, playerID string) (string, error)
	UnindexPlayer(ctx context.Context, playerIDs ...string) error
}

type connections interface {
	Register(sess *session.Session) int
	Unregister(sess *session.Session) int
	Assign(sess *session.Session, playerID string)
	FindByPlayerID(id string) (*session.Session, bool)
	Count() int
}

type heartbeat interface {
	Start()
	Stop()
}

// GameManager pairs players through the waiting queue and relays moves between the two sessions of a game.
type GameManager struct {
	logger      *slog.Logger
	store       gameStore
	connections connections
	heartbeat   heartbeat
	opTimeout   time.Duration

	// matchmaking serialises findGame. It is always taken before a game lock.
	matchmaking sync.Mutex
	games       *pkg.KeyedMutex
	lifecycle   sync.Mutex
}

func NewGameManager(
	logger *slog.Logger,
	store gameStore,
	connections connections,
	heartbeat heartbeat,
	opTimeout time.Duration,
) *GameManager {
	return &GameManager{
		logger: logger,

		store:       store,
		connections: connections,
		heartbeat:   heartbeat,
		opTimeout:   opTimeout,

		games: pkg.NewKeyedMutex(),
	}
}

// Connect - registers a fresh session under a new player id and makes sure the heartbeat runs.
func (that *GameManager) Connect(sess *session.Session) {
	that.lifecycle.Lock()
	defer that.lifecycle.Unlock()

	that.connections.Register(sess)
	that.connections.Assign(sess, pkg.GeneratePlayerID())
	that.heartbeat.Start()

	that.logger.Debug("session connected", "sessionID", sess.ID(), "playerID", sess.PlayerID())
}

// HandleMessage - dispatches one inbound frame. Malformed and invalid requests are dropped without reply.
func (that *GameManager) HandleMessage(ctx context.Context, sess *session.Session, data []byte) {
	log := that.logger.With("method", "HandleMessage", "sessionID", sess.ID())

	defer func() {
		if r := recover(); r != nil {
			log.Error("recovered from panic", "panic", r)
		}
	}()

	req, err := protocol.ParseRequest(data)
	if err != nil {
		log.Debug("dropping message", "error", err)
		return
	}

	ctx, cancel := that.withTimeout(ctx)
	defer cancel()

	switch req.RequestType {
	case protocol.RequestFindGame:
		sess.SetAlive(true)
		err = that.FindGame(ctx, sess)
	case protocol.RequestMove:
		err = that.MakeMove(ctx, sess, req)
		sess.SetAlive(true)
	case protocol.RequestPong:
		sess.SetAlive(true)
	}

	switch {
	case err == nil:
	case errors.Is(err, apperror.ErrStoreUnavailable):
		log.Error("request failed", "requestType", req.RequestType, "error", err)
	default:
		log.Debug("request dropped", "requestType", req.RequestType, "error", err)
	}
}

// FindGame - joins the oldest waiting game or opens a new one with the caller as X.
func (that *GameManager) FindGame(ctx context.Context, sess *session.Session) error {
	if state := sess.State(); state == session.WaitingForOpponent || state == session.Matched {
		return fmt.Errorf("%w: session is %s", apperror.ErrAlreadyInGame, state)
	}

	that.matchmaking.Lock()
	defer that.matchmaking.Unlock()

	count, err := that.store.WaitingCount(ctx)
	if err != nil {
		return fmt.Errorf("failed to count waiting games: %w", err)
	}

	for ; count > 0; count-- {
		matched, err := that.joinWaitingGame(ctx, sess)
		if errors.Is(err, apperror.ErrNoWaitingGames) {
			break
		}

		if err != nil {
			return fmt.Errorf("failed to join waiting game: %w", err)
		}

		if matched {
			return nil
		}
	}

	if err = that.createGame(ctx, sess); err != nil {
		return fmt.Errorf("failed to create game: %w", err)
	}

	return nil
}

// joinWaitingGame - pops one waiting game and seats the caller as O. Returns false when the popped
// game was already gone.
func (that *GameManager) joinWaitingGame(ctx context.Context, sess *session.Session) (bool, error) {
	log := that.logger.With("method", "joinWaitingGame", "sessionID", sess.ID())

	gameID, err := that.store.DequeueWaiting(ctx)
	if err != nil {
		return false, err
	}

	unlock := that.games.Lock(gameID)
	defer unlock()

	playerX, err := that.store.GetField(ctx, gameID, entity.FieldPlayerX)
	if errors.Is(err, apperror.ErrGameNotFound) {
		log.Debug("skipping abandoned game", "gameID", gameID)
		return false, nil
	}

	if err != nil {
		return false, err
	}

	playerO := sess.PlayerID()

	if err = that.store.SetField(ctx, gameID, entity.FieldPlayerO, playerO); err != nil {
		that.releaseWaitingGame(ctx, gameID, playerX)
		return false, err
	}

	if err = that.store.IndexPlayer(ctx, playerO, gameID); err != nil {
		that.releaseWaitingGame(ctx, gameID, playerX)
		return false, err
	}

	sess.Transition(session.Matched, playerX)
	that.send(sess, protocol.FoundGameInfo(gameID, playerO))

	opponent, ok := that.connections.FindByPlayerID(playerX)
	if !ok {
		log.Warn("waiting player is gone", "gameID", gameID, "playerX", playerX)
		return true, nil
	}

	opponent.Transition(session.Matched, playerO)
	that.send(opponent, protocol.NewFoundPlayer())

	log.Info("game matched", "gameID", gameID, "playerX", playerX, "playerO", playerO)

	return true, nil
}

// releaseWaitingGame - undoes a join that failed after the game left the queue. The game goes back to the
// head of the queue with its O seat cleared. If that fails too the game is dropped and X is released, so
// that X can search again.
func (that *GameManager) releaseWaitingGame(ctx context.Context, gameID, playerX string) {
	log := that.logger.With("method", "releaseWaitingGame", "gameID", gameID)

	err := that.store.DeleteField(ctx, gameID, entity.FieldPlayerO)
	if err == nil {
		err = that.store.RequeueWaiting(ctx, gameID)
	}

	if err == nil {
		log.Debug("waiting game restored")
		return
	}

	log.Error("failed to restore waiting game", "error", err)

	that.discardGame(ctx, gameID)

	if err = that.store.UnindexPlayer(ctx, playerX); err != nil {
		log.Error("failed to unindex player", "playerID", playerX, "error", err)
	}

	waiting, ok := that.connections.FindByPlayerID(playerX)
	if !ok || waiting.State() != session.WaitingForOpponent {
		return
	}

	waiting.Transition(session.Terminated, "")
	that.send(waiting, protocol.NewOpponentDropped())
}

func (that *GameManager) createGame(ctx context.Context, sess *session.Session) error {
	gameID, playerX, err := that.store.CreateGame(ctx)
	if err != nil {
		return err
	}

	if err = that.store.EnqueueWaiting(ctx, gameID); err != nil {
		that.discardGame(ctx, gameID)
		return err
	}

	if err = that.store.IndexPlayer(ctx, playerX, gameID); err != nil {
		that.discardGame(ctx, gameID)
		return err
	}

	that.connections.Assign(sess, playerX)
	sess.Transition(session.WaitingForOpponent, "")
	that.send(sess, protocol.NewGameInfo(gameID, playerX))

	that.logger.Info("game created", "gameID", gameID, "playerX", playerX)

	return nil
}

// MakeMove - validates the move against the stored record, persists it and relays it to the opponent.
func (that *GameManager) MakeMove(ctx context.Context, sess *session.Session, req *protocol.Request) error {
	unlock := that.games.Lock(req.GameID)
	defer unlock()

	game, err := that.store.GetGame(ctx, req.GameID)
	if err != nil {
		return fmt.Errorf("failed to get game: %w", err)
	}

	space := *req.Space

	result, err := game.MakeTurn(req.PlayerShape, req.PlayerID, space)
	if err != nil {
		return fmt.Errorf("failed make turn: %w", err)
	}

	opponentID := game.PlayerFor(entity.ToggleMark(req.PlayerShape))
	opponent, online := that.connections.FindByPlayerID(opponentID)

	// a finished game is removed, so its final board is never written
	var cleanupErr error
	if result == "" {
		if err = that.saveBoard(ctx, game); err != nil {
			return err
		}
	} else {
		cleanupErr = that.finishGame(ctx, game)

		sess.Transition(session.Terminated, "")
		if online {
			opponent.Transition(session.Terminated, "")
		}

		that.logger.Info("game finished", "gameID", game.ID, "result", result)
	}

	that.send(sess, protocol.NewMoveConfirm(result))

	if online {
		that.send(opponent, protocol.NewMoveNotify(space, req.PlayerShape, result))
	} else {
		that.logger.Warn("opponent is gone, move not relayed", "gameID", game.ID, "opponentID", opponentID)
	}

	return cleanupErr
}

func (that *GameManager) saveBoard(ctx context.Context, game *entity.Game) error {
	spaces, err := json.Marshal(game.Spaces)
	if err != nil {
		return fmt.Errorf("could not marshal board: %w", err)
	}

	err = that.store.SetFields(ctx, game.ID, map[string]string{
		entity.FieldSpaces:      string(spaces),
		entity.FieldCurrentTurn: game.CurrentTurn,
	})
	if err != nil {
		return fmt.Errorf("failed to update game: %w", err)
	}

	return nil
}

// finishGame - removes a decided game. Both steps are attempted; a leftover record or index entry is
// cleaned up when its players disconnect.
func (that *GameManager) finishGame(ctx context.Context, game *entity.Game) error {
	var errs []error

	if err := that.store.DeleteGame(ctx, game.ID); err != nil {
		errs = append(errs, fmt.Errorf("failed to delete finished game: %w", err))
	}

	if err := that.store.UnindexPlayer(ctx, game.PlayerX, game.PlayerO); err != nil {
		errs = append(errs, fmt.Errorf("failed to unindex players: %w", err))
	}

	return errors.Join(errs...)
}

// Disconnect - forgets the session, abandons its unresolved game and tells a matched opponent.
// The heartbeat stops with the last session.
func (that *GameManager) Disconnect(ctx context.Context, sess *session.Session) {
	log := that.logger.With("method", "Disconnect", "sessionID", sess.ID())

	that.connections.Unregister(sess)

	ctx, cancel := that.withTimeout(context.WithoutCancel(ctx))
	defer cancel()

	that.abandonGame(ctx, sess)
	sess.Transition(session.Terminated, "")

	that.lifecycle.Lock()
	if that.connections.Count() == 0 {
		that.heartbeat.Stop()
	}
	that.lifecycle.Unlock()

	log.Debug("session disconnected", "playerID", sess.PlayerID())
}

func (that *GameManager) abandonGame(ctx context.Context, sess *session.Session) {
	log := that.logger.With("method", "abandonGame", "sessionID", sess.ID())

	playerID := sess.PlayerID()

	gameID, err := that.store.LookupGameForPlayer(ctx, playerID)
	switch {
	case errors.Is(err, apperror.ErrPlayerNotFound):
		return
	case err != nil:
		log.Error("failed to lookup game", "playerID", playerID, "error", err)
		return
	}

	unlock := that.games.Lock(gameID)
	defer unlock()

	opponentID := sess.OpponentID()

	game, err := that.store.GetGame(ctx, gameID)
	switch {
	case err == nil:
		opponentID = game.OpponentOf(playerID)
	case !errors.Is(err, apperror.ErrGameNotFound):
		log.Error("failed to get game", "gameID", gameID, "error", err)
	}

	if err = that.store.DeleteGame(ctx, gameID); err != nil {
		log.Error("failed to delete game", "gameID", gameID, "error", err)
	}

	if err = that.store.RemoveWaiting(ctx, gameID); err != nil {
		log.Error("failed to remove waiting game", "gameID", gameID, "error", err)
	}

	if err = that.store.UnindexPlayer(ctx, playerID); err != nil {
		log.Error("failed to unindex player", "playerID", playerID, "error", err)
	}

	if opponentID == "" {
		log.Info("waiting game abandoned", "gameID", gameID, "playerID", playerID)
		return
	}

	if err = that.store.UnindexPlayer(ctx, opponentID); err != nil {
		log.Error("failed to unindex opponent", "playerID", opponentID, "error", err)
	}

	opponent, ok := that.connections.FindByPlayerID(opponentID)
	if !ok || opponent.OpponentID() != playerID {
		return
	}

	opponent.Transition(session.Terminated, "")
	that.send(opponent, protocol.NewOpponentDropped())

	log.Info("game abandoned", "gameID", gameID, "playerID", playerID)
}

func (that *GameManager) discardGame(ctx context.Context, gameID string) {
	log := that.logger.With("method", "discardGame", "gameID", gameID)

	if err := that.store.RemoveWaiting(ctx, gameID); err != nil {
		log.Error("failed to remove waiting game", "error", err)
	}

	if err := that.store.DeleteGame(ctx, gameID); err != nil {
		log.Error("failed to delete game", "error", err)
	}
}

func (that *GameManager) send(sess *session.Session, msg any) {
	if err := sess.Send(msg); err != nil {
		that.logger.Debug("failed to send message", "sessionID", sess.ID(), "error", err)
	}
}

func (that *GameManager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if that.opTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, that.opTimeout)
}
