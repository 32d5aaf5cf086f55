package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rocketscienceinc/tictactoe-relay/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-relay/internal/entity"
	"github.com/rocketscienceinc/tictactoe-relay/internal/pkg"
)

const (
	gameKeyPrefix  = "game:"
	waitingKey     = "games:waiting"
	playerIndexKey = "players:index"
)

// GameStore - domain operations over the shared Redis keyspace. Each call is atomic on its own;
// sequences of calls are not.
type GameStore interface {
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

	Flush(ctx context.Context) error
}

type dbGame struct {
	client *redis.Client
}

func NewGameStore(client *redis.Client) GameStore {
	return &dbGame{
		client: client,
	}
}

func gameKey(id string) string {
	return gameKeyPrefix + id
}

func storeError(action string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", action, apperror.ErrStoreUnavailable, err)
}

// CreateGame - writes a fresh record with an empty board and X to move. Returns the game and playerX ids.
func (that *dbGame) CreateGame(ctx context.Context) (string, string, error) {
	game := entity.NewGame(pkg.GenerateGameID(), pkg.GeneratePlayerID())

	spaces, err := json.Marshal(game.Spaces)
	if err != nil {
		return "", "", fmt.Errorf("could not marshal board: %w", err)
	}

	err = that.client.HSet(ctx, gameKey(game.ID),
		entity.FieldPlayerX, game.PlayerX,
		entity.FieldSpaces, string(spaces),
		entity.FieldCurrentTurn, game.CurrentTurn,
	).Err()
	if err != nil {
		return "", "", storeError("create game", err)
	}

	return game.ID, game.PlayerX, nil
}

func (that *dbGame) GetGame(ctx context.Context, gameID string) (*entity.Game, error) {
	fields, err := that.client.HGetAll(ctx, gameKey(gameID)).Result()
	if err != nil {
		return nil, storeError("get game", err)
	}

	if len(fields) == 0 {
		return nil, apperror.ErrGameNotFound
	}

	game := &entity.Game{
		ID:          gameID,
		PlayerX:     fields[entity.FieldPlayerX],
		PlayerO:     fields[entity.FieldPlayerO],
		CurrentTurn: fields[entity.FieldCurrentTurn],
	}

	if err = json.Unmarshal([]byte(fields[entity.FieldSpaces]), &game.Spaces); err != nil {
		return nil, fmt.Errorf("failed to unmarshal spaces of game %s: %w", gameID, err)
	}

	return game, nil
}

// DeleteGame - removes the game record. Deleting a missing record is not an error.
func (that *dbGame) DeleteGame(ctx context.Context, gameID string) error {
	if err := that.client.Del(ctx, gameKey(gameID)).Err(); err != nil {
		return storeError("delete game", err)
	}

	return nil
}

func (that *dbGame) GetField(ctx context.Context, gameID, field string) (string, error) {
	value, err := that.client.HGet(ctx, gameKey(gameID), field).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%w: field %s of %s", apperror.ErrGameNotFound, field, gameID)
	}

	if err != nil {
		return "", storeError("get game field", err)
	}

	return value, nil
}

func (that *dbGame) SetField(ctx context.Context, gameID, field, value string) error {
	if err := that.client.HSet(ctx, gameKey(gameID), field, value).Err(); err != nil {
		return storeError("set game field", err)
	}

	return nil
}

// SetFields - writes all fields with a single HSET so readers never observe half of them.
func (that *dbGame) SetFields(ctx context.Context, gameID string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}

	values := make([]any, 0, len(fields)*2)
	for field, value := range fields {
		values = append(values, field, value)
	}

	if err := that.client.HSet(ctx, gameKey(gameID), values...).Err(); err != nil {
		return storeError("set game fields", err)
	}

	return nil
}

func (that *dbGame) DeleteField(ctx context.Context, gameID, field string) error {
	if err := that.client.HDel(ctx, gameKey(gameID), field).Err(); err != nil {
		return storeError("delete game field", err)
	}

	return nil
}

func (that *dbGame) EnqueueWaiting(ctx context.Context, gameID string) error {
	if err := that.client.RPush(ctx, waitingKey, gameID).Err(); err != nil {
		return storeError("enqueue waiting game", err)
	}

	return nil
}

// DequeueWaiting - pops the oldest waiting game id. Returns apperror.ErrNoWaitingGames when the queue is empty.
func (that *dbGame) DequeueWaiting(ctx context.Context) (string, error) {
	gameID, err := that.client.LPop(ctx, waitingKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", apperror.ErrNoWaitingGames
	}

	if err != nil {
		return "", storeError("dequeue waiting game", err)
	}

	return gameID, nil
}

// RequeueWaiting - puts a game id back at the head of the queue, ahead of newer games.
func (that *dbGame) RequeueWaiting(ctx context.Context, gameID string) error {
	if err := that.client.LPush(ctx, waitingKey, gameID).Err(); err != nil {
		return storeError("requeue waiting game", err)
	}

	return nil
}

func (that *dbGame) WaitingCount(ctx context.Context) (int64, error) {
	count, err := that.client.LLen(ctx, waitingKey).Result()
	if err != nil {
		return 0, storeError("count waiting games", err)
	}

	return count, nil
}

func (that *dbGame) RemoveWaiting(ctx context.Context, gameID string) error {
	if err := that.client.LRem(ctx, waitingKey, 1, gameID).Err(); err != nil {
		return storeError("remove waiting game", err)
	}

	return nil
}

func (that *dbGame) IndexPlayer(ctx context.Context, playerID, gameID string) error {
	if err := that.client.HSet(ctx, playerIndexKey, playerID, gameID).Err(); err != nil {
		return storeError("index player", err)
	}

	return nil
}

// LookupGameForPlayer - returns apperror.ErrPlayerNotFound when the player has no unresolved game.
func (that *dbGame) LookupGameForPlayer(ctx context.Context, playerID string) (string, error) {
	gameID, err := that.client.HGet(ctx, playerIndexKey, playerID).Result()
	if errors.Is(err, redis.Nil) {
		return "", apperror.ErrPlayerNotFound
	}

	if err != nil {
		return "", storeError("lookup player", err)
	}

	return gameID, nil
}

func (that *dbGame) UnindexPlayer(ctx context.Context, playerIDs ...string) error {
	fields := make([]string, 0, len(playerIDs))
	for _, id := range playerIDs {
		if id != "" {
			fields = append(fields, id)
		}
	}

	if len(fields) == 0 {
		return nil
	}

	if err := that.client.HDel(ctx, playerIndexKey, fields...).Err(); err != nil {
		return storeError("unindex player", err)
	}

	return nil
}

// Flush - drops the whole database. Used at startup since no session survives a restart.
func (that *dbGame) Flush(ctx context.Context) error {
	if err := that.client.FlushDB(ctx).Err(); err != nil {
		return storeError("flush database", err)
	}

	return nil
}
