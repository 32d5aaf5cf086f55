package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/rocketscienceinc/tictactoe-relay/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-relay/internal/entity"
	"github.com/rocketscienceinc/tictactoe-relay/internal/pkg"
)

// memStore mirrors the Redis layout in memory.
type memStore struct {
	mu      sync.Mutex
	games   map[string]map[string]string
	waiting []string
	index   map[string]string
}

func newMemStore() *memStore {
	return &memStore{
		games: make(map[string]map[string]string),
		index: make(map[string]string),
	}
}

func (that *memStore) CreateGame(_ context.Context) (string, string, error) {
	game := entity.NewGame(pkg.GenerateGameID(), pkg.GeneratePlayerID())

	spaces, err := json.Marshal(game.Spaces)
	if err != nil {
		return "", "", err
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	that.games[game.ID] = map[string]string{
		entity.FieldPlayerX:     game.PlayerX,
		entity.FieldSpaces:      string(spaces),
		entity.FieldCurrentTurn: game.CurrentTurn,
	}

	return game.ID, game.PlayerX, nil
}

func (that *memStore) GetGame(_ context.Context, gameID string) (*entity.Game, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	fields, ok := that.games[gameID]
	if !ok {
		return nil, apperror.ErrGameNotFound
	}

	game := &entity.Game{
		ID:          gameID,
		PlayerX:     fields[entity.FieldPlayerX],
		PlayerO:     fields[entity.FieldPlayerO],
		CurrentTurn: fields[entity.FieldCurrentTurn],
	}

	if err := json.Unmarshal([]byte(fields[entity.FieldSpaces]), &game.Spaces); err != nil {
		return nil, err
	}

	return game, nil
}

func (that *memStore) DeleteGame(_ context.Context, gameID string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.games, gameID)

	return nil
}

func (that *memStore) GetField(_ context.Context, gameID, field string) (string, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	value, ok := that.games[gameID][field]
	if !ok {
		return "", fmt.Errorf("%w: field %s of %s", apperror.ErrGameNotFound, field, gameID)
	}

	return value, nil
}

func (that *memStore) SetField(ctx context.Context, gameID, field, value string) error {
	return that.SetFields(ctx, gameID, map[string]string{field: value})
}

func (that *memStore) SetFields(_ context.Context, gameID string, fields map[string]string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	record, ok := that.games[gameID]
	if !ok {
		record = make(map[string]string)
		that.games[gameID] = record
	}

	for field, value := range fields {
		record[field] = value
	}

	return nil
}

func (that *memStore) DeleteField(_ context.Context, gameID, field string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.games[gameID], field)

	return nil
}

func (that *memStore) EnqueueWaiting(_ context.Context, gameID string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.waiting = append(that.waiting, gameID)

	return nil
}

func (that *memStore) DequeueWaiting(_ context.Context) (string, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if len(that.waiting) == 0 {
		return "", apperror.ErrNoWaitingGames
	}

	gameID := that.waiting[0]
	that.waiting = that.waiting[1:]

	return gameID, nil
}

func (that *memStore) RequeueWaiting(_ context.Context, gameID string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.waiting = append([]string{gameID}, that.waiting...)

	return nil
}

func (that *memStore) WaitingCount(_ context.Context) (int64, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	return int64(len(that.waiting)), nil
}

func (that *memStore) RemoveWaiting(_ context.Context, gameID string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if i := slices.Index(that.waiting, gameID); i >= 0 {
		that.waiting = slices.Delete(that.waiting, i, i+1)
	}

	return nil
}

func (that *memStore) IndexPlayer(_ context.Context, playerID, gameID string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.index[playerID] = gameID

	return nil
}

func (that *memStore) LookupGameForPlayer(_ context.Context, playerID string) (string, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	gameID, ok := that.index[playerID]
	if !ok {
		return "", apperror.ErrPlayerNotFound
	}

	return gameID, nil
}

func (that *memStore) UnindexPlayer(_ context.Context, playerIDs ...string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	for _, id := range playerIDs {
		delete(that.index, id)
	}

	return nil
}

func (that *memStore) hasGame(gameID string) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	_, ok := that.games[gameID]
	return ok
}

func (that *memStore) queue() []string {
	that.mu.Lock()
	defer that.mu.Unlock()

	return slices.Clone(that.waiting)
}

func (that *memStore) indexed(playerID string) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	_, ok := that.index[playerID]
	return ok
}

// mockStore is a testify mock for the failure paths.
type mockStore struct {
	mock.Mock
}

func (that *mockStore) CreateGame(ctx context.Context) (string, string, error) {
	args := that.Called(ctx)
	return args.String(0), args.String(1), args.Error(2)
}

func (that *mockStore) GetGame(ctx context.Context, gameID string) (*entity.Game, error) {
	args := that.Called(ctx, gameID)
	game, _ := args.Get(0).(*entity.Game)
	return game, args.Error(1)
}

func (that *mockStore) DeleteGame(ctx context.Context, gameID string) error {
	return that.Called(ctx, gameID).Error(0)
}

func (that *mockStore) GetField(ctx context.Context, gameID, field string) (string, error) {
	args := that.Called(ctx, gameID, field)
	return args.String(0), args.Error(1)
}

func (that *mockStore) SetField(ctx context.Context, gameID, field, value string) error {
	return that.Called(ctx, gameID, field, value).Error(0)
}

func (that *mockStore) SetFields(ctx context.Context, gameID string, fields map[string]string) error {
	return that.Called(ctx, gameID, fields).Error(0)
}

func (that *mockStore) DeleteField(ctx context.Context, gameID, field string) error {
	return that.Called(ctx, gameID, field).Error(0)
}

func (that *mockStore) EnqueueWaiting(ctx context.Context, gameID string) error {
	return that.Called(ctx, gameID).Error(0)
}

func (that *mockStore) DequeueWaiting(ctx context.Context) (string, error) {
	args := that.Called(ctx)
	return args.String(0), args.Error(1)
}

func (that *mockStore) RequeueWaiting(ctx context.Context, gameID string) error {
	return that.Called(ctx, gameID).Error(0)
}

func (that *mockStore) WaitingCount(ctx context.Context) (int64, error) {
	args := that.Called(ctx)
	count, _ := args.Get(0).(int64)
	return count, args.Error(1)
}

func (that *mockStore) RemoveWaiting(ctx context.Context, gameID string) error {
	return that.Called(ctx, gameID).Error(0)
}

func (that *mockStore) IndexPlayer(ctx context.Context, playerID, gameID string) error {
	return that.Called(ctx, playerID, gameID).Error(0)
}

func (that *mockStore) LookupGameForPlayer(ctx context.Context, playerID string) (string, error) {
	args := that.Called(ctx, playerID)
	return args.String(0), args.Error(1)
}

func (that *mockStore) UnindexPlayer(ctx context.Context, playerIDs ...string) error {
	args := make([]any, 0, len(playerIDs)+1)
	args = append(args, ctx)
	for _, id := range playerIDs {
		args = append(args, id)
	}

	return that.Called(args...).Error(0)
}

type fakeHeartbeat struct {
	mu     sync.Mutex
	starts int
	stops  int
}

func (that *fakeHeartbeat) Start() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.starts++
}

func (that *fakeHeartbeat) Stop() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.stops++
}

func (that *fakeHeartbeat) counts() (int, int) {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.starts, that.stops
}
