package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-relay/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-relay/internal/entity"
)

// Inbound request types.
const (
	RequestFindGame = "findGame"
	RequestMove     = "move"
	RequestPong     = "pong"
)

// Outbound message types.
const (
	MessagePing            = "ping"
	MessageNewGameInfo     = "newGameInfo"
	MessageFoundGameInfo   = "foundGameInfo"
	MessageFoundPlayer     = "foundPlayer"
	MessageMoveConfirm     = "moveConfirm"
	MessageMoveNotify      = "moveNotify"
	MessageOpponentDropped = "opponentDropped"
)

// Request is one inbound frame. Only move carries payload fields.
type Request struct {
	RequestType string `json:"requestType"`
	GameID      string `json:"gameID,omitempty"`
	Space       *int   `json:"space,omitempty"`
	PlayerShape string `json:"playerShape,omitempty"`
	PlayerID    string `json:"playerID,omitempty"`
}

// ParseRequest - decodes a frame and checks the fields its request type requires.
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("%w: %w", apperror.ErrMalformedMessage, err)
	}

	switch req.RequestType {
	case RequestFindGame, RequestPong:
		return &req, nil
	case RequestMove:
		if req.GameID == "" || req.PlayerID == "" || req.Space == nil || !entity.IsShape(req.PlayerShape) {
			return nil, fmt.Errorf("%w: incomplete move", apperror.ErrMalformedMessage)
		}
		return &req, nil
	case "":
		return nil, fmt.Errorf("%w: missing requestType", apperror.ErrMalformedMessage)
	default:
		return nil, fmt.Errorf("%w: unknown requestType %q", apperror.ErrMalformedMessage, req.RequestType)
	}
}

type Message struct {
	MessageType string `json:"messageType"`
}

type GameInfo struct {
	MessageType string `json:"messageType"`
	GameID      string `json:"gameID"`
	PlayerID    string `json:"playerID"`
	CurrentTurn string `json:"currentTurn"`
	PlayerShape string `json:"playerShape"`
}

type MoveConfirm struct {
	MessageType string `json:"messageType"`
	EndResult   string `json:"endResult,omitempty"`
}

type MoveNotify struct {
	MessageType string `json:"messageType"`
	Space       int    `json:"space"`
	Shape       string `json:"shape"`
	EndResult   string `json:"endResult,omitempty"`
}

func NewPing() Message {
	return Message{MessageType: MessagePing}
}

func NewFoundPlayer() Message {
	return Message{MessageType: MessageFoundPlayer}
}

func NewOpponentDropped() Message {
	return Message{MessageType: MessageOpponentDropped}
}

// NewGameInfo - reply to the player who opened a new waiting game as X.
func NewGameInfo(gameID, playerID string) GameInfo {
	return GameInfo{
		MessageType: MessageNewGameInfo,
		GameID:      gameID,
		PlayerID:    playerID,
		CurrentTurn: entity.PlayerX,
		PlayerShape: entity.PlayerX,
	}
}

// FoundGameInfo - reply to the player who joined a waiting game as O.
func FoundGameInfo(gameID, playerID string) GameInfo {
	return GameInfo{
		MessageType: MessageFoundGameInfo,
		GameID:      gameID,
		PlayerID:    playerID,
		CurrentTurn: entity.PlayerX,
		PlayerShape: entity.PlayerO,
	}
}

func NewMoveConfirm(endResult string) MoveConfirm {
	return MoveConfirm{MessageType: MessageMoveConfirm, EndResult: endResult}
}

func NewMoveNotify(space int, shape, endResult string) MoveNotify {
	return MoveNotify{MessageType: MessageMoveNotify, Space: space, Shape: shape, EndResult: endResult}
}
