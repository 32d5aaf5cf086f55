package pkg

import "github.com/google/uuid"

// GenerateGameID - generates a unique identifier for the game record.
func GenerateGameID() string {
	return uuid.NewString()
}

// GeneratePlayerID - generates a unique opaque player identifier.
func GeneratePlayerID() string {
	return uuid.NewString()
}

// GenerateSessionID - generates an identifier for a socket connection, used in logs only.
func GenerateSessionID() string {
	return uuid.NewString()
}
