package model

import "time"

// PlayerAction is a game-defined request from a player. The framework routes
// actions to the concrete game without interpreting Type or Payload.
type PlayerAction struct {
	PlayerID  PlayerID  `json:"player_id"`
	Type      string    `json:"type"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ActionResult is the game's answer to a PlayerAction
type ActionResult struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}
