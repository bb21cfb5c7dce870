package model

import "errors"

// Common errors used across the framework
var (
	// Room errors
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomClosed   = errors.New("room is closed")

	// Config errors
	ErrInvalidConfig = errors.New("invalid game config")

	// Connection tracker errors
	ErrPlayerAlreadyTracked = errors.New("player is already tracked")
	ErrPlayerNotTracked     = errors.New("player is not tracked")
)
