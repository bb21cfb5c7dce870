package model

import "time"

// EventType identifies the type of event
type EventType string

const (
	// Player lifecycle events
	EventPlayerJoined       EventType = "player:joined"
	EventPlayerLeft         EventType = "player:left"
	EventPlayerDisconnected EventType = "player:disconnected"
	EventPlayerReconnected  EventType = "player:reconnected"

	// Game lifecycle events
	EventGameStarted  EventType = "game:started"
	EventGameEnded    EventType = "game:ended"
	EventPhaseChanged EventType = "phase:changed"

	// Room lifecycle events
	EventRoomClosed EventType = "room:closed"
)

// LeaveReason distinguishes why a player left a room
type LeaveReason string

const (
	LeaveReasonManual  LeaveReason = "manual"  // Player asked to leave
	LeaveReasonTimeout LeaveReason = "timeout" // Disconnect grace period expired
)

// PlayerJoinedPayload contains data for player joined events
type PlayerJoinedPayload struct {
	Player Player `json:"player"`
}

// PlayerLeftPayload contains data for player left events
type PlayerLeftPayload struct {
	PlayerID PlayerID    `json:"player_id"`
	Reason   LeaveReason `json:"reason"`
}

// PlayerDisconnectedPayload contains data for player disconnected events
type PlayerDisconnectedPayload struct {
	PlayerID PlayerID `json:"player_id"`
}

// PlayerReconnectedPayload contains data for player reconnected events
type PlayerReconnectedPayload struct {
	PlayerID PlayerID `json:"player_id"`
}

// GameStartedPayload contains data for game started events
type GameStartedPayload struct {
	StartedAt time.Time `json:"started_at"`
}

// GameEndedPayload contains data for game ended events
type GameEndedPayload struct {
	EndedAt time.Time `json:"ended_at"`
}

// Phase changed events carry a PhaseTransition as their payload.

// RoomClosedPayload contains data for room closed events
type RoomClosedPayload struct {
	RoomID RoomID `json:"room_id"`
}
