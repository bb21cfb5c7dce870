// Package validate holds the precondition checks for room operations. Every
// check is a pure function over the current state and config: it returns nil
// when the operation may proceed, or an *Error describing exactly why not.
// Checks never mutate anything and never look outside their arguments, so the
// orchestrator's predicates (can a player join, can the game start) are the
// same code path as its enforcement.
package validate

import (
	"fmt"

	"github.com/mcoot/gameroom-go/model"
)

// Code is a machine-readable validation failure code
type Code string

const (
	CodePlayerAlreadyJoined Code = "PLAYER_ALREADY_JOINED"
	CodeGameFull            Code = "GAME_FULL"
	CodeGameInProgress      Code = "GAME_IN_PROGRESS"
	CodeGameAlreadyStarted  Code = "GAME_ALREADY_STARTED"
	CodeNotEnoughPlayers    Code = "NOT_ENOUGH_PLAYERS"
	CodeInvalidPhase        Code = "INVALID_PHASE"
	CodeSamePhase           Code = "SAME_PHASE"
	CodeInvalidCurrentPhase Code = "INVALID_CURRENT_PHASE"
	CodePlayerNotFound      Code = "PLAYER_NOT_FOUND"
	CodeGameAlreadyEnded    Code = "GAME_ALREADY_ENDED"
	CodeGameNotStarted      Code = "GAME_NOT_STARTED"
)

// Error is a structured validation failure
type Error struct {
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	return e.Message
}

// Join checks whether the player with the given id may join
func Join(state *model.GameState, cfg model.GameConfig, id model.PlayerID) *Error {
	// The duplicate check runs first so a rejoining player always sees
	// PLAYER_ALREADY_JOINED, even in a full or running game
	for _, p := range state.Players {
		if p.ID == id {
			return &Error{
				Code:    CodePlayerAlreadyJoined,
				Message: fmt.Sprintf("Player %s has already joined", id),
				Details: map[string]any{"player_id": id},
			}
		}
	}
	return JoinCapacity(state, cfg)
}

// JoinCapacity checks the id-independent join preconditions: room capacity
// and whether the game has already begun
func JoinCapacity(state *model.GameState, cfg model.GameConfig) *Error {
	if len(state.Players) >= cfg.MaxPlayers {
		return &Error{
			Code:    CodeGameFull,
			Message: fmt.Sprintf("Game is full (max %d players)", cfg.MaxPlayers),
			Details: map[string]any{"max_players": cfg.MaxPlayers},
		}
	}
	if state.StartedAt != nil && !cfg.AllowJoinInProgress {
		return &Error{
			Code:    CodeGameInProgress,
			Message: "Game is already in progress",
		}
	}
	return nil
}

// Start checks whether the game may start
func Start(state *model.GameState, cfg model.GameConfig) *Error {
	if state.StartedAt != nil {
		return &Error{
			Code:    CodeGameAlreadyStarted,
			Message: "Game has already started",
		}
	}
	if len(state.Players) < cfg.MinPlayers {
		return &Error{
			Code:    CodeNotEnoughPlayers,
			Message: fmt.Sprintf("Need at least %d players to start (have %d)", cfg.MinPlayers, len(state.Players)),
			Details: map[string]any{"min_players": cfg.MinPlayers, "current_players": len(state.Players)},
		}
	}
	return nil
}

// PhaseTransition checks whether the game may move to the target phase.
// Backward moves and forward skips are both allowed; the only structural
// requirements are that the target is a configured phase different from the
// current one, and that the current phase itself is still configured.
func PhaseTransition(state *model.GameState, cfg model.GameConfig, to model.Phase) *Error {
	if !cfg.HasPhase(to) {
		return &Error{
			Code:    CodeInvalidPhase,
			Message: fmt.Sprintf("Phase %q is not a configured phase", to),
			Details: map[string]any{"phase": to, "valid_phases": cfg.Phases},
		}
	}
	if to == state.Phase {
		return &Error{
			Code:    CodeSamePhase,
			Message: fmt.Sprintf("Game is already in phase %q", to),
			Details: map[string]any{"phase": to},
		}
	}
	if !cfg.HasPhase(state.Phase) {
		return &Error{
			Code:    CodeInvalidCurrentPhase,
			Message: fmt.Sprintf("Current phase %q is not a configured phase", state.Phase),
			Details: map[string]any{"phase": state.Phase, "valid_phases": cfg.Phases},
		}
	}
	return nil
}

// PlayerExists checks that the player with the given id is in the room
func PlayerExists(state *model.GameState, id model.PlayerID) *Error {
	for _, p := range state.Players {
		if p.ID == id {
			return nil
		}
	}
	return &Error{
		Code:    CodePlayerNotFound,
		Message: fmt.Sprintf("Player %s not found", id),
		Details: map[string]any{"player_id": id},
	}
}

// End checks whether the game may end
func End(state *model.GameState) *Error {
	if state.EndedAt != nil {
		return &Error{
			Code:    CodeGameAlreadyEnded,
			Message: "Game has already ended",
		}
	}
	if state.StartedAt == nil {
		return &Error{
			Code:    CodeGameNotStarted,
			Message: "Game has not started",
		}
	}
	return nil
}
