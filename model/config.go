package model

import (
	"fmt"
	"time"
)

// DefaultDisconnectTimeout is the grace period before a disconnected player
// is removed from the room
const DefaultDisconnectTimeout = 30 * time.Second

// GameConfig holds the immutable policy for a room. Supplied at room
// creation and read-only thereafter.
type GameConfig struct {
	MinPlayers          int           `json:"min_players"`
	MaxPlayers          int           `json:"max_players"`
	Phases              []Phase       `json:"phases"`
	AllowJoinInProgress bool          `json:"allow_join_in_progress"`
	DisconnectTimeout   time.Duration `json:"disconnect_timeout"`
}

// WithDefaults returns a copy of the config with zero values replaced by
// defaults
func (c GameConfig) WithDefaults() GameConfig {
	if c.DisconnectTimeout == 0 {
		c.DisconnectTimeout = DefaultDisconnectTimeout
	}
	return c
}

// Validate checks that the config describes a playable room
func (c GameConfig) Validate() error {
	if c.MinPlayers < 1 {
		return fmt.Errorf("%w: min players must be at least 1", ErrInvalidConfig)
	}
	if c.MaxPlayers < c.MinPlayers {
		return fmt.Errorf("%w: max players (%d) below min players (%d)", ErrInvalidConfig, c.MaxPlayers, c.MinPlayers)
	}
	if len(c.Phases) == 0 {
		return fmt.Errorf("%w: at least one phase is required", ErrInvalidConfig)
	}
	seen := make(map[Phase]struct{}, len(c.Phases))
	for _, p := range c.Phases {
		if p == "" {
			return fmt.Errorf("%w: empty phase name", ErrInvalidConfig)
		}
		if _, ok := seen[p]; ok {
			return fmt.Errorf("%w: duplicate phase %q", ErrInvalidConfig, p)
		}
		seen[p] = struct{}{}
	}
	if c.DisconnectTimeout < 0 {
		return fmt.Errorf("%w: negative disconnect timeout", ErrInvalidConfig)
	}
	return nil
}

// HasPhase reports whether p is one of the configured phases
func (c GameConfig) HasPhase(p Phase) bool {
	for _, phase := range c.Phases {
		if phase == p {
			return true
		}
	}
	return false
}
