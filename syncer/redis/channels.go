package redis

import (
	"fmt"

	"github.com/mcoot/gameroom-go/model"
)

// Channel generation functions

// roomChannel returns the pub/sub channel carrying a room's broadcasts
func roomChannel(prefix string, id model.RoomID) string {
	return fmt.Sprintf("%s:room:%s", prefix, id)
}

// playerChannel returns the pub/sub channel carrying snapshots addressed to
// one player of a room
func playerChannel(prefix string, id model.RoomID, playerID model.PlayerID) string {
	return fmt.Sprintf("%s:room:%s:player:%s", prefix, id, playerID)
}
