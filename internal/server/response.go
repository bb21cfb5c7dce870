package server

import (
	"encoding/json"
	"net/http"

	"github.com/mcoot/gameroom-go/model"
	"github.com/mcoot/gameroom-go/room"
)

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// writeNoContent writes a 204 No Content response
func writeNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// RoomResponse is the full view of a room
type RoomResponse struct {
	RoomID model.RoomID     `json:"room_id"`
	Status model.RoomStatus `json:"status"`
	Config model.GameConfig `json:"config"`
	State  *model.GameState `json:"state"`
}

// RoomSummary is the list view of a room
type RoomSummary struct {
	RoomID      model.RoomID     `json:"room_id"`
	Status      model.RoomStatus `json:"status"`
	Phase       model.Phase      `json:"phase"`
	PlayerCount int              `json:"player_count"`
	MaxPlayers  int              `json:"max_players"`
}

// ListRoomsResponse lists all open rooms
type ListRoomsResponse struct {
	Rooms []RoomSummary `json:"rooms"`
}

// JoinRoomResponse returns the joined player alongside the room
type JoinRoomResponse struct {
	Player model.Player `json:"player"`
	Room   RoomResponse `json:"room"`
}

// RoomResponseFromRoom builds the full view of a room
func RoomResponseFromRoom(rm *room.Room) RoomResponse {
	return RoomResponse{
		RoomID: rm.ID(),
		Status: rm.Status(),
		Config: rm.Config(),
		State:  rm.State(),
	}
}

// RoomSummaryFromRoom builds the list view of a room
func RoomSummaryFromRoom(rm *room.Room) RoomSummary {
	state := rm.State()
	return RoomSummary{
		RoomID:      rm.ID(),
		Status:      rm.Status(),
		Phase:       state.Phase,
		PlayerCount: len(state.Players),
		MaxPlayers:  rm.Config().MaxPlayers,
	}
}
