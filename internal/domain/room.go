package domain

import (
	"errors"
	"strings"
)

var ErrRoomNotFound = errors.New("room not found")

// Room is a pre-configured community chat channel. Rooms are defined at
// deploy time and never created or destroyed at runtime.
type Room struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"`
}

// rooms is the static registry: Indian cities with recurring dengue
// outbreaks, plus a catch-all channel.
var rooms = []Room{
	{ID: "patna", Name: "Patna", State: "Bihar"},
	{ID: "delhi", Name: "Delhi", State: "Delhi NCR"},
	{ID: "mumbai", Name: "Mumbai", State: "Maharashtra"},
	{ID: "chennai", Name: "Chennai", State: "Tamil Nadu"},
	{ID: "kolkata", Name: "Kolkata", State: "West Bengal"},
	{ID: "bangalore", Name: "Bengaluru", State: "Karnataka"},
	{ID: "hyderabad", Name: "Hyderabad", State: "Telangana"},
	{ID: "lucknow", Name: "Lucknow", State: "Uttar Pradesh"},
	{ID: "ahmedabad", Name: "Ahmedabad", State: "Gujarat"},
	{ID: "pune", Name: "Pune", State: "Maharashtra"},
	{ID: "jaipur", Name: "Jaipur", State: "Rajasthan"},
	{ID: "coimbatore", Name: "Coimbatore", State: "Tamil Nadu"},
	{ID: "general", Name: "General", State: "All India"},
}

// ListRooms returns the configured rooms in registry order.
func ListRooms() []Room {
	out := make([]Room, len(rooms))
	copy(out, rooms)
	return out
}

// GetRoom looks up a room by id (case-insensitive).
func GetRoom(id string) (Room, error) {
	id = strings.ToLower(id)
	for _, r := range rooms {
		if r.ID == id {
			return r, nil
		}
	}
	return Room{}, ErrRoomNotFound
}

// IsValidRoom reports whether the id belongs to the registry.
func IsValidRoom(id string) bool {
	_, err := GetRoom(id)
	return err == nil
}
