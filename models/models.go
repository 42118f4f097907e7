// models/models.go
package models

import "time"

// RoomInfo is a room directory entry as served by the HTTP API.
type RoomInfo struct {
	RoomID     string    `json:"roomId"`
	Mode       string    `json:"mode"`
	CreatedAt  time.Time `json:"createdAt"`
	LastSeenAt time.Time `json:"lastSeenAt"`
}

// RoomSummary is what the admin RPC reports for a live room.
type RoomSummary struct {
	RoomID  string
	Mode    string
	Status  string
	Players int
	Version uint64
	Score   int
}
