// models/gorm_models.go
package models

import "time"

// GormRoom is the rooms table row. Timestamps are unix milliseconds so the
// GORM and database/sql stores share one schema.
type GormRoom struct {
	ID         uint   `gorm:"primaryKey"`
	RoomID     string `gorm:"uniqueIndex;not null"`
	Mode       string `gorm:"not null"`
	CreatedAt  int64  `gorm:"autoCreateTime:milli"`
	LastSeenAt int64  `gorm:"not null;default:0"`
}

func (GormRoom) TableName() string { return "rooms" }

// Info converts a row to its API form.
func (r GormRoom) Info() RoomInfo {
	return RoomInfo{
		RoomID:     r.RoomID,
		Mode:       r.Mode,
		CreatedAt:  time.UnixMilli(r.CreatedAt),
		LastSeenAt: time.UnixMilli(r.LastSeenAt),
	}
}
