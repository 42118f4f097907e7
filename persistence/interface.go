// persistence/interface.go
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/wfunc/blockroom/models"
)

// Directory records which rooms exist. It is consulted before a connection is
// handed to a room and is never touched from a room's own goroutine.
type Directory interface {
	CreateRoom(ctx context.Context, roomID, mode string) (models.RoomInfo, error)
	FindRoom(ctx context.Context, roomID string) (models.RoomInfo, error)
	TouchRoom(ctx context.Context, roomID string, at time.Time) error
	ListRooms(ctx context.Context, limit int) ([]models.RoomInfo, error)
	Close() error
}

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicateRoom  = errors.New("room already exists")
)

// defaultListLimit caps ListRooms when the caller passes limit <= 0.
const defaultListLimit = 100

func listLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}
