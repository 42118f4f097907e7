// services/room_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wfunc/blockroom/logger"
	"github.com/wfunc/blockroom/models"
	"github.com/wfunc/blockroom/persistence"
)

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrInvalidRoomID = errors.New("invalid room id")
)

const maxRoomIDLength = 128

// RoomService creates and resolves room ids against the directory.
type RoomService struct {
	dir               persistence.Directory
	mode              string
	requireRegistered bool
	newID             func() string
}

// NewRoomService returns a service that registers rooms in dir with the given
// mode. When requireRegistered is set, Resolve refuses ids that were never
// created through Create.
func NewRoomService(dir persistence.Directory, mode string, requireRegistered bool) *RoomService {
	return &RoomService{
		dir:               dir,
		mode:              mode,
		requireRegistered: requireRegistered,
		newID:             uuid.NewString,
	}
}

// Create registers a fresh room under a random id.
func (s *RoomService) Create(ctx context.Context) (models.RoomInfo, error) {
	for attempt := 0; attempt < 3; attempt++ {
		info, err := s.dir.CreateRoom(ctx, s.newID(), s.mode)
		if errors.Is(err, persistence.ErrDuplicateRoom) {
			continue
		}
		if err != nil {
			return models.RoomInfo{}, fmt.Errorf("create room: %w", err)
		}
		logger.Log.Infof("room %s registered (%s)", info.RoomID, info.Mode)
		return info, nil
	}
	return models.RoomInfo{}, fmt.Errorf("create room: %w", persistence.ErrDuplicateRoom)
}

// Resolve looks up roomID, registering it on first use unless registration
// is required.
func (s *RoomService) Resolve(ctx context.Context, roomID string) (models.RoomInfo, error) {
	if roomID == "" || len(roomID) > maxRoomIDLength {
		return models.RoomInfo{}, ErrInvalidRoomID
	}

	info, err := s.dir.FindRoom(ctx, roomID)
	if err == nil {
		return info, nil
	}
	if !errors.Is(err, persistence.ErrRecordNotFound) {
		return models.RoomInfo{}, fmt.Errorf("find room %s: %w", roomID, err)
	}
	if s.requireRegistered {
		return models.RoomInfo{}, fmt.Errorf("%s: %w", roomID, ErrRoomNotFound)
	}

	info, err = s.dir.CreateRoom(ctx, roomID, s.mode)
	if errors.Is(err, persistence.ErrDuplicateRoom) {
		// lost a race with another resolver
		return s.dir.FindRoom(ctx, roomID)
	}
	if err != nil {
		return models.RoomInfo{}, fmt.Errorf("register room %s: %w", roomID, err)
	}
	return info, nil
}

// Lookup finds a registered room without registering it.
func (s *RoomService) Lookup(ctx context.Context, roomID string) (models.RoomInfo, error) {
	info, err := s.dir.FindRoom(ctx, roomID)
	if errors.Is(err, persistence.ErrRecordNotFound) {
		return models.RoomInfo{}, fmt.Errorf("%s: %w", roomID, ErrRoomNotFound)
	}
	return info, err
}

// Touch records that roomID was in use at the given time. Failures are only
// logged.
func (s *RoomService) Touch(ctx context.Context, roomID string, at time.Time) {
	if err := s.dir.TouchRoom(ctx, roomID, at); err != nil {
		logger.Log.Warnf("touch room %s: %v", roomID, err)
	}
}

func (s *RoomService) List(ctx context.Context, limit int) ([]models.RoomInfo, error) {
	return s.dir.ListRooms(ctx, limit)
}
