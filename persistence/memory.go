// persistence/memory.go
package persistence

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wfunc/blockroom/models"
)

// MemoryDirectory keeps the directory in process memory. It is the default
// store and the one used by tests.
type MemoryDirectory struct {
	rooms map[string]models.RoomInfo
	now   func() time.Time
	mutex sync.RWMutex
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		rooms: make(map[string]models.RoomInfo),
		now:   time.Now,
	}
}

func (m *MemoryDirectory) CreateRoom(_ context.Context, roomID, mode string) (models.RoomInfo, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.rooms[roomID]; exists {
		return models.RoomInfo{}, fmt.Errorf("create room %s: %w", roomID, ErrDuplicateRoom)
	}
	now := time.UnixMilli(m.now().UnixMilli())
	info := models.RoomInfo{RoomID: roomID, Mode: mode, CreatedAt: now, LastSeenAt: now}
	m.rooms[roomID] = info
	return info, nil
}

func (m *MemoryDirectory) FindRoom(_ context.Context, roomID string) (models.RoomInfo, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	info, exists := m.rooms[roomID]
	if !exists {
		return models.RoomInfo{}, ErrRecordNotFound
	}
	return info, nil
}

func (m *MemoryDirectory) TouchRoom(_ context.Context, roomID string, at time.Time) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	info, exists := m.rooms[roomID]
	if !exists {
		return ErrRecordNotFound
	}
	info.LastSeenAt = time.UnixMilli(at.UnixMilli())
	m.rooms[roomID] = info
	return nil
}

// ListRooms returns the most recently seen rooms first.
func (m *MemoryDirectory) ListRooms(_ context.Context, limit int) ([]models.RoomInfo, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	list := make([]models.RoomInfo, 0, len(m.rooms))
	for _, info := range m.rooms {
		list = append(list, info)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].LastSeenAt.Equal(list[j].LastSeenAt) {
			return list[i].RoomID < list[j].RoomID
		}
		return list[i].LastSeenAt.After(list[j].LastSeenAt)
	})
	if n := listLimit(limit); len(list) > n {
		list = list[:n]
	}
	return list, nil
}

func (m *MemoryDirectory) Close() error { return nil }
