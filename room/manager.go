// room/manager.go
package room

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wfunc/blockroom/logger"
)

type managedRoom struct {
	room      *Room
	cancel    context.CancelFunc
	leases    int
	idleSince time.Time
}

// Manager owns the live room actors of the process. A room is created on first
// Acquire and kept while it has leases; idle rooms are evicted by Sweep.
type Manager struct {
	rooms       map[string]*managedRoom
	mutex       sync.RWMutex
	ctx         context.Context
	opts        Options
	idleTimeout time.Duration
	wg          sync.WaitGroup
}

// NewRoomManager creates a manager whose rooms run until ctx is cancelled or
// they are evicted. opts is applied to every room it creates.
func NewRoomManager(ctx context.Context, opts Options, idleTimeout time.Duration) *Manager {
	return &Manager{
		rooms:       make(map[string]*managedRoom),
		ctx:         ctx,
		opts:        opts.withDefaults(),
		idleTimeout: idleTimeout,
	}
}

// Acquire returns the room for id, starting it if needed, and takes a lease
// that keeps it from being evicted. Every Acquire must be paired with Release.
func (m *Manager) Acquire(id string) *Room {
	return m.AcquireMode(id, "")
}

// AcquireMode is Acquire for a room registered with its own mode. The mode
// only applies when the room is started; an unknown or empty mode falls back
// to the manager's default.
func (m *Manager) AcquireMode(id string, mode Mode) *Room {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	mr, exists := m.rooms[id]
	if !exists {
		opts := m.opts
		if mode == ModePuzzle || mode == ModeFree {
			opts.Mode = mode
		}
		ctx, cancel := context.WithCancel(m.ctx)
		mr = &managedRoom{room: New(id, opts), cancel: cancel}
		m.rooms[id] = mr

		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			mr.room.Run(ctx)
		}()
		m.opts.Recorder.RoomsChanged(len(m.rooms))
		logger.Log.Infof("room %s started", id)
	}
	mr.leases++
	return mr.room
}

// Release gives back a lease taken by Acquire.
func (m *Manager) Release(id string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if mr, exists := m.rooms[id]; exists && mr.leases > 0 {
		mr.leases--
		if mr.leases == 0 {
			mr.idleSince = m.opts.Clock.Now()
		}
	}
}

// GetRoom returns a running room without taking a lease.
func (m *Manager) GetRoom(id string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	mr, exists := m.rooms[id]
	if !exists {
		return nil, false
	}
	return mr.room, true
}

// List returns the ids of all running rooms, sorted.
func (m *Manager) List() []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	ids := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}

// Sweep stops rooms that have had no leases for at least the idle timeout and
// returns how many it stopped.
func (m *Manager) Sweep() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	now := m.opts.Clock.Now()
	evicted := 0
	for id, mr := range m.rooms {
		if mr.leases > 0 || now.Sub(mr.idleSince) < m.idleTimeout {
			continue
		}
		mr.cancel()
		delete(m.rooms, id)
		evicted++
		logger.Log.Infof("room %s evicted after %v idle", id, now.Sub(mr.idleSince))
	}
	if evicted > 0 {
		m.opts.Recorder.RoomsChanged(len(m.rooms))
	}
	return evicted
}

// RunSweeper calls Sweep every interval until ctx is cancelled. A
// non-positive interval disables eviction.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Shutdown stops every room and waits for their loops to exit.
func (m *Manager) Shutdown() {
	m.mutex.Lock()
	for id, mr := range m.rooms {
		mr.cancel()
		delete(m.rooms, id)
	}
	m.opts.Recorder.RoomsChanged(0)
	m.mutex.Unlock()

	m.wg.Wait()
}
