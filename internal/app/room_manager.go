package app

import (
	"slices"
	"strings"
	"sync"

	"github.com/dkeye/Colla/internal/core"
	"github.com/dkeye/Colla/internal/domain"
	"github.com/rs/zerolog/log"
)

// RoomManagerImpl keeps rooms for the life of the process. Its lock only
// guards the key lookup; room state has a lock of its own.
type RoomManagerImpl struct {
	mu    sync.RWMutex
	rooms map[domain.RoomKey]core.RoomService
}

func NewRoomManager() *RoomManagerImpl {
	return &RoomManagerImpl{rooms: make(map[domain.RoomKey]core.RoomService)}
}

func (f *RoomManagerImpl) GetOrCreate(key domain.RoomKey) core.RoomService {
	f.mu.RLock()
	room, ok := f.rooms[key]
	f.mu.RUnlock()
	if ok {
		return room
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if room, ok = f.rooms[key]; ok {
		return room
	}
	room = core.NewRoomService(key)
	f.rooms[key] = room
	log.Info().Str("module", "app.rooms").Str("room", string(key)).Msg("room created")
	return room
}

func (f *RoomManagerImpl) Get(key domain.RoomKey) (core.RoomService, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	room, ok := f.rooms[key]
	return room, ok
}

func (f *RoomManagerImpl) List() []core.RoomInfo {
	f.mu.RLock()
	rooms := make([]core.RoomService, 0, len(f.rooms))
	for _, r := range f.rooms {
		rooms = append(rooms, r)
	}
	f.mu.RUnlock()

	out := make([]core.RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.Info())
	}
	slices.SortFunc(out, func(a, b core.RoomInfo) int {
		return strings.Compare(string(a.Key), string(b.Key))
	})
	return out
}
