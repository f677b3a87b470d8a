package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/Colla/internal/domain"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type memRoom struct {
	createdAt time.Time
	members   []string
}

// Memory keeps everything in process. Used in development and tests.
type Memory struct {
	mu     sync.RWMutex
	users  map[string]User // by id
	byName map[string]string
	rooms  map[domain.RoomKey]*memRoom
	files  map[domain.RoomKey][]domain.File
	now    func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		users:  make(map[string]User),
		byName: make(map[string]string),
		rooms:  make(map[domain.RoomKey]*memRoom),
		files:  make(map[domain.RoomKey][]domain.File),
		now:    time.Now,
	}
}

func (m *Memory) Close() {}

func (m *Memory) CreateUser(_ context.Context, username, passwordHash string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[username]; ok {
		return User{}, fmt.Errorf("user %q: %w", username, ErrConflict)
	}
	u := User{ID: uuid.NewString(), Username: username, PasswordHash: passwordHash, CreatedAt: m.now().UTC()}
	m.users[u.ID] = u
	m.byName[username] = u.ID
	return u, nil
}

func (m *Memory) UserByName(_ context.Context, username string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byName[username]
	if !ok {
		return User{}, ErrNotFound
	}
	return m.users[id], nil
}

func (m *Memory) UserByID(_ context.Context, id string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) RoomsOf(_ context.Context, userID string) ([]Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Room{}
	for key, r := range m.rooms {
		if lo.Contains(r.members, userID) {
			out = append(out, m.snapshot(key, r))
		}
	}
	slices.SortFunc(out, func(a, b Room) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), strings.Compare(string(a.Key), string(b.Key)))
	})
	return out, nil
}

func (m *Memory) JoinRoom(_ context.Context, key domain.RoomKey, userID string) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[key]
	if !ok {
		r = &memRoom{createdAt: m.now().UTC()}
		m.rooms[key] = r
	}
	if !lo.Contains(r.members, userID) {
		r.members = append(r.members, userID)
	}
	return m.snapshot(key, r), nil
}

func (m *Memory) LeaveRoom(_ context.Context, key domain.RoomKey, userID string) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[key]
	if !ok {
		return Room{}, fmt.Errorf("room %q: %w", key, ErrNotFound)
	}
	r.members = lo.Without(r.members, userID)
	return m.snapshot(key, r), nil
}

func (m *Memory) snapshot(key domain.RoomKey, r *memRoom) Room {
	members := slices.Clone(r.members)
	if members == nil {
		members = []string{}
	}
	return Room{Key: key, Members: members, CreatedAt: r.createdAt}
}

func (m *Memory) ListFiles(_ context.Context, key domain.RoomKey) ([]domain.File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return domain.CloneFiles(m.files[key]), nil
}

func (m *Memory) SaveFiles(_ context.Context, key domain.RoomKey, files []domain.File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	saved := m.files[key]
	for _, f := range files {
		if i := slices.IndexFunc(saved, func(s domain.File) bool { return s.Name == f.Name }); i >= 0 {
			saved[i] = f
			continue
		}
		saved = append(saved, f)
	}
	m.files[key] = saved
	return nil
}
