// Package store persists user accounts, room membership records and saved
// files. It is only reached from the HTTP surface, never from realtime
// event handling.
package store

//go:generate mockgen -source=store.go -destination=../mocks/mock_store.go -package=mocks

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/Colla/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

type Room struct {
	Key       domain.RoomKey `json:"roomId"`
	Members   []string       `json:"members"`
	CreatedAt time.Time      `json:"createdAt"`
}

type Store interface {
	// CreateUser fails with ErrConflict when the username is taken.
	CreateUser(ctx context.Context, username, passwordHash string) (User, error)
	UserByName(ctx context.Context, username string) (User, error)
	UserByID(ctx context.Context, id string) (User, error)

	RoomsOf(ctx context.Context, userID string) ([]Room, error)
	// JoinRoom creates the room record on first use and adds userID to it.
	JoinRoom(ctx context.Context, key domain.RoomKey, userID string) (Room, error)
	// LeaveRoom fails with ErrNotFound for an unknown room.
	LeaveRoom(ctx context.Context, key domain.RoomKey, userID string) (Room, error)

	ListFiles(ctx context.Context, key domain.RoomKey) ([]domain.File, error)
	// SaveFiles upserts files by name.
	SaveFiles(ctx context.Context, key domain.RoomKey, files []domain.File) error

	Close()
}
