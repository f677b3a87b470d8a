package domain

import "time"

// RoomKey is an opaque caller-chosen room identifier.
type RoomKey string

// File is one named document of a room. Name is the natural key.
type File struct {
	Name     string `json:"name" binding:"required"`
	Language string `json:"language"`
	Content  string `json:"content"`
}

// ChatMessage is one transcript entry. Seq is the arrival order inside the room.
type ChatMessage struct {
	Author    string    `json:"username"`
	Text      string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Seq       uint64    `json:"seq"`
}

// CloneFiles copies a file list so callers never share the room's backing array.
func CloneFiles(files []File) []File {
	if files == nil {
		return []File{}
	}
	out := make([]File, len(files))
	copy(out, files)
	return out
}
