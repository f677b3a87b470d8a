package core

import (
	"github.com/dkeye/Colla/internal/domain"
)

// RoomTx is the mutable view of a room handed out under its lock.
// It must not escape the Exec callback that received it.
type RoomTx interface {
	Key() domain.RoomKey

	Join(sid SessionID) []domain.File
	Leave(sid SessionID) bool
	IsMember(sid SessionID) bool
	Members() []SessionID

	SetFiles(files []domain.File)
	PatchFile(name, content string) bool
	Files() []domain.File

	AppendMessage(author, text string) domain.ChatMessage
	Transcript() []domain.ChatMessage

	// JoinVideo binds pid to sid and returns the handles of the other video peers.
	JoinVideo(pid domain.ParticipantID, sid SessionID) []SessionID
	// LeaveVideo drops pid and returns the handles of the remaining video peers.
	LeaveVideo(pid domain.ParticipantID) (remaining []SessionID, ok bool)
	// VideoParticipantsOf lists every pid currently routed to sid.
	VideoParticipantsOf(sid SessionID) []domain.ParticipantID
	VideoPeers() map[domain.ParticipantID]SessionID
}

// RoomService is the core-facing API of a room.
// It owns files, transcript, members and the video map, and never touches
// transport resources.
type RoomService interface {
	Key() domain.RoomKey
	// Exec runs fn as the single writer of the room.
	Exec(fn func(tx RoomTx))

	Join(sid SessionID) []domain.File
	Leave(sid SessionID) bool
	SetFiles(files []domain.File)
	PatchFile(name, content string) bool
	AppendMessage(author, text string) domain.ChatMessage

	Files() []domain.File
	Transcript() []domain.ChatMessage
	Members() []SessionID
	MemberCount() int
	Info() RoomInfo
	VideoPeers() map[domain.ParticipantID]SessionID
}

type RoomInfo struct {
	Key         domain.RoomKey `json:"roomId"`
	MemberCount int            `json:"memberCount"`
	VideoCount  int            `json:"videoCount"`
	FileCount   int            `json:"fileCount"`
}

// RoomManager hands out rooms by key, creating them on first reference.
type RoomManager interface {
	GetOrCreate(key domain.RoomKey) RoomService
	Get(key domain.RoomKey) (RoomService, bool)
	List() []RoomInfo
}
