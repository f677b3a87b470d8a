package orch

import (
	"encoding/json"

	"github.com/dkeye/Colla/internal/domain"
)

// Inbound event types.
const (
	TypeRegister      = "register"
	TypeJoinVideo     = "join-video"
	TypeLeaveVideo    = "leave-video"
	TypeVideoOffer    = "video-offer"
	TypeVideoAnswer   = "video-answer"
	TypeICECandidate  = "ice-candidate"
	TypeJoinRoom      = "join-room"
	TypeLeaveRoom     = "leave-room"
	TypeFilesUpdate   = "files-update"
	TypeCodeChange    = "code-change"
	TypeSendMessage   = "send-message"
	TypeGetMessages   = "get-messages"
	TypeExplicitLeave = "explicit-leave"
	TypePing          = "ping"
)

type RegisterEvent struct {
	Username string `json:"username" validate:"required"`
}

type VideoPresenceEvent struct {
	RoomID domain.RoomKey       `json:"roomId" validate:"required"`
	UserID domain.ParticipantID `json:"userId" validate:"required"`
}

type SessionDescriptionEvent struct {
	Target domain.ParticipantID `json:"target" validate:"required"`
	Caller domain.ParticipantID `json:"caller" validate:"required"`
	SDP    json.RawMessage      `json:"sdp" validate:"required"`
}

type CandidateEvent struct {
	Target    domain.ParticipantID `json:"target" validate:"required"`
	From      domain.ParticipantID `json:"from" validate:"required"`
	Candidate json.RawMessage      `json:"candidate" validate:"required"`
}

type RoomEvent struct {
	RoomID domain.RoomKey `json:"roomId" validate:"required"`
}

type FilesUpdateEvent struct {
	RoomID domain.RoomKey `json:"roomId" validate:"required"`
	Files  []domain.File  `json:"files" validate:"required"`
}

// CodeChangeEvent carries the full new content of one file. Empty code is a
// valid edit.
type CodeChangeEvent struct {
	RoomID   domain.RoomKey `json:"roomId" validate:"required"`
	FileName string         `json:"fileName" validate:"required"`
	Code     string         `json:"code"`
}

// SendMessageEvent falls back to the registered name when Username is empty.
type SendMessageEvent struct {
	RoomID   domain.RoomKey `json:"roomId" validate:"required"`
	Message  string         `json:"message" validate:"required"`
	Username string         `json:"username"`
}

type ExplicitLeaveEvent struct {
	RoomID   domain.RoomKey `json:"roomId" validate:"required"`
	Username string         `json:"username" validate:"required"`
}

type PingEvent struct{}
