package app

import (
	"encoding/json"
	"time"

	"github.com/dkeye/Colla/internal/domain"
)

// Outbound event types.
const (
	TypeFilesUpdate     = "files-update"
	TypeCodeChange      = "code-change"
	TypeReceiveMessage  = "receive-message"
	TypeMessages        = "messages"
	TypeUserJoinedVideo = "user-joined-video"
	TypeUserLeftVideo   = "user-left-video"
	TypeVideoOffer      = "video-offer"
	TypeVideoAnswer     = "video-answer"
	TypeICECandidate    = "ice-candidate"
	TypePong            = "pong"
)

type FilesUpdateMsg struct {
	Type   string         `json:"type"`
	RoomID domain.RoomKey `json:"roomId"`
	Files  []domain.File  `json:"files"`
}

type CodeChangeMsg struct {
	Type     string         `json:"type"`
	RoomID   domain.RoomKey `json:"roomId"`
	FileName string         `json:"fileName"`
	Code     string         `json:"code"`
}

type ReceiveMessageMsg struct {
	Type      string         `json:"type"`
	RoomID    domain.RoomKey `json:"roomId"`
	Username  string         `json:"username"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Seq       uint64         `json:"seq"`
}

type MessagesMsg struct {
	Type     string               `json:"type"`
	RoomID   domain.RoomKey       `json:"roomId"`
	Messages []domain.ChatMessage `json:"messages"`
}

type VideoPeerMsg struct {
	Type   string               `json:"type"`
	RoomID domain.RoomKey       `json:"roomId"`
	PeerID domain.ParticipantID `json:"peerId"`
}

// SessionDescriptionMsg carries an offer or answer. SDP is opaque.
type SessionDescriptionMsg struct {
	Type   string               `json:"type"`
	Caller domain.ParticipantID `json:"caller"`
	SDP    json.RawMessage      `json:"sdp"`
}

// CandidateMsg carries one ICE candidate. Candidate is opaque.
type CandidateMsg struct {
	Type      string               `json:"type"`
	From      domain.ParticipantID `json:"from"`
	Candidate json.RawMessage      `json:"candidate"`
}

type PongMsg struct {
	Type string `json:"type"`
}

func NewFilesUpdate(key domain.RoomKey, files []domain.File) FilesUpdateMsg {
	return FilesUpdateMsg{Type: TypeFilesUpdate, RoomID: key, Files: domain.CloneFiles(files)}
}

func NewCodeChange(key domain.RoomKey, fileName, code string) CodeChangeMsg {
	return CodeChangeMsg{Type: TypeCodeChange, RoomID: key, FileName: fileName, Code: code}
}

func NewReceiveMessage(key domain.RoomKey, m domain.ChatMessage) ReceiveMessageMsg {
	return ReceiveMessageMsg{
		Type:      TypeReceiveMessage,
		RoomID:    key,
		Username:  m.Author,
		Message:   m.Text,
		Timestamp: m.Timestamp,
		Seq:       m.Seq,
	}
}

func NewMessages(key domain.RoomKey, ms []domain.ChatMessage) MessagesMsg {
	if ms == nil {
		ms = []domain.ChatMessage{}
	}
	return MessagesMsg{Type: TypeMessages, RoomID: key, Messages: ms}
}

func NewVideoPeer(kind string, key domain.RoomKey, pid domain.ParticipantID) VideoPeerMsg {
	return VideoPeerMsg{Type: kind, RoomID: key, PeerID: pid}
}
