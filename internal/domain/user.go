// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
)

const (
	MaxUsernameLen = 36
	// SystemAuthor signs chat messages produced by the server itself.
	SystemAuthor = "System"
)

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
)

// ParticipantID is the client-chosen id a peer uses for video signaling.
type ParticipantID string

// NormalizeUsername trims an account name and checks its bounds.
// Names are not unique, any two handles may carry the same one.
func NormalizeUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	if len(username) == 0 {
		return "", ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return "", ErrUsernameTooLong
	}
	return username, nil
}

// DisplayName is the name a live connection goes by. Surrounding blanks are
// trimmed; a name made only of blanks is kept as sent. There is no length
// bound, that applies to accounts only.
func DisplayName(username string) string {
	if trimmed := strings.TrimSpace(username); trimmed != "" {
		return trimmed
	}
	return username
}

// LeftRoomText is the body of the system message sent when someone leaves.
func LeftRoomText(username string) string {
	return username + " has left the room."
}
