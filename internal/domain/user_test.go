package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeUsername(t *testing.T) {
	req := require.New(t)

	name, err := NormalizeUsername("  bob ")
	req.NoError(err)
	req.Equal("bob", name)

	_, err = NormalizeUsername("   ")
	req.ErrorIs(err, ErrUsernameEmpty)

	_, err = NormalizeUsername(strings.Repeat("x", MaxUsernameLen+1))
	req.ErrorIs(err, ErrUsernameTooLong)
}

func TestDisplayName(t *testing.T) {
	req := require.New(t)
	long := strings.Repeat("x", MaxUsernameLen+4)

	req.Equal("bob", DisplayName("  bob "))
	req.Equal(long, DisplayName(long))
	req.Equal("  ", DisplayName("  "))
}

func TestLeftRoomText(t *testing.T) {
	require.Equal(t, "bob has left the room.", LeftRoomText("bob"))
}

func TestCloneFiles_DoesNotShareBackingArray(t *testing.T) {
	req := require.New(t)
	src := []File{{Name: "main.go", Content: "a"}}

	dst := CloneFiles(src)
	dst[0].Content = "b"

	req.Equal("a", src[0].Content)
	req.NotNil(CloneFiles(nil))
}
