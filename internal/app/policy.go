package app

import (
	"fmt"

	"github.com/dkeye/Colla/internal/core"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	MarkSlow
	KickMember
	DropFrame
)

// ParseBackpressureAction maps the config spelling to an action.
func ParseBackpressureAction(s string) (BackpressureAction, error) {
	switch s {
	case "", "drop":
		return DropFrame, nil
	case "kick":
		return KickMember, nil
	case "none":
		return NoAction, nil
	default:
		return NoAction, fmt.Errorf("unknown backpressure action %q", s)
	}
}

// Policy decides what happens to a recipient whose send queue is full.
type Policy interface {
	OnBackPressure(sid core.SessionID) BackpressureAction
}

type SimplePolicy struct {
	Action BackpressureAction
}

func (p SimplePolicy) OnBackPressure(core.SessionID) BackpressureAction {
	return p.Action
}
