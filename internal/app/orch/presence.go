package orch

import (
	"github.com/dkeye/Colla/internal/app"
	"github.com/dkeye/Colla/internal/core"
	"github.com/dkeye/Colla/internal/domain"
	"github.com/rs/zerolog/log"
)

// JoinVideo routes pid to sid inside the room and tells the other video
// peers about the newcomer. The room also counts as joined by sid, so a
// disconnect cleans it up.
func (o *Orchestrator) JoinVideo(key domain.RoomKey, pid domain.ParticipantID, sid core.SessionID) {
	room := o.Rooms.GetOrCreate(key)
	o.Dispatcher.Apply(room, func(tx core.RoomTx) []app.Delivery {
		o.Registry.BindParticipant(pid, sid)
		o.Registry.TrackRoom(sid, key)
		return joinVideoTx(tx, pid, sid)
	})
}

// LeaveVideo drops pid from the room's video map and tells the remaining
// video peers. Unknown rooms and participants are ignored.
func (o *Orchestrator) LeaveVideo(key domain.RoomKey, pid domain.ParticipantID, sid core.SessionID) {
	room, ok := o.Rooms.Get(key)
	if !ok {
		return
	}
	o.Dispatcher.Apply(room, func(tx core.RoomTx) []app.Delivery {
		out := leaveVideoTx(tx, pid)
		o.Registry.UnbindParticipant(pid, sid)
		if !tx.IsMember(sid) && len(tx.VideoParticipantsOf(sid)) == 0 {
			o.Registry.UntrackRoom(sid, key)
		}
		return out
	})
}

// OnDisconnect tears sid down once. Later calls for the same handle do
// nothing.
//
// The handle leaves every room it joined first, video peers included; then
// each of those rooms gets one system message if the handle had a name;
// finally the registry forgets it.
func (o *Orchestrator) OnDisconnect(sid core.SessionID) {
	td, ok := o.Registry.BeginTeardown(sid)
	if !ok {
		return
	}

	rooms := make([]core.RoomService, 0, len(td.Rooms))
	for _, key := range td.Rooms {
		room, ok := o.Rooms.Get(key)
		if !ok {
			continue
		}
		rooms = append(rooms, room)
		o.Dispatcher.Apply(room, func(tx core.RoomTx) []app.Delivery {
			return departTx(tx, sid)
		})
	}

	if td.Named {
		for _, room := range rooms {
			o.Dispatcher.Apply(room, func(tx core.RoomTx) []app.Delivery {
				return systemLeaveTx(tx, td.Name)
			})
		}
	}

	o.Registry.Forget(sid)
	log.Info().Str("module", "app.orch").Str("sid", string(sid)).Int("rooms", len(rooms)).Msg("disconnected")
}

// ExplicitLeave announces a departure without touching membership or the
// registry. The connection of the leaver may already be gone.
func (o *Orchestrator) ExplicitLeave(key domain.RoomKey, name string) bool {
	name = domain.DisplayName(name)
	if name == "" {
		return false
	}
	room, ok := o.Rooms.Get(key)
	if !ok {
		return false
	}
	o.Dispatcher.Apply(room, func(tx core.RoomTx) []app.Delivery {
		return systemLeaveTx(tx, name)
	})
	return true
}
