package orch

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/Colla/internal/app"
	"github.com/dkeye/Colla/internal/core"
	"github.com/dkeye/Colla/internal/domain"
	"github.com/dkeye/Colla/internal/metrics"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/panics"
)

var (
	ErrUnknownEvent = errors.New("unknown event type")
	ErrMalformed    = errors.New("malformed event")
	ErrPanicked     = errors.New("event handler panicked")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Orchestrator routes decoded connection events to the registry, the rooms
// and the outbound paths.
type Orchestrator struct {
	Registry   *app.Registry
	Rooms      core.RoomManager
	Dispatcher *app.Dispatcher
	Relay      *app.Relay
	Metrics    *metrics.Metrics
}

func New(reg *app.Registry, rooms core.RoomManager, policy app.Policy, m *metrics.Metrics) *Orchestrator {
	d := &app.Dispatcher{Registry: reg, Policy: policy, Metrics: m}
	return &Orchestrator{
		Registry:   reg,
		Rooms:      rooms,
		Dispatcher: d,
		Relay:      &app.Relay{Registry: reg, Dispatcher: d},
		Metrics:    m,
	}
}

type handlerFunc func(o *Orchestrator, sid core.SessionID, data []byte) error

// route decodes and validates the payload before h sees it.
func route[E any](h func(o *Orchestrator, sid core.SessionID, ev E)) handlerFunc {
	return func(o *Orchestrator, sid core.SessionID, data []byte) error {
		var ev E
		if err := json.Unmarshal(data, &ev); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if err := validate.Struct(ev); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		h(o, sid, ev)
		return nil
	}
}

var handlers = map[string]handlerFunc{
	TypeRegister:      route((*Orchestrator).onRegister),
	TypeJoinVideo:     route((*Orchestrator).onJoinVideo),
	TypeLeaveVideo:    route((*Orchestrator).onLeaveVideo),
	TypeVideoOffer:    route((*Orchestrator).onVideoOffer),
	TypeVideoAnswer:   route((*Orchestrator).onVideoAnswer),
	TypeICECandidate:  route((*Orchestrator).onICECandidate),
	TypeJoinRoom:      route((*Orchestrator).onJoinRoom),
	TypeLeaveRoom:     route((*Orchestrator).onLeaveRoom),
	TypeFilesUpdate:   route((*Orchestrator).onFilesUpdate),
	TypeCodeChange:    route((*Orchestrator).onCodeChange),
	TypeSendMessage:   route((*Orchestrator).onSendMessage),
	TypeGetMessages:   route((*Orchestrator).onGetMessages),
	TypeExplicitLeave: route((*Orchestrator).onExplicitLeave),
	TypePing:          route((*Orchestrator).onPing),
}

// HandleEvent processes one inbound frame of sid. A bad frame is reported
// and leaves every piece of state untouched. A panicking handler is
// recovered so the connection keeps being served.
func (o *Orchestrator) HandleEvent(sid core.SessionID, data []byte) (err error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		o.Metrics.Malformed("invalid")
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	h, ok := handlers[env.Type]
	if !ok {
		o.Metrics.Malformed("unknown")
		return fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
	}

	var pc panics.Catcher
	pc.Try(func() { err = h(o, sid, data) })
	if r := pc.Recovered(); r != nil {
		log.Error().Str("module", "app.orch").Str("sid", string(sid)).Str("type", env.Type).
			Str("stack", string(r.Stack)).Msg("event handler panic")
		return fmt.Errorf("%w: %v", ErrPanicked, r.Value)
	}
	if err != nil {
		o.Metrics.Malformed(env.Type)
		return err
	}
	o.Metrics.Event(env.Type)
	return nil
}

func (o *Orchestrator) onRegister(sid core.SessionID, ev RegisterEvent) {
	o.Registry.Register(sid, domain.DisplayName(ev.Username))
}

func (o *Orchestrator) onJoinVideo(sid core.SessionID, ev VideoPresenceEvent) {
	o.JoinVideo(ev.RoomID, ev.UserID, sid)
}

func (o *Orchestrator) onLeaveVideo(sid core.SessionID, ev VideoPresenceEvent) {
	o.LeaveVideo(ev.RoomID, ev.UserID, sid)
}

func (o *Orchestrator) onVideoOffer(_ core.SessionID, ev SessionDescriptionEvent) {
	o.Relay.RelayOffer(ev.Target, ev.Caller, ev.SDP)
}

func (o *Orchestrator) onVideoAnswer(_ core.SessionID, ev SessionDescriptionEvent) {
	o.Relay.RelayAnswer(ev.Target, ev.Caller, ev.SDP)
}

func (o *Orchestrator) onICECandidate(_ core.SessionID, ev CandidateEvent) {
	o.Relay.RelayCandidate(ev.Target, ev.From, ev.Candidate)
}

// onJoinRoom answers the joiner with the files as they are right now. The
// transcript is not replayed; clients ask for it with get-messages.
func (o *Orchestrator) onJoinRoom(sid core.SessionID, ev RoomEvent) {
	room := o.Rooms.GetOrCreate(ev.RoomID)
	o.Dispatcher.Apply(room, func(tx core.RoomTx) []app.Delivery {
		o.Registry.TrackRoom(sid, tx.Key())
		return joinRoomTx(tx, sid)
	})
}

func (o *Orchestrator) onLeaveRoom(sid core.SessionID, ev RoomEvent) {
	room, ok := o.Rooms.Get(ev.RoomID)
	if !ok {
		return
	}
	o.Dispatcher.Apply(room, func(tx core.RoomTx) []app.Delivery {
		if !leaveRoomTx(tx, sid) {
			o.Registry.UntrackRoom(sid, tx.Key())
		}
		return nil
	})
}

func (o *Orchestrator) onFilesUpdate(_ core.SessionID, ev FilesUpdateEvent) {
	o.Dispatcher.BroadcastFiles(o.Rooms.GetOrCreate(ev.RoomID), ev.Files, "")
}

func (o *Orchestrator) onCodeChange(sid core.SessionID, ev CodeChangeEvent) {
	o.Dispatcher.BroadcastCodeChange(o.Rooms.GetOrCreate(ev.RoomID), ev.FileName, ev.Code, sid)
}

func (o *Orchestrator) onSendMessage(sid core.SessionID, ev SendMessageEvent) {
	author := ev.Username
	if author == "" {
		name, ok := o.Registry.LookupName(sid)
		if !ok {
			log.Warn().Str("module", "app.orch").Str("sid", string(sid)).Msg("anonymous message dropped")
			return
		}
		author = name
	}
	o.Dispatcher.BroadcastChatMessage(o.Rooms.GetOrCreate(ev.RoomID), author, ev.Message)
}

func (o *Orchestrator) onGetMessages(sid core.SessionID, ev RoomEvent) {
	room, ok := o.Rooms.Get(ev.RoomID)
	if !ok {
		o.Dispatcher.SendTo(sid, app.NewMessages(ev.RoomID, nil))
		return
	}
	o.Dispatcher.Apply(room, func(tx core.RoomTx) []app.Delivery {
		return getMessagesTx(tx, sid)
	})
}

func (o *Orchestrator) onExplicitLeave(_ core.SessionID, ev ExplicitLeaveEvent) {
	o.ExplicitLeave(ev.RoomID, ev.Username)
}

func (o *Orchestrator) onPing(sid core.SessionID, _ PingEvent) {
	o.Dispatcher.SendTo(sid, app.PongMsg{Type: app.TypePong})
}
