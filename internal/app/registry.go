package app

import (
	"context"
	"slices"
	"sync"

	"github.com/dkeye/Colla/internal/core"
	"github.com/dkeye/Colla/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

type sessionEntry struct {
	Conn   core.SignalConnection
	Cancel context.CancelFunc
	Name   string
	Rooms  map[domain.RoomKey]struct{}
	// closing is set once by BeginTeardown; the handle is invisible to
	// deliveries from then on.
	closing bool
}

// Teardown is what a disconnecting handle left behind.
type Teardown struct {
	Name  string
	Named bool
	Rooms []domain.RoomKey
}

// Registry maps live connections to display names, joined rooms and
// signaling participant ids. It never emits network traffic.
type Registry struct {
	mu           sync.RWMutex
	sessions     map[core.SessionID]*sessionEntry
	participants map[domain.ParticipantID]core.SessionID
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:     make(map[core.SessionID]*sessionEntry),
		participants: make(map[domain.ParticipantID]core.SessionID),
	}
}

func (r *Registry) entry(sid core.SessionID) *sessionEntry {
	e, ok := r.sessions[sid]
	if !ok {
		e = &sessionEntry{Rooms: make(map[domain.RoomKey]struct{})}
		r.sessions[sid] = e
	}
	return e
}

// Connect binds a transport to a handle.
func (r *Registry) Connect(sid core.SessionID, conn core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entry(sid)
	e.Conn = conn
	e.Cancel = cancel
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("bound signal")
}

// Register names a handle. The last call wins and names may repeat across handles.
func (r *Registry) Register(sid core.SessionID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entry(sid)
	if e.closing {
		return
	}
	e.Name = name
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("username", name).Msg("registered username")
}

func (r *Registry) LookupName(sid core.SessionID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok || e.Name == "" {
		return "", false
	}
	return e.Name, true
}

// LookupHandle resolves a signaling participant id to its current handle.
func (r *Registry) LookupHandle(pid domain.ParticipantID) (core.SessionID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sid, ok := r.participants[pid]
	if !ok {
		return "", false
	}
	if e, live := r.sessions[sid]; !live || e.closing {
		return "", false
	}
	return sid, true
}

// BindParticipant routes pid to sid, replacing any previous handle.
func (r *Registry) BindParticipant(pid domain.ParticipantID, sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.participants[pid] = sid
	log.Debug().Str("module", "app.registry").Str("sid", string(sid)).Str("peer", string(pid)).Msg("bound participant")
}

// UnbindParticipant drops pid only while it still points at sid, so a stale
// leave cannot undo a newer reconnect.
func (r *Registry) UnbindParticipant(pid domain.ParticipantID, sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.participants[pid]; ok && cur == sid {
		delete(r.participants, pid)
	}
}

func (r *Registry) TrackRoom(sid core.SessionID, key domain.RoomKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entry(sid)
	if e.closing {
		return
	}
	e.Rooms[key] = struct{}{}
}

func (r *Registry) UntrackRoom(sid core.SessionID, key domain.RoomKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[sid]; ok {
		delete(e.Rooms, key)
	}
}

func (r *Registry) RoomsOf(sid core.SessionID) []domain.RoomKey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok {
		return nil
	}
	out := lo.Keys(e.Rooms)
	slices.Sort(out)
	return out
}

// Conn returns the transport of a live handle. Handles being torn down are
// reported as absent so in-flight broadcasts skip them.
func (r *Registry) Conn(sid core.SessionID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok || e.closing || e.Conn == nil {
		return nil, false
	}
	return e.Conn, true
}

// BeginTeardown claims the teardown of sid. Only the first caller gets ok.
func (r *Registry) BeginTeardown(sid core.SessionID) (Teardown, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok || e.closing {
		return Teardown{}, false
	}
	e.closing = true
	rooms := lo.Keys(e.Rooms)
	slices.Sort(rooms)
	return Teardown{Name: e.Name, Named: e.Name != "", Rooms: rooms}, true
}

// Forget removes every entry of sid. Safe to call more than once.
func (r *Registry) Forget(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sid]; !ok {
		return
	}
	delete(r.sessions, sid)
	for pid, cur := range r.participants {
		if cur == sid {
			delete(r.participants, pid)
		}
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
}

func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	var cancel context.CancelFunc
	if ok {
		cancel = e.Cancel
	}
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if cancel != nil {
		cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
