package core

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/Colla/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// roomImpl is a threadsafe in-memory room.
// Every mutation goes through Exec, so one room has a single writer at a time
// while other rooms proceed on their own locks.
type roomImpl struct {
	mu    sync.RWMutex
	state *roomState
}

func NewRoomService(key domain.RoomKey) RoomService {
	return newRoomService(key, time.Now)
}

func newRoomService(key domain.RoomKey, now func() time.Time) *roomImpl {
	return &roomImpl{state: newRoomState(key, now)}
}

func (r *roomImpl) Key() domain.RoomKey { return r.state.key }

func (r *roomImpl) Exec(fn func(tx RoomTx)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.state)
}

func (r *roomImpl) Join(sid SessionID) (files []domain.File) {
	r.Exec(func(tx RoomTx) { files = tx.Join(sid) })
	return files
}

func (r *roomImpl) Leave(sid SessionID) (ok bool) {
	r.Exec(func(tx RoomTx) { ok = tx.Leave(sid) })
	return ok
}

func (r *roomImpl) SetFiles(files []domain.File) {
	r.Exec(func(tx RoomTx) { tx.SetFiles(files) })
}

func (r *roomImpl) PatchFile(name, content string) (ok bool) {
	r.Exec(func(tx RoomTx) { ok = tx.PatchFile(name, content) })
	return ok
}

func (r *roomImpl) AppendMessage(author, text string) (msg domain.ChatMessage) {
	r.Exec(func(tx RoomTx) { msg = tx.AppendMessage(author, text) })
	return msg
}

func (r *roomImpl) Files() []domain.File {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Files()
}

func (r *roomImpl) Transcript() []domain.ChatMessage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Transcript()
}

func (r *roomImpl) Members() []SessionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Members()
}

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.state.members)
}

func (r *roomImpl) VideoPeers() map[domain.ParticipantID]SessionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.VideoPeers()
}

func (r *roomImpl) Info() RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RoomInfo{
		Key:         r.state.key,
		MemberCount: len(r.state.members),
		VideoCount:  len(r.state.video),
		FileCount:   len(r.state.files),
	}
}

// roomState is the unguarded state of one room; it implements RoomTx.
type roomState struct {
	key domain.RoomKey
	now func() time.Time

	members    map[SessionID]struct{}
	files      []domain.File
	transcript []domain.ChatMessage
	seq        uint64
	video      map[domain.ParticipantID]SessionID
}

func newRoomState(key domain.RoomKey, now func() time.Time) *roomState {
	return &roomState{
		key:     key,
		now:     now,
		members: make(map[SessionID]struct{}),
		files:   []domain.File{},
		video:   make(map[domain.ParticipantID]SessionID),
	}
}

func (s *roomState) Key() domain.RoomKey { return s.key }

func (s *roomState) Join(sid SessionID) []domain.File {
	s.members[sid] = struct{}{}
	log.Info().Str("module", "core.room").Str("room", string(s.key)).Str("sid", string(sid)).Msg("member added")
	return domain.CloneFiles(s.files)
}

func (s *roomState) Leave(sid SessionID) bool {
	if _, ok := s.members[sid]; !ok {
		return false
	}
	delete(s.members, sid)
	log.Info().Str("module", "core.room").Str("room", string(s.key)).Str("sid", string(sid)).Msg("member removed")
	return true
}

func (s *roomState) IsMember(sid SessionID) bool {
	_, ok := s.members[sid]
	return ok
}

func (s *roomState) Members() []SessionID {
	out := lo.Keys(s.members)
	slices.Sort(out)
	return out
}

// SetFiles replaces the file list wholesale; the newest writer wins.
func (s *roomState) SetFiles(files []domain.File) {
	s.files = domain.CloneFiles(files)
	log.Debug().Str("module", "core.room").Str("room", string(s.key)).Int("files", len(files)).Msg("files replaced")
}

// PatchFile is a no-op when the file is not there yet: edits may race ahead
// of the files update that creates it.
func (s *roomState) PatchFile(name, content string) bool {
	for i := range s.files {
		if s.files[i].Name == name {
			s.files[i].Content = content
			return true
		}
	}
	return false
}

func (s *roomState) Files() []domain.File {
	return domain.CloneFiles(s.files)
}

func (s *roomState) AppendMessage(author, text string) domain.ChatMessage {
	s.seq++
	msg := domain.ChatMessage{
		Author:    author,
		Text:      text,
		Timestamp: s.now().UTC(),
		Seq:       s.seq,
	}
	s.transcript = append(s.transcript, msg)
	return msg
}

func (s *roomState) Transcript() []domain.ChatMessage {
	return slices.Clone(s.transcript)
}

func (s *roomState) JoinVideo(pid domain.ParticipantID, sid SessionID) []SessionID {
	s.video[pid] = sid
	log.Info().Str("module", "core.room").Str("room", string(s.key)).Str("peer", string(pid)).Str("sid", string(sid)).Msg("video peer added")
	return s.videoHandlesExcept(sid)
}

func (s *roomState) LeaveVideo(pid domain.ParticipantID) ([]SessionID, bool) {
	sid, ok := s.video[pid]
	if !ok {
		return nil, false
	}
	delete(s.video, pid)
	log.Info().Str("module", "core.room").Str("room", string(s.key)).Str("peer", string(pid)).Msg("video peer removed")
	return s.videoHandlesExcept(sid), true
}

func (s *roomState) VideoParticipantsOf(sid SessionID) []domain.ParticipantID {
	out := lo.Keys(lo.PickByValues(s.video, []SessionID{sid}))
	slices.Sort(out)
	return out
}

func (s *roomState) VideoPeers() map[domain.ParticipantID]SessionID {
	return maps.Clone(s.video)
}

func (s *roomState) videoHandlesExcept(sid SessionID) []SessionID {
	out := lo.Uniq(lo.Values(s.video))
	out = lo.Without(out, sid)
	slices.Sort(out)
	return out
}
