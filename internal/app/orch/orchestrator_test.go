package orch

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/dkeye/Colla/internal/app"
	"github.com/dkeye/Colla/internal/core"
	"github.com/dkeye/Colla/internal/domain"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/require"
)

type recordingConn struct {
	mu     sync.Mutex
	frames []core.Frame
}

func (c *recordingConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, f)
	return nil
}

func (c *recordingConn) Close() {}

func (c *recordingConn) messages(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.frames))
	for _, f := range c.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(f, &m))
		out = append(out, m)
	}
	return out
}

func (c *recordingConn) ofType(t *testing.T, kind string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, m := range c.messages(t) {
		if m["type"] == kind {
			out = append(out, m)
		}
	}
	return out
}

func (c *recordingConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

type harness struct {
	t     *testing.T
	orch  *Orchestrator
	conns map[core.SessionID]*recordingConn
}

func newHarness(t *testing.T) *harness {
	reg := app.NewRegistry()
	return &harness{
		t:     t,
		orch:  New(reg, app.NewRoomManager(), app.SimplePolicy{Action: app.DropFrame}, nil),
		conns: make(map[core.SessionID]*recordingConn),
	}
}

func (h *harness) connect(sid core.SessionID) *recordingConn {
	c := &recordingConn{}
	h.orch.Registry.Connect(sid, c, func() {})
	h.conns[sid] = c
	return c
}

func (h *harness) send(sid core.SessionID, ev map[string]any) {
	h.t.Helper()
	data, err := json.Marshal(ev)
	require.NoError(h.t, err)
	require.NoError(h.t, h.orch.HandleEvent(sid, data))
}

func (h *harness) members(key domain.RoomKey) []core.SessionID {
	room, ok := h.orch.Rooms.Get(key)
	require.True(h.t, ok)
	return room.Members()
}

func (h *harness) files(key domain.RoomKey) []domain.File {
	room, ok := h.orch.Rooms.Get(key)
	require.True(h.t, ok)
	return room.Files()
}

func joinRoom(key string) map[string]any {
	return map[string]any{"type": TypeJoinRoom, "roomId": key}
}

func TestJoinRoom_MembersAreDistinctLiveHandles(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	for _, sid := range []core.SessionID{"a", "b", "c", "d"} {
		h.connect(sid)
		h.send(sid, joinRoom("r1"))
	}

	// When a rejoins, b leaves and c disconnects
	h.send("a", joinRoom("r1"))
	h.send("b", map[string]any{"type": TypeLeaveRoom, "roomId": "r1"})
	h.orch.OnDisconnect("c")

	req.Equal([]core.SessionID{"a", "d"}, h.members("r1"))
}

func TestFilesUpdate_ThenJoin_GetsFreshFiles(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.connect("a")
	joiner := h.connect("b")
	h.send("a", joinRoom("r1"))

	h.send("a", map[string]any{
		"type":   TypeFilesUpdate,
		"roomId": "r1",
		"files":  []domain.File{{Name: "main.go", Language: "go", Content: "package main"}},
	})
	h.send("b", joinRoom("r1"))

	got := joiner.ofType(t, app.TypeFilesUpdate)
	req.Len(got, 1)
	files := got[0]["files"].([]any)
	req.Len(files, 1)
	req.Equal("main.go", files[0].(map[string]any)["name"])
	req.Equal("package main", files[0].(map[string]any)["content"])
}

func TestFilesUpdate_ReachesEveryMemberIncludingSender(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	a, b := h.connect("a"), h.connect("b")
	h.send("a", joinRoom("r1"))
	h.send("b", joinRoom("r1"))
	a.reset()
	b.reset()

	h.send("a", map[string]any{"type": TypeFilesUpdate, "roomId": "r1", "files": []domain.File{}})

	req.Len(a.ofType(t, app.TypeFilesUpdate), 1)
	req.Len(b.ofType(t, app.TypeFilesUpdate), 1)
}

func TestCodeChange_MissingFile_IsNoop(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.connect("a")
	b := h.connect("b")
	h.send("a", joinRoom("r1"))
	h.send("b", joinRoom("r1"))
	h.send("a", map[string]any{"type": TypeFilesUpdate, "roomId": "r1", "files": []domain.File{{Name: "a.js", Content: "1"}}})
	b.reset()

	h.send("a", map[string]any{"type": TypeCodeChange, "roomId": "r1", "fileName": "ghost.js", "code": "x"})

	req.Equal([]domain.File{{Name: "a.js", Content: "1"}}, h.files("r1"))
	req.Empty(b.messages(t))
}

func TestCodeChange_ExcludesSender(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	a, b := h.connect("a"), h.connect("b")
	h.send("a", joinRoom("r1"))
	h.send("b", joinRoom("r1"))
	h.send("a", map[string]any{"type": TypeFilesUpdate, "roomId": "r1", "files": []domain.File{{Name: "a.js"}}})
	a.reset()
	b.reset()

	h.send("a", map[string]any{"type": TypeCodeChange, "roomId": "r1", "fileName": "a.js", "code": "let x"})

	req.Empty(a.messages(t))
	got := b.ofType(t, app.TypeCodeChange)
	req.Len(got, 1)
	req.Equal("a.js", got[0]["fileName"])
	req.Equal("let x", got[0]["code"])
}

func TestCodeChange_BackToBackOnTwoFiles_BothLand(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.connect("a")
	h.connect("b")
	h.send("a", joinRoom("r1"))
	h.send("a", map[string]any{"type": TypeFilesUpdate, "roomId": "r1", "files": []domain.File{{Name: "x"}, {Name: "y"}}})

	var wg conc.WaitGroup
	wg.Go(func() {
		h.send("a", map[string]any{"type": TypeCodeChange, "roomId": "r1", "fileName": "x", "code": "X"})
	})
	wg.Go(func() {
		h.send("b", map[string]any{"type": TypeCodeChange, "roomId": "r1", "fileName": "y", "code": "Y"})
	})
	wg.Wait()

	req.Equal([]domain.File{{Name: "x", Content: "X"}, {Name: "y", Content: "Y"}}, h.files("r1"))
}

func TestSendMessage_IsForwardOnly(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	a := h.connect("a")
	b := h.connect("b")
	h.send("a", joinRoom("r1"))

	// Given alice said hi before bob joined
	h.send("a", map[string]any{"type": TypeSendMessage, "roomId": "r1", "username": "alice", "message": "hi"})
	h.send("b", joinRoom("r1"))

	// Then bob sees no chat
	req.Empty(b.ofType(t, app.TypeReceiveMessage))
	// And alice got her own message back
	req.Len(a.ofType(t, app.TypeReceiveMessage), 1)

	// When alice speaks again, bob receives it
	h.send("a", map[string]any{"type": TypeSendMessage, "roomId": "r1", "username": "alice", "message": "again"})
	got := b.ofType(t, app.TypeReceiveMessage)
	req.Len(got, 1)
	req.Equal("again", got[0]["message"])
	req.EqualValues(2, got[0]["seq"])
}

func TestSendMessage_FallsBackToRegisteredName(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	a := h.connect("a")
	h.send("a", map[string]any{"type": TypeRegister, "username": "alice"})
	h.send("a", joinRoom("r1"))

	h.send("a", map[string]any{"type": TypeSendMessage, "roomId": "r1", "message": "hello"})

	got := a.ofType(t, app.TypeReceiveMessage)
	req.Len(got, 1)
	req.Equal("alice", got[0]["username"])
}

func TestGetMessages_ReturnsTranscriptToRequesterOnly(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	a, b := h.connect("a"), h.connect("b")
	h.send("a", joinRoom("r1"))
	h.send("a", map[string]any{"type": TypeSendMessage, "roomId": "r1", "username": "alice", "message": "one"})
	h.send("b", joinRoom("r1"))
	a.reset()

	h.send("b", map[string]any{"type": TypeGetMessages, "roomId": "r1"})

	req.Empty(a.messages(t))
	got := b.ofType(t, app.TypeMessages)
	req.Len(got, 1)
	msgs := got[0]["messages"].([]any)
	req.Len(msgs, 1)
	req.Equal("one", msgs[0].(map[string]any)["message"])
}

func TestOnDisconnect_OneSystemMessagePerRoom_Idempotent(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.connect("bob")
	w1, w2 := h.connect("w1"), h.connect("w2")
	h.send("bob", map[string]any{"type": TypeRegister, "username": "bob"})
	for _, key := range []string{"r1", "r2"} {
		h.send("bob", joinRoom(key))
	}
	h.send("bob", map[string]any{"type": TypeJoinVideo, "roomId": "r1", "userId": "bob-cam"})
	h.send("w1", joinRoom("r1"))
	h.send("w2", joinRoom("r2"))

	// When bob disconnects twice
	h.orch.OnDisconnect("bob")
	h.orch.OnDisconnect("bob")

	// Then each room got exactly one system message
	for _, c := range []*recordingConn{w1, w2} {
		got := c.ofType(t, app.TypeReceiveMessage)
		req.Len(got, 1)
		req.Equal(domain.SystemAuthor, got[0]["username"])
		req.Equal("bob has left the room.", got[0]["message"])
	}
	// And bob is gone everywhere
	req.Equal([]core.SessionID{"w1"}, h.members("r1"))
	req.Equal([]core.SessionID{"w2"}, h.members("r2"))
	room, _ := h.orch.Rooms.Get("r1")
	req.Empty(room.VideoPeers())
	_, ok := h.orch.Registry.LookupName("bob")
	req.False(ok)
	_, ok = h.orch.Registry.LookupHandle("bob-cam")
	req.False(ok)
}

func TestOnDisconnect_UnnamedHandle_NoSystemMessage(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.connect("anon")
	w := h.connect("w")
	h.send("anon", joinRoom("r1"))
	h.send("w", joinRoom("r1"))
	w.reset()

	h.orch.OnDisconnect("anon")

	req.Empty(w.messages(t))
	req.Equal([]core.SessionID{"w"}, h.members("r1"))
}

func TestOnDisconnect_NotifiesRemainingVideoPeers(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.connect("a")
	b := h.connect("b")
	h.send("a", map[string]any{"type": TypeJoinVideo, "roomId": "r1", "userId": "pa"})
	h.send("b", map[string]any{"type": TypeJoinVideo, "roomId": "r1", "userId": "pb"})

	h.orch.OnDisconnect("a")

	got := b.ofType(t, app.TypeUserLeftVideo)
	req.Len(got, 1)
	req.Equal("pa", got[0]["peerId"])
}

func TestJoinVideo_NotifiesExistingPeersOnly(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	a, b := h.connect("a"), h.connect("b")
	other := h.connect("c")
	h.send("c", joinRoom("r1"))

	h.send("a", map[string]any{"type": TypeJoinVideo, "roomId": "r1", "userId": "pa"})
	h.send("b", map[string]any{"type": TypeJoinVideo, "roomId": "r1", "userId": "pb"})

	req.Empty(b.ofType(t, app.TypeUserJoinedVideo))
	got := a.ofType(t, app.TypeUserJoinedVideo)
	req.Len(got, 1)
	req.Equal("pb", got[0]["peerId"])
	req.Empty(other.ofType(t, app.TypeUserJoinedVideo))
}

func TestLeaveVideo_NotifiesAndUnbinds(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	a := h.connect("a")
	h.connect("b")
	h.send("a", map[string]any{"type": TypeJoinVideo, "roomId": "r1", "userId": "pa"})
	h.send("b", map[string]any{"type": TypeJoinVideo, "roomId": "r1", "userId": "pb"})

	h.send("b", map[string]any{"type": TypeLeaveVideo, "roomId": "r1", "userId": "pb"})

	got := a.ofType(t, app.TypeUserLeftVideo)
	req.Len(got, 1)
	req.Equal("pb", got[0]["peerId"])
	_, ok := h.orch.Registry.LookupHandle("pb")
	req.False(ok)
	req.NotContains(h.orch.Registry.RoomsOf("b"), domain.RoomKey("r1"))

	// Leaving again is a no-op
	a.reset()
	h.send("b", map[string]any{"type": TypeLeaveVideo, "roomId": "r1", "userId": "pb"})
	req.Empty(a.messages(t))
}

func TestRelay_OfferToUnknownTarget_NoDeliveryNoError(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	a := h.connect("a")

	h.send("a", map[string]any{
		"type":   TypeVideoOffer,
		"target": "nobody",
		"caller": "pa",
		"sdp":    map[string]any{"type": "offer", "sdp": "v=0"},
	})

	req.Empty(a.messages(t))
}

func TestRelay_OfferReachesJoinedVideoPeer(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.connect("a")
	b := h.connect("b")
	h.send("b", map[string]any{"type": TypeJoinVideo, "roomId": "r1", "userId": "pb"})

	h.send("a", map[string]any{
		"type":   TypeVideoOffer,
		"target": "pb",
		"caller": "pa",
		"sdp":    map[string]any{"type": "offer", "sdp": "v=0"},
	})

	got := b.ofType(t, app.TypeVideoOffer)
	req.Len(got, 1)
	req.Equal("pa", got[0]["caller"])
	req.Equal(map[string]any{"type": "offer", "sdp": "v=0"}, got[0]["sdp"])
}

func TestExplicitLeave_BroadcastOnly(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.connect("a")
	w := h.connect("w")
	h.send("a", map[string]any{"type": TypeRegister, "username": "alice"})
	h.send("a", joinRoom("r1"))
	h.send("w", joinRoom("r1"))

	req.True(h.orch.ExplicitLeave("r1", "alice"))

	got := w.ofType(t, app.TypeReceiveMessage)
	req.Len(got, 1)
	req.Equal("alice has left the room.", got[0]["message"])
	req.Equal([]core.SessionID{"a", "w"}, h.members("r1"))
	name, ok := h.orch.Registry.LookupName("a")
	req.True(ok)
	req.Equal("alice", name)

	req.False(h.orch.ExplicitLeave("unknown-room", "alice"))
}

func TestPing_Pong(t *testing.T) {
	h := newHarness(t)
	a := h.connect("a")

	h.send("a", map[string]any{"type": TypePing})

	require.Len(t, a.ofType(t, app.TypePong), 1)
}

func TestHandleEvent_Malformed(t *testing.T) {
	h := newHarness(t)
	h.connect("a")

	tests := []struct {
		name string
		data string
		err  error
	}{
		{name: "not json", data: `{`, err: ErrMalformed},
		{name: "unknown type", data: `{"type":"dance"}`, err: ErrUnknownEvent},
		{name: "join without room", data: `{"type":"join-room"}`, err: ErrMalformed},
		{name: "files without list", data: `{"type":"files-update","roomId":"r1"}`, err: ErrMalformed},
		{name: "offer without sdp", data: `{"type":"video-offer","target":"b","caller":"a"}`, err: ErrMalformed},
		{name: "wrong field type", data: `{"type":"code-change","roomId":5}`, err: ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.orch.HandleEvent("a", []byte(tt.data))
			require.ErrorIs(t, err, tt.err)
		})
	}

	// Nothing was created by the rejected events
	require.Empty(t, h.orch.Rooms.List())
}

func TestRooms_IndependentAcrossKeys(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	const n = 20
	for i := range n {
		h.connect(core.SessionID(fmt.Sprintf("s%d", i)))
	}

	var wg conc.WaitGroup
	for i := range n {
		sid := core.SessionID(fmt.Sprintf("s%d", i))
		key := fmt.Sprintf("room-%d", i%4)
		wg.Go(func() {
			h.send(sid, joinRoom(key))
			h.send(sid, map[string]any{"type": TypeSendMessage, "roomId": key, "username": string(sid), "message": "hi"})
		})
	}
	wg.Wait()

	rooms := h.orch.Rooms.List()
	req.Len(rooms, 4)
	for _, info := range rooms {
		req.Equal(n/4, info.MemberCount)
		room, _ := h.orch.Rooms.Get(info.Key)
		req.Len(room.Transcript(), n/4)
	}
}

func TestOnDisconnect_LongNameStillAnnounced(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	long := strings.Repeat("x", 40)
	h.connect("p")
	w1, w2 := h.connect("w1"), h.connect("w2")
	h.send("p", map[string]any{"type": TypeRegister, "username": long})
	h.send("p", joinRoom("r1"))
	h.send("p", joinRoom("r2"))
	h.send("w1", joinRoom("r1"))
	h.send("w2", joinRoom("r2"))

	name, ok := h.orch.Registry.LookupName("p")
	req.True(ok)
	req.Equal(long, name)

	// When the handle drops
	h.orch.OnDisconnect("p")

	// Then each room hears about it once
	for _, c := range []*recordingConn{w1, w2} {
		got := c.ofType(t, app.TypeReceiveMessage)
		req.Len(got, 1)
		req.Equal(long+" has left the room.", got[0]["message"])
	}
}

func TestRegister_TrimsAndLastCallWins(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.connect("a")

	h.send("a", map[string]any{"type": TypeRegister, "username": "  alice  "})
	name, ok := h.orch.Registry.LookupName("a")
	req.True(ok)
	req.Equal("alice", name)

	// Blank names are still names
	h.send("a", map[string]any{"type": TypeRegister, "username": "   "})
	name, ok = h.orch.Registry.LookupName("a")
	req.True(ok)
	req.Equal("   ", name)
}

func TestExplicitLeave_LongName(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	w := h.connect("w")
	h.send("w", joinRoom("r1"))
	long := strings.Repeat("y", 50)

	req.True(h.orch.ExplicitLeave("r1", long))

	got := w.ofType(t, app.TypeReceiveMessage)
	req.Len(got, 1)
	req.Equal(long+" has left the room.", got[0]["message"])
}

func TestJoinVideo_LongParticipantID(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.connect("a")
	pid := strings.Repeat("p", 65)

	h.send("a", map[string]any{"type": TypeJoinVideo, "roomId": "r1", "userId": pid})

	sid, ok := h.orch.Registry.LookupHandle(domain.ParticipantID(pid))
	req.True(ok)
	req.Equal(core.SessionID("a"), sid)
}

func TestCodeChange_CreatesRoom(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.connect("a")

	h.send("a", map[string]any{"type": TypeCodeChange, "roomId": "fresh", "fileName": "a.js", "code": "x"})

	// Then the room exists and the patch changed nothing
	req.Empty(h.files("fresh"))
}

func TestFilesUpdate_AcceptsListAsSent(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.connect("a")
	b := h.connect("b")
	h.send("b", joinRoom("r1"))
	files := []domain.File{{Name: "a.js", Content: "1"}, {Content: "untitled"}}

	h.send("a", map[string]any{"type": TypeFilesUpdate, "roomId": "r1", "files": files})

	req.Equal(files, h.files("r1"))
	req.Len(b.ofType(t, app.TypeFilesUpdate), 1)
}
