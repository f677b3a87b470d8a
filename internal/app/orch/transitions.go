package orch

import (
	"github.com/dkeye/Colla/internal/app"
	"github.com/dkeye/Colla/internal/core"
	"github.com/dkeye/Colla/internal/domain"
)

// Transitions mutate one room through tx and return what must be sent.
// They do no I/O, so the caller decides when the deliveries are enqueued.

func joinRoomTx(tx core.RoomTx, sid core.SessionID) []app.Delivery {
	files := tx.Join(sid)
	return []app.Delivery{{To: []core.SessionID{sid}, Msg: app.NewFilesUpdate(tx.Key(), files)}}
}

// leaveRoomTx reports whether sid is still attached to the room through video.
func leaveRoomTx(tx core.RoomTx, sid core.SessionID) (stillAttached bool) {
	tx.Leave(sid)
	return len(tx.VideoParticipantsOf(sid)) > 0
}

func getMessagesTx(tx core.RoomTx, sid core.SessionID) []app.Delivery {
	return []app.Delivery{{To: []core.SessionID{sid}, Msg: app.NewMessages(tx.Key(), tx.Transcript())}}
}

func joinVideoTx(tx core.RoomTx, pid domain.ParticipantID, sid core.SessionID) []app.Delivery {
	others := tx.JoinVideo(pid, sid)
	return []app.Delivery{{To: others, Msg: app.NewVideoPeer(app.TypeUserJoinedVideo, tx.Key(), pid)}}
}

func leaveVideoTx(tx core.RoomTx, pid domain.ParticipantID) []app.Delivery {
	remaining, ok := tx.LeaveVideo(pid)
	if !ok {
		return nil
	}
	return []app.Delivery{{To: remaining, Msg: app.NewVideoPeer(app.TypeUserLeftVideo, tx.Key(), pid)}}
}

// departTx removes sid from the member set and from the video map.
func departTx(tx core.RoomTx, sid core.SessionID) []app.Delivery {
	tx.Leave(sid)
	var out []app.Delivery
	for _, pid := range tx.VideoParticipantsOf(sid) {
		out = append(out, leaveVideoTx(tx, pid)...)
	}
	return out
}

func systemLeaveTx(tx core.RoomTx, name string) []app.Delivery {
	msg := tx.AppendMessage(domain.SystemAuthor, domain.LeftRoomText(name))
	return []app.Delivery{app.ChatDelivery(tx, msg)}
}
