package app

import (
	"encoding/json"

	"github.com/dkeye/Colla/internal/core"
	"github.com/dkeye/Colla/internal/domain"
	"github.com/dkeye/Colla/internal/metrics"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// Delivery is one outbound message and the handles it goes to.
type Delivery struct {
	To  []core.SessionID
	Msg any
}

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Skipped int
	Dropped []core.SessionID
}

// Dispatcher turns deliveries into frames on the recipients' send queues.
//
// Enqueueing never blocks. Callers that need a room's events to reach every
// member in application order call Deliver while still inside room.Exec:
// each queue is FIFO, so the order under the room lock is the order on the wire.
type Dispatcher struct {
	Registry *Registry
	Policy   Policy
	Metrics  *metrics.Metrics
}

func (d *Dispatcher) Deliver(deliveries ...Delivery) PublishResult {
	var res PublishResult
	for _, dl := range deliveries {
		if len(dl.To) == 0 {
			continue
		}
		frame, err := json.Marshal(dl.Msg)
		if err != nil {
			log.Error().Err(err).Str("module", "app.dispatcher").Msg("marshal delivery")
			continue
		}
		for _, sid := range dl.To {
			d.send(sid, frame, &res)
		}
	}
	d.Metrics.Delivery(metrics.OutcomeSent, res.SendTo)
	d.Metrics.Delivery(metrics.OutcomeSkipped, res.Skipped)
	d.Metrics.Delivery(metrics.OutcomeDropped, len(res.Dropped))
	d.applyPolicy(res.Dropped)
	return res
}

// SendTo delivers one message to a single handle.
func (d *Dispatcher) SendTo(sid core.SessionID, msg any) bool {
	return d.Deliver(Delivery{To: []core.SessionID{sid}, Msg: msg}).SendTo == 1
}

func (d *Dispatcher) send(sid core.SessionID, frame core.Frame, res *PublishResult) {
	conn, ok := d.Registry.Conn(sid)
	if !ok {
		res.Skipped++
		return
	}
	if err := conn.TrySend(frame); err != nil {
		log.Debug().Err(err).Str("module", "app.dispatcher").Str("sid", string(sid)).Msg("send dropped")
		res.Dropped = append(res.Dropped, sid)
		return
	}
	res.SendTo++
}

func (d *Dispatcher) applyPolicy(dropped []core.SessionID) {
	if d.Policy == nil {
		return
	}
	for _, sid := range dropped {
		switch d.Policy.OnBackPressure(sid) {
		case KickMember:
			log.Warn().Str("module", "app.dispatcher").Str("sid", string(sid)).Msg("kicking slow member")
			d.Registry.Cancel(sid)
		case MarkSlow, DropFrame, NoAction:
		}
	}
}

// FilesDelivery sends the room's file list to every member but exclude.
func FilesDelivery(tx core.RoomTx, files []domain.File, exclude core.SessionID) Delivery {
	return Delivery{
		To:  lo.Without(tx.Members(), exclude),
		Msg: NewFilesUpdate(tx.Key(), files),
	}
}

// CodeChangeDelivery sends a live-typing delta to every member but the sender.
func CodeChangeDelivery(tx core.RoomTx, fileName, code string, exclude core.SessionID) Delivery {
	return Delivery{
		To:  lo.Without(tx.Members(), exclude),
		Msg: NewCodeChange(tx.Key(), fileName, code),
	}
}

// ChatDelivery sends a stored message to every member, sender included.
func ChatDelivery(tx core.RoomTx, m domain.ChatMessage) Delivery {
	return Delivery{
		To:  tx.Members(),
		Msg: NewReceiveMessage(tx.Key(), m),
	}
}

// Apply runs fn as the room's single writer and enqueues the deliveries it
// returns before the room lock is released.
func (d *Dispatcher) Apply(room core.RoomService, fn func(tx core.RoomTx) []Delivery) (res PublishResult) {
	room.Exec(func(tx core.RoomTx) {
		res = d.Deliver(fn(tx)...)
	})
	return res
}

// BroadcastFiles replaces a room's files and fans the new list out.
func (d *Dispatcher) BroadcastFiles(room core.RoomService, files []domain.File, exclude core.SessionID) PublishResult {
	return d.Apply(room, func(tx core.RoomTx) []Delivery {
		tx.SetFiles(files)
		return []Delivery{FilesDelivery(tx, files, exclude)}
	})
}

// BroadcastCodeChange patches a file and fans the delta out. Nothing is sent
// when the file does not exist.
func (d *Dispatcher) BroadcastCodeChange(room core.RoomService, fileName, code string, exclude core.SessionID) PublishResult {
	return d.Apply(room, func(tx core.RoomTx) []Delivery {
		if !tx.PatchFile(fileName, code) {
			return nil
		}
		return []Delivery{CodeChangeDelivery(tx, fileName, code, exclude)}
	})
}

// BroadcastChatMessage appends to the transcript and sends to every member.
func (d *Dispatcher) BroadcastChatMessage(room core.RoomService, author, text string) (msg domain.ChatMessage, res PublishResult) {
	res = d.Apply(room, func(tx core.RoomTx) []Delivery {
		msg = tx.AppendMessage(author, text)
		return []Delivery{ChatDelivery(tx, msg)}
	})
	return msg, res
}
