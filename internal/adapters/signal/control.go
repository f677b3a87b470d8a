package signal

import (
	"time"

	"github.com/gorilla/websocket"
)

// armKeepalive bounds frame size and makes a peer that stops answering
// pings fail its next read.
func (ctl *SignalWSController) armKeepalive(c *WsSignalConn) {
	if ctl.opts.ReadLimit > 0 {
		c.conn.SetReadLimit(ctl.opts.ReadLimit)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	})
}

func (ctl *SignalWSController) write(c *WsSignalConn, kind int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(kind, data)
}

func (ctl *SignalWSController) writeClose(c *WsSignalConn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(ctl.opts.WriteWait))
}
