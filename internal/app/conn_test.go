package app

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/dkeye/Colla/internal/core"
	"github.com/stretchr/testify/require"
)

var errQueueFull = errors.New("queue full")

// recordingConn keeps every frame it accepts.
type recordingConn struct {
	mu     sync.Mutex
	frames []core.Frame
	full   bool
	closed bool
}

func (c *recordingConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return errQueueFull
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *recordingConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *recordingConn) decoded(t *testing.T) []map[string]any {
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

func (c *recordingConn) types(t *testing.T) []string {
	t.Helper()
	var out []string
	for _, m := range c.decoded(t) {
		out = append(out, m["type"].(string))
	}
	return out
}

func connect(reg *Registry, sid core.SessionID) *recordingConn {
	c := &recordingConn{}
	reg.Connect(sid, c, func() {})
	return c
}
