package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/DoyleJ11/bull-client/internal/protocol"
)

type connection struct {
	id     string
	ws     *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
	outbox chan []byte
	log    *zap.Logger

	closeOnce sync.Once
}

func (c *connection) close(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		c.cancel()
		_ = c.ws.Close(code, reason)
	})
}

func (t *Transport) readLoop(c *connection) {
	for {
		_, frame, err := c.ws.Read(c.ctx)
		if err != nil {
			t.lost(c, err)
			return
		}

		env, err := protocol.DecodeEnvelope(frame)
		if err != nil {
			c.log.Warn("dropping unreadable frame", zap.Error(err))
			continue
		}
		t.dispatch(env)
	}
}

func (t *Transport) writeLoop(c *connection) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case frame := <-c.outbox:
			ctx, cancel := context.WithTimeout(c.ctx, t.opts.WriteTimeout)
			err := c.ws.Write(ctx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				// The reader sees the broken connection and reports it.
				c.log.Warn("write failed", zap.Error(err))
			}
		}
	}
}

func (t *Transport) pingLoop(c *connection) {
	ticker := time.NewTicker(t.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(c.ctx, t.opts.DialTimeout)
			err := c.ws.Ping(ctx)
			cancel()
			if err != nil && c.ctx.Err() == nil {
				c.log.Warn("ping failed, closing", zap.Error(err))
				c.close(websocket.StatusGoingAway, "ping timeout")
				return
			}
		}
	}
}

// lost handles a connection that ended without Disconnect.
func (t *Transport) lost(c *connection, err error) {
	t.mu.Lock()
	if t.current != c {
		// We closed it ourselves.
		t.mu.Unlock()
		return
	}
	t.current = nil
	t.gen++
	t.state = ConnectionState{LastError: describeLoss(err)}
	auto := t.opts.AutoReconnect && !t.closed
	t.mu.Unlock()

	c.close(websocket.StatusGoingAway, "")
	c.log.Warn("connection lost", zap.Error(err))
	t.publish()

	if auto {
		t.Reconnect()
	}
}

func describeLoss(err error) string {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return "disconnected: server closed the connection"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "disconnected: timeout"
	}
	return "disconnected: " + err.Error()
}
