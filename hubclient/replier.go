package hubclient

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	errs "github.com/Gondolav/inventory-connector/errors"
	"github.com/Gondolav/inventory-connector/message"
	"github.com/Gondolav/inventory-connector/metric"
)

// ErrAlreadyReplied is returned by a second Reply on the same query
var ErrAlreadyReplied = errors.New("reply already sent")

// Replier writes the single reply to one query
type Replier interface {
	Reply(resp message.Response) error
}

// connection is one websocket session to the hub. Writes are serialized;
// once done is closed the connection is never written again.
type connection struct {
	ws           *websocket.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func newConnection(ws *websocket.Conn, writeTimeout time.Duration) *connection {
	return &connection{
		ws:           ws,
		writeTimeout: writeTimeout,
		done:         make(chan struct{}),
	}
}

func (c *connection) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *connection) write(data []byte) error {
	if c.closed() {
		return errs.ErrConnectionLost
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return errs.WrapTransient(errs.Join(errs.ErrConnectionLost, err), "hubclient", "write", "send frame")
	}
	return nil
}

func (c *connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// replier is bound to the connection that delivered the query. Write
// failures match errors.ErrConnectionLost.
type replier struct {
	conn    *connection
	once    sync.Once
	logger  *slog.Logger
	metrics *metric.Metrics
}

// Reply encodes resp and writes it on the originating connection. Only the
// first call writes.
func (r *replier) Reply(resp message.Response) error {
	err := ErrAlreadyReplied
	r.once.Do(func() {
		err = r.send(resp)
	})
	return err
}

func (r *replier) send(resp message.Response) error {
	data, err := message.EncodeResponse(resp)
	if err != nil {
		return err
	}
	if err := r.conn.write(data); err != nil {
		r.metrics.RecordReplyDropped()
		r.logger.Debug("Reply discarded", "found", resp.Found(), "error", err)
		return err
	}
	return nil
}
