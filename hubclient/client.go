// Package hubclient maintains the websocket link to the hub, decodes
// inbound queries and hands each one to a Handler together with a Replier
// bound to the connection that delivered it.
//
// Run supervises the link and owns the live connection. A dropped
// connection is re-dialled with exponential backoff; replies to queries
// from a dropped connection are discarded.
package hubclient

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	errs "github.com/Gondolav/inventory-connector/errors"
	"github.com/Gondolav/inventory-connector/message"
	"github.com/Gondolav/inventory-connector/metric"
	"github.com/Gondolav/inventory-connector/pkg/retry"
	"github.com/Gondolav/inventory-connector/pkg/worker"
)

// Handler processes one decoded query and must reply through r exactly once
type Handler interface {
	HandleQuery(ctx context.Context, item message.Item, r Replier)
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, item message.Item, r Replier)

// HandleQuery calls f
func (f HandlerFunc) HandleQuery(ctx context.Context, item message.Item, r Replier) {
	f(ctx, item, r)
}

// Client is a reconnecting hub client
type Client struct {
	cfg     Config
	handler Handler
	logger  *slog.Logger
	metrics *metric.Metrics
	poolReg metric.MetricsRegistrar
	dialer  *websocket.Dialer

	state       atomic.Int32
	listenersMu sync.RWMutex
	listeners   []StateListener

	running   atomic.Bool
	closed    chan struct{}
	closeOnce sync.Once

	// conn is the live connection, nil between sessions
	mu   sync.Mutex
	conn *connection

	// dialErr is the most recent failed dial, cleared on handshake
	dialErrMu sync.Mutex
	dialErr   error
}

// Option configures a Client
type Option func(*Client)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records hub state, reconnects and decode errors
func WithMetrics(m *metric.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithPoolMetrics registers the worker pool metrics when Workers > 1
func WithPoolMetrics(registry metric.MetricsRegistrar) Option {
	return func(c *Client) { c.poolReg = registry }
}

// New creates a client in state Disconnected
func New(cfg Config, handler Handler, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, errs.WrapInvalid(fmt.Errorf("handler is required"), "hubclient", "New", "check handler")
	}

	cfg = cfg.withDefaults()
	c := &Client{
		cfg:     cfg,
		handler: handler,
		logger:  slog.Default(),
		closed:  make(chan struct{}),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
			TLSClientConfig:  cfg.TLS,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "hubclient")
	c.state.Store(int32(StateDisconnected))
	return c, nil
}

type job struct {
	item  message.Item
	reply *replier
}

// Run connects to the hub and serves queries until Close is called or ctx
// is done, then returns nil. It returns errors.ErrMaxRetriesExceeded when
// MaxRetries consecutive dials fail. Run may be called once.
func (c *Client) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errs.ErrAlreadyStarted
	}
	if c.isClosed() {
		return errs.ErrClosed
	}
	defer c.Close()

	// loopCtx stops the connection loop. Handlers run on handlerCtx, which
	// outlives the loop by DrainTimeout so in-flight queries can finish.
	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	handlerCtx, cancelHandlers := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelHandlers()
	go func() {
		select {
		case <-c.closed:
			cancel()
		case <-loopCtx.Done():
			c.Close()
		}

		drain := time.NewTimer(c.cfg.DrainTimeout)
		defer drain.Stop()
		select {
		case <-drain.C:
			c.logger.Warn("Cancelling in-flight queries", "drain_timeout", c.cfg.DrainTimeout)
			cancelHandlers()
		case <-handlerCtx.Done():
		}
	}()

	dispatch := func(j job) {
		c.handler.HandleQuery(handlerCtx, j.item, j.reply)
	}
	if c.cfg.Workers > 1 {
		var poolOpts []worker.Option[job]
		if c.poolReg != nil {
			poolOpts = append(poolOpts, worker.WithMetricsRegistry[job](c.poolReg, "hub_queries"))
		}
		pool := worker.NewPool(c.cfg.Workers, c.cfg.QueueSize, func(ctx context.Context, j job) error {
			c.handler.HandleQuery(ctx, j.item, j.reply)
			return nil
		}, poolOpts...)
		if err := pool.Start(handlerCtx); err != nil {
			return errs.Wrap(err, "hubclient", "Run", "start worker pool")
		}
		defer func() {
			if err := pool.Stop(c.cfg.DrainTimeout); err != nil {
				c.logger.Warn("Worker pool did not drain", "error", err)
			}
		}()
		dispatch = func(j job) {
			if err := pool.SubmitWait(loopCtx, j); err != nil {
				c.logger.Debug("Query not dispatched", "error", err)
				_ = j.reply.Reply(message.NotFound())
			}
		}
	}

	return c.connectLoop(loopCtx, dispatch)
}

// connectLoop dials, serves and re-dials until ctx is done
func (c *Client) connectLoop(ctx context.Context, dispatch func(job)) error {
	backoff := c.cfg.Reconnect.backoff()
	failures := 0

	for {
		c.setState(StateConnecting)
		conn, err := c.dial(ctx)
		c.setDialError(err)
		if err == nil {
			failures = 0
			c.logger.Info("Connected to hub", "url", c.cfg.URL)
			c.setState(StateConnected)
			c.serve(conn, dispatch)
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("Hub connection lost")
		} else {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			if limit := c.cfg.Reconnect.MaxRetries; limit > 0 && failures > limit {
				c.logger.Error("Giving up on hub", "attempts", failures, "error", err)
				return errs.Wrap(errs.Join(errs.ErrMaxRetriesExceeded, err), "hubclient", "Run", "connect")
			}
		}

		// failures counts consecutive failed dials since the last handshake
		delay := retry.Backoff(backoff, failures)
		c.setState(StateReconnecting)
		c.metrics.RecordHubReconnect()
		c.logger.Info("Reconnecting to hub", "attempt", failures+1, "delay", delay, "last_error", err)
		if err := retry.Sleep(ctx, delay); err != nil {
			return nil
		}
	}
}

func (c *Client) dial(ctx context.Context) (*connection, error) {
	headers := http.Header{}
	if c.cfg.Token != "" {
		headers.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	ws, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, headers)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		return nil, errs.WrapTransient(errs.Join(errs.ErrNoConnection, err), "hubclient", "dial", "connect to hub")
	}
	return newConnection(ws, c.cfg.WriteTimeout), nil
}

// serve reads one frame at a time until the connection drops
func (c *Client) serve(conn *connection, dispatch func(job)) {
	c.mu.Lock()
	if c.isClosed() {
		c.mu.Unlock()
		conn.close()
		return
	}
	c.conn = conn
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		conn.close()
	}()

	if c.cfg.PingInterval > 0 {
		pongWait := 2 * c.cfg.PingInterval
		_ = conn.ws.SetReadDeadline(time.Now().Add(pongWait))
		conn.ws.SetPongHandler(func(string) error {
			return conn.ws.SetReadDeadline(time.Now().Add(pongWait))
		})
		go c.keepalive(conn)
	}

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			if !conn.closed() {
				c.logger.Debug("Hub read failed", "error", err)
			}
			return
		}
		c.metrics.RecordQueryReceived()

		r := &replier{conn: conn, logger: c.logger, metrics: c.metrics}
		item, err := message.DecodeQuery(data)
		if err != nil {
			c.metrics.RecordDecodeError()
			c.logger.Warn("Undecodable query frame", "error", err)
			_ = r.Reply(message.NotFound())
			continue
		}
		dispatch(job{item: item, reply: r})
	}
}

func (c *Client) keepalive(conn *connection) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-conn.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := conn.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.logger.Debug("Hub ping failed", "error", err)
				conn.close()
				return
			}
		}
	}
}

func (c *Client) setDialError(err error) {
	c.dialErrMu.Lock()
	c.dialErr = err
	c.dialErrMu.Unlock()
}

func (c *Client) dialError() error {
	c.dialErrMu.Lock()
	defer c.dialErrMu.Unlock()
	return c.dialErr
}

func (c *Client) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Close moves the client to Closed and drops the live connection. It does
// not wait for in-flight queries; their replies are discarded and their
// context is cancelled DrainTimeout later.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)

		c.mu.Lock()
		conn := c.conn
		c.conn = nil
		c.mu.Unlock()
		if conn != nil {
			conn.close()
		}

		c.setState(StateClosed)
		c.logger.Info("Hub client closed")
	})
	return nil
}
