package hubclient

import (
	"github.com/Gondolav/inventory-connector/health"
)

// State is the connection state of the client
type State int32

// Connection states
const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// StateListener is called synchronously on every transition
type StateListener func(from, to State)

// State returns the current connection state
func (c *Client) State() State {
	return State(c.state.Load())
}

// OnStateChange registers a listener for state transitions
func (c *Client) OnStateChange(fn StateListener) {
	if fn == nil {
		return
	}
	c.listenersMu.Lock()
	c.listeners = append(c.listeners, fn)
	c.listenersMu.Unlock()
}

// setState moves to next unless the client is already closed
func (c *Client) setState(next State) {
	var prev State
	for {
		prev = c.State()
		if prev == next || prev == StateClosed {
			return
		}
		if c.state.CompareAndSwap(int32(prev), int32(next)) {
			break
		}
	}

	c.logger.Debug("Hub state changed", "from", prev.String(), "state", next.String())
	c.metrics.RecordHubState(int(next), next == StateConnected)

	c.listenersMu.RLock()
	listeners := c.listeners
	c.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(prev, next)
	}
}

// Health reports the hub link: healthy when connected, degraded while
// (re)connecting, unhealthy otherwise. A degraded status carries the last
// dial error with addresses and credentials stripped.
func (c *Client) Health() health.Status {
	state := c.State()
	switch state {
	case StateConnected:
		return health.NewHealthy("hub", "connected")
	case StateConnecting, StateReconnecting:
		if err := c.dialError(); err != nil {
			return health.NewDegraded("hub", health.SanitizeMessage(state.String()+": "+err.Error()))
		}
		return health.NewDegraded("hub", state.String())
	default:
		return health.NewUnhealthy("hub", state.String())
	}
}
