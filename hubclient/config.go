package hubclient

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"time"

	errs "github.com/Gondolav/inventory-connector/errors"
	"github.com/Gondolav/inventory-connector/pkg/retry"
)

// Config holds the hub connection settings
type Config struct {
	URL   string
	Token string
	// TLS overrides the dialer's TLS settings for wss hubs
	TLS *tls.Config

	HandshakeTimeout time.Duration
	// PingInterval of zero disables keepalive pings and read deadlines
	PingInterval time.Duration
	WriteTimeout time.Duration

	// Workers > 1 handles queries concurrently; otherwise strictly in order
	Workers   int
	QueueSize int
	// DrainTimeout bounds how long Run waits for queued queries on exit and
	// how long in-flight handlers keep their context after Close
	DrainTimeout time.Duration

	Reconnect ReconnectConfig
}

// ReconnectConfig holds the reconnection backoff
type ReconnectConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxRetries      int // consecutive failed dials tolerated (0 = unlimited)
}

// DefaultConfig returns the defaults for a hub at hubURL
func DefaultConfig(hubURL, token string) Config {
	backoff := retry.Reconnect()
	return Config{
		URL:              hubURL,
		Token:            token,
		HandshakeTimeout: 45 * time.Second,
		PingInterval:     30 * time.Second,
		WriteTimeout:     10 * time.Second,
		Workers:          1,
		QueueSize:        256,
		DrainTimeout:     5 * time.Second,
		Reconnect: ReconnectConfig{
			InitialInterval: backoff.InitialDelay,
			MaxInterval:     backoff.MaxDelay,
			Multiplier:      backoff.Multiplier,
		},
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.URL == "" {
		return errs.WrapInvalid(errs.Join(errs.ErrInvalidConfig, fmt.Errorf("hub URL is required")),
			"hubclient", "Validate", "check URL")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return errs.WrapInvalid(errs.Join(errs.ErrInvalidConfig, err), "hubclient", "Validate", "parse URL")
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return errs.WrapInvalid(
			errs.Join(errs.ErrInvalidConfig, fmt.Errorf("hub URL scheme must be ws or wss, got %q", u.Scheme)),
			"hubclient", "Validate", "check URL")
	}
	if c.Reconnect.MaxRetries < 0 {
		return errs.WrapInvalid(errs.Join(errs.ErrInvalidConfig, fmt.Errorf("max retries must not be negative")),
			"hubclient", "Validate", "check reconnect")
	}
	return nil
}

func (c Config) withDefaults() Config {
	def := DefaultConfig(c.URL, c.Token)
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.QueueSize <= 0 {
		c.QueueSize = def.QueueSize
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = def.DrainTimeout
	}
	if c.Reconnect.InitialInterval <= 0 {
		c.Reconnect.InitialInterval = def.Reconnect.InitialInterval
	}
	if c.Reconnect.MaxInterval <= 0 {
		c.Reconnect.MaxInterval = def.Reconnect.MaxInterval
	}
	if c.Reconnect.Multiplier < 1 {
		c.Reconnect.Multiplier = def.Reconnect.Multiplier
	}
	return c
}

// backoff converts the reconnect settings into a retry config
func (r ReconnectConfig) backoff() retry.Config {
	return retry.Config{
		InitialDelay: r.InitialInterval,
		MaxDelay:     r.MaxInterval,
		Multiplier:   r.Multiplier,
	}
}
