// Package querier fetches candidate items from a tenant backend.
//
// A Querier is selected once from the tenant configuration: DBQuerier runs a
// single parameterized SELECT against a relational table, APIQuerier issues a
// templated GET against a REST endpoint. Only the condition filter is pushed
// to the backend; relevance filtering is left to the matcher.
//
// Both variants own an explicitly acquired session. Connect must be called
// before the first Query, and Disconnect releases the session. Both are
// idempotent. Query is safe for concurrent use once connected.
//
// Error kinds:
//   - connection failures match errors.ErrNoConnection (transient)
//   - query failures match errors.ErrBackendFailed (transient)
//   - records missing a mapped column match errors.ErrKeyNotFound (invalid)
package querier

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/Gondolav/inventory-connector/config"
	errs "github.com/Gondolav/inventory-connector/errors"
	"github.com/Gondolav/inventory-connector/message"
	"github.com/Gondolav/inventory-connector/translate"
)

// Querier is the backend capability used by the router.
type Querier interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Query(ctx context.Context, item message.Item) ([]message.Item, error)
}

const (
	defaultPingTimeout = 10 * time.Second
	defaultHTTPTimeout = 30 * time.Second
)

type options struct {
	logger      *slog.Logger
	pingTimeout time.Duration
	db          *sql.DB
	httpClient  *http.Client
	limiter     *rate.Limiter
}

// Option configures a Querier.
type Option func(*options)

// WithLogger sets the logger used by the querier.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithPingTimeout bounds the reachability check done by DBQuerier.Connect.
func WithPingTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pingTimeout = d
		}
	}
}

// WithDB hands an already opened pool to a DBQuerier instead of opening one
// from the configuration URL. The dialect is still derived from the URL. The
// querier takes ownership and closes db on Disconnect.
func WithDB(db *sql.DB) Option {
	return func(o *options) { o.db = db }
}

// WithHTTPClient sets the base client used by an APIQuerier. Authentication
// is layered on top of its transport.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// WithRateLimit caps outgoing API requests to rps per second with the given
// burst. A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(o *options) {
		if rps <= 0 {
			o.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		o.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger:      slog.Default(),
		pingTimeout: defaultPingTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New selects the querier variant for cfg.Kind.
func New(cfg *config.Config, tr *translate.Translator, opts ...Option) (Querier, error) {
	if cfg == nil || tr == nil {
		return nil, errs.WrapFatal(errs.ErrInvalidConfig, "Querier", "New", "check arguments")
	}
	switch cfg.Kind {
	case config.KindDB:
		return NewDB(cfg, tr, opts...), nil
	case config.KindAPI:
		return NewAPI(cfg, tr, opts...), nil
	default:
		return nil, errs.WrapFatal(
			errs.Join(errs.ErrUnsupportedBackend, fmt.Errorf("connection kind %q", cfg.Kind)),
			"Querier", "New", "select backend")
	}
}

func connectionError(err error, component, method, action string) error {
	return errs.WrapTransient(errs.Join(errs.ErrNoConnection, err), component, method, action)
}

func backendError(err error, component, method, action string) error {
	return errs.WrapTransient(errs.Join(errs.ErrBackendFailed, err), component, method, action)
}

// toItems maps native records through the translator, stopping at the first
// record that lacks a mapped column.
func toItems(tr *translate.Translator, records []message.Record) ([]message.Item, error) {
	items := make([]message.Item, 0, len(records))
	for _, rec := range records {
		item, err := tr.Item(rec)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}
