package querier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/Gondolav/inventory-connector/config"
	errs "github.com/Gondolav/inventory-connector/errors"
	"github.com/Gondolav/inventory-connector/message"
	"github.com/Gondolav/inventory-connector/translate"
)

const maxResponseBytes = 32 << 20

// Auth values understood by APIQuerier. Anything else is used as the
// Authorization scheme, e.g. "Token" sends "Authorization: Token <token>".
const (
	AuthBearer       = "bearer"
	AuthNone         = "none"
	AuthHeaderPrefix = "header:"
	AuthQueryPrefix  = "query:"
)

// APIQuerier queries a REST endpoint that returns a JSON array of records.
type APIQuerier struct {
	baseURL    string
	token      string
	endpoint   config.Endpoint
	condition  config.Condition
	tr         *translate.Translator
	logger     *slog.Logger
	limiter    *rate.Limiter
	baseClient *http.Client

	mu     sync.RWMutex
	client *http.Client
}

// NewAPI creates an APIQuerier. cfg.API must be set.
func NewAPI(cfg *config.Config, tr *translate.Translator, opts ...Option) *APIQuerier {
	o := buildOptions(opts)
	endpoint, _ := cfg.Endpoint()
	cond := cfg.Fields.Condition
	cond.AllowedValues = append([]string(nil), cond.AllowedValues...)

	return &APIQuerier{
		baseURL:    cfg.URL,
		token:      cfg.Token,
		endpoint:   endpoint,
		condition:  cond,
		tr:         tr,
		logger:     o.logger.With("component", "api-querier", "tenant", cfg.ID),
		limiter:    o.limiter,
		baseClient: o.httpClient,
	}
}

// Connect builds the HTTP client, layering authentication onto the base
// transport. No request is made.
func (q *APIQuerier) Connect(_ context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.client != nil {
		return nil
	}

	base := q.baseClient
	if base == nil {
		base = &http.Client{Timeout: defaultHTTPTimeout}
	}
	client := *base
	if strings.EqualFold(q.endpoint.Auth, AuthBearer) {
		client.Transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: q.token, TokenType: "Bearer"}),
			Base:   base.Transport,
		}
	}

	q.client = &client
	q.logger.Info("API client ready", "path", q.endpoint.Path, "auth", authKind(q.endpoint.Auth))
	return nil
}

// Disconnect releases idle connections. It is safe to call repeatedly.
func (q *APIQuerier) Disconnect() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.client == nil {
		return nil
	}
	q.client.CloseIdleConnections()
	q.client = nil
	q.logger.Info("API client released")
	return nil
}

// URL returns the request URL, including the condition filter and any
// query-string credential.
func (q *APIQuerier) URL() (*url.URL, error) {
	raw := strings.TrimRight(q.baseURL, "/") + "/" + strings.TrimLeft(q.endpoint.ResolvedPath(), "/")
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}

	values := u.Query()
	for key, value := range q.endpoint.QueryParams {
		values.Set(key, value)
	}
	encodeCondition(values, q.condition, q.endpoint.ConditionEncoding)
	if name, ok := strings.CutPrefix(q.endpoint.Auth, AuthQueryPrefix); ok && name != "" {
		values.Set(name, q.token)
	}
	u.RawQuery = values.Encode()
	return u, nil
}

// Query fetches the endpoint and maps each record of the JSON array.
// Non-GET endpoints yield no items and make no request.
func (q *APIQuerier) Query(ctx context.Context, _ message.Item) ([]message.Item, error) {
	q.mu.RLock()
	client := q.client
	q.mu.RUnlock()
	if client == nil {
		return nil, connectionError(fmt.Errorf("not connected"), "APIQuerier", "Query", "check connection")
	}

	if q.endpoint.Method != config.MethodGET {
		q.logger.Debug("Skipping non-GET endpoint", "method", q.endpoint.Method)
		return nil, nil
	}

	if q.limiter != nil {
		if err := q.limiter.Wait(ctx); err != nil {
			return nil, errs.WrapTransient(errs.Join(errs.ErrRateLimited, err), "APIQuerier", "Query", "wait for rate limit")
		}
	}

	u, err := q.URL()
	if err != nil {
		return nil, backendError(err, "APIQuerier", "Query", "build url")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, backendError(err, "APIQuerier", "Query", "build request")
	}
	req.Header.Set("Accept", "application/json")
	q.authorize(req)

	resp, err := client.Do(req)
	if err != nil {
		return nil, backendError(err, "APIQuerier", "Query", "send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, backendError(fmt.Errorf("unexpected status %d", resp.StatusCode), "APIQuerier", "Query", "check status")
	}

	dec := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes))
	dec.UseNumber()
	var records []message.Record
	if err := dec.Decode(&records); err != nil {
		return nil, backendError(err, "APIQuerier", "Query", "decode body")
	}

	items, err := toItems(q.tr, records)
	if err != nil {
		return nil, errs.Wrap(err, "APIQuerier", "Query", "map record")
	}
	q.logger.Debug("API query finished", "records", len(items))
	return items, nil
}

func (q *APIQuerier) authorize(req *http.Request) {
	auth := q.endpoint.Auth
	switch {
	case strings.EqualFold(auth, AuthBearer), strings.EqualFold(auth, AuthNone):
	case strings.HasPrefix(auth, AuthQueryPrefix):
	case strings.HasPrefix(auth, AuthHeaderPrefix):
		if name := strings.TrimPrefix(auth, AuthHeaderPrefix); name != "" {
			req.Header.Set(name, q.token)
		}
	default:
		req.Header.Set("Authorization", auth+" "+q.token)
	}
}

func encodeCondition(values url.Values, cond config.Condition, enc config.ConditionEncoding) {
	switch enc {
	case config.EncodingComma:
		values.Set(cond.Name, strings.Join(cond.AllowedValues, ","))
	case config.EncodingBrackets:
		values[cond.Name+"[]"] = append([]string(nil), cond.AllowedValues...)
	default:
		values[cond.Name] = append([]string(nil), cond.AllowedValues...)
	}
}

// authKind names the auth mode for logs without exposing header names.
func authKind(auth string) string {
	switch {
	case strings.EqualFold(auth, AuthBearer):
		return AuthBearer
	case strings.EqualFold(auth, AuthNone):
		return AuthNone
	case strings.HasPrefix(auth, AuthHeaderPrefix):
		return "header"
	case strings.HasPrefix(auth, AuthQueryPrefix):
		return "query"
	default:
		return "scheme"
	}
}
