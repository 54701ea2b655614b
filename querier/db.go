package querier

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/Gondolav/inventory-connector/config"
	errs "github.com/Gondolav/inventory-connector/errors"
	"github.com/Gondolav/inventory-connector/message"
	"github.com/Gondolav/inventory-connector/translate"
)

// DBQuerier queries a relational table through database/sql.
type DBQuerier struct {
	table       string
	tr          *translate.Translator
	logger      *slog.Logger
	pingTimeout time.Duration
	dialect     Dialect
	dialectErr  error

	statement string
	columns   []string
	args      []any

	mu       sync.RWMutex
	injected *sql.DB
	db       *sql.DB
}

// NewDB creates a DBQuerier. The statement is built once; the dialect is
// resolved from cfg.URL and an unsupported scheme is reported by Connect.
func NewDB(cfg *config.Config, tr *translate.Translator, opts ...Option) *DBQuerier {
	o := buildOptions(opts)
	dialect, err := ParseDialect(cfg.URL)

	q := &DBQuerier{
		table:       cfg.Table(),
		tr:          tr,
		logger:      o.logger.With("component", "db-querier", "tenant", cfg.ID),
		pingTimeout: o.pingTimeout,
		dialect:     dialect,
		dialectErr:  err,
		injected:    o.db,
	}
	q.statement, q.columns, q.args = buildSelect(dialect, q.table, cfg.Fields)
	return q
}

// Dialect returns the resolved dialect.
func (q *DBQuerier) Dialect() Dialect {
	return q.dialect
}

// Statement returns the SELECT statement and its bound arguments.
func (q *DBQuerier) Statement() (string, []any) {
	return q.statement, append([]any(nil), q.args...)
}

// Connect opens the pool and pings the database.
func (q *DBQuerier) Connect(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.db != nil {
		return nil
	}
	if q.dialectErr != nil {
		return errs.WrapFatal(errs.Join(errs.ErrNoConnection, q.dialectErr), "DBQuerier", "Connect", "resolve dialect")
	}

	db := q.injected
	if db == nil {
		var err error
		db, err = sql.Open(q.dialect.Driver, q.dialect.DSN)
		if err != nil {
			return connectionError(err, "DBQuerier", "Connect", "open database")
		}
		db.SetMaxOpenConns(q.dialect.MaxOpenConns)
		db.SetMaxIdleConns(q.dialect.MaxIdleConns)
		db.SetConnMaxLifetime(q.dialect.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, q.pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if q.injected == nil {
			_ = db.Close()
		}
		return connectionError(err, "DBQuerier", "Connect", "ping database")
	}

	q.db = db
	q.logger.Info("Connected to database", "dialect", q.dialect.Name, "table", q.table)
	return nil
}

// Disconnect closes the pool. It is safe to call repeatedly or after a
// failed Connect.
func (q *DBQuerier) Disconnect() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	db := q.db
	if db == nil {
		db = q.injected
	}
	q.db = nil
	q.injected = nil
	if db == nil {
		return nil
	}

	q.logger.Info("Disconnecting from database")
	if err := db.Close(); err != nil {
		return errs.Wrap(err, "DBQuerier", "Disconnect", "close database")
	}
	return nil
}

// Query returns every row whose condition column holds one of the allowed
// values. The query item itself does not narrow the result.
func (q *DBQuerier) Query(ctx context.Context, _ message.Item) ([]message.Item, error) {
	q.mu.RLock()
	db := q.db
	q.mu.RUnlock()
	if db == nil {
		return nil, connectionError(fmt.Errorf("not connected"), "DBQuerier", "Query", "check connection")
	}

	rows, err := db.QueryContext(ctx, q.statement, q.args...)
	if err != nil {
		return nil, backendError(err, "DBQuerier", "Query", "execute select")
	}
	defer rows.Close()

	records, err := scanRecords(rows, q.columns)
	if err != nil {
		return nil, backendError(err, "DBQuerier", "Query", "read rows")
	}

	items, err := toItems(q.tr, records)
	if err != nil {
		return nil, errs.Wrap(err, "DBQuerier", "Query", "map row")
	}
	q.logger.Debug("Database query finished", "rows", len(items))
	return items, nil
}

// buildSelect renders
//
//	SELECT <id>, <type>, <manufacturer>, <model> FROM <table>
//	WHERE <cond> = <p1> OR <cond> = <p2> ...
//
// Column and table names come from trusted configuration; condition values
// are always bound.
func buildSelect(d Dialect, table string, fields config.FieldMapping) (string, []string, []any) {
	columns := make([]string, 0, 4)
	seen := make(map[string]bool, 4)
	for _, c := range []string{fields.ID, fields.Type, fields.Manufacturer, fields.Model} {
		if !seen[c] {
			seen[c] = true
			columns = append(columns, c)
		}
	}

	allowed := fields.Condition.AllowedValues
	clauses := make([]string, 0, len(allowed))
	args := make([]any, 0, len(allowed))
	for i, value := range allowed {
		name := BindName(i+1, value)
		clauses = append(clauses, fields.Condition.Name+" = "+d.Placeholder(i+1, name))
		args = append(args, d.Arg(name, value))
	}

	stmt := "SELECT " + strings.Join(columns, ", ") + " FROM " + table
	if len(clauses) > 0 {
		stmt += " WHERE " + strings.Join(clauses, " OR ")
	}
	return stmt, columns, args
}

// BindName returns the bind identifier for the i-th allowed value:
// "v<i>_" followed by the value with every rune outside [A-Za-z0-9_]
// replaced by '_'. The index keeps names unique when values sanitize alike.
func BindName(i int, value string) string {
	var b strings.Builder
	b.WriteString("v")
	b.WriteString(strconv.Itoa(i))
	b.WriteByte('_')
	for _, r := range value {
		if r < unicode.MaxASCII && (r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// scanRecords reads rows into records keyed by the selected column names.
// Keys are taken positionally so drivers that fold identifier case still
// line up with the configured names.
func scanRecords(rows *sql.Rows, selected []string) ([]message.Record, error) {
	colNames, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("get columns: %w", err)
	}
	keys := colNames
	if len(colNames) == len(selected) {
		keys = selected
	}

	values := make([]any, len(keys))
	valuePtrs := make([]any, len(keys))
	for i := range values {
		valuePtrs[i] = &values[i]
	}

	var records []message.Record
	for rows.Next() {
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("row scan: %w", err)
		}

		record := make(message.Record, len(keys))
		for i, key := range keys {
			switch v := values[i].(type) {
			case []byte:
				record[key] = string(v)
			default:
				record[key] = v
			}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return records, nil
}
