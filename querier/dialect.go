package querier

import (
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/sijms/go-ora/v2"
	_ "modernc.org/sqlite"

	errs "github.com/Gondolav/inventory-connector/errors"
)

// BindStyle is the placeholder syntax a SQL driver expects.
type BindStyle int

const (
	// BindNamed uses :name placeholders with sql.Named arguments.
	BindNamed BindStyle = iota
	// BindDollar uses $1, $2, ...
	BindDollar
	// BindQuestion uses ?
	BindQuestion
)

// Dialect is the driver selection derived from a tenant database URL.
type Dialect struct {
	Name   string
	Driver string
	DSN    string
	Bind   BindStyle

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Placeholder returns the SQL text for the i-th (1-based) bound value.
func (d Dialect) Placeholder(i int, name string) string {
	switch d.Bind {
	case BindDollar:
		return "$" + strconv.Itoa(i)
	case BindQuestion:
		return "?"
	default:
		return ":" + name
	}
}

// Arg wraps value for the driver's bind style.
func (d Dialect) Arg(name, value string) any {
	if d.Bind == BindNamed {
		return sql.Named(name, value)
	}
	return value
}

// ParseDialect maps a database URL to a driver and DSN. Supported schemes are
// sqlite, sqlite3, postgres, postgresql, mysql and oracle.
func ParseDialect(rawURL string) (Dialect, error) {
	scheme, rest, ok := strings.Cut(rawURL, "://")
	if !ok {
		return Dialect{}, errs.Join(errs.ErrUnsupportedBackend, fmt.Errorf("database url has no scheme"))
	}

	switch strings.ToLower(scheme) {
	case "sqlite", "sqlite3":
		return sqliteDialect(rest), nil
	case "postgres", "postgresql":
		return Dialect{
			Name:            "postgres",
			Driver:          "postgres",
			DSN:             rawURL,
			Bind:            BindDollar,
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		}, nil
	case "mysql", "mariadb":
		dsn, err := mysqlDSN(rawURL)
		if err != nil {
			return Dialect{}, err
		}
		return Dialect{
			Name:            "mysql",
			Driver:          "mysql",
			DSN:             dsn,
			Bind:            BindQuestion,
			MaxOpenConns:    25,
			MaxIdleConns:    25,
			ConnMaxLifetime: 5 * time.Minute,
		}, nil
	case "oracle":
		return Dialect{
			Name:            "oracle",
			Driver:          "oracle",
			DSN:             rawURL,
			Bind:            BindNamed,
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		}, nil
	default:
		return Dialect{}, errs.Join(errs.ErrUnsupportedBackend, fmt.Errorf("database scheme %q", scheme))
	}
}

// sqliteDialect resolves "mem" and ":memory:" to a private in-memory database
// pinned to a single connection so every query sees the same data.
func sqliteDialect(path string) Dialect {
	d := Dialect{
		Name:   "sqlite",
		Driver: "sqlite",
		Bind:   BindNamed,
	}
	switch path {
	case "", "mem", ":memory:":
		d.DSN = ":memory:"
		d.MaxOpenConns = 1
		d.MaxIdleConns = 1
	default:
		d.DSN = path
		d.MaxOpenConns = 4
		d.MaxIdleConns = 4
		d.ConnMaxLifetime = 5 * time.Minute
	}
	return d
}

func mysqlDSN(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", errs.Join(errs.ErrUnsupportedBackend, fmt.Errorf("parse mysql url: %w", err))
	}

	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	if u.Port() == "" && u.Hostname() != "" {
		cfg.Addr = net.JoinHostPort(u.Hostname(), "3306")
	}
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	cfg.ParseTime = true
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}
	for key, values := range u.Query() {
		if len(values) == 0 {
			continue
		}
		if cfg.Params == nil {
			cfg.Params = make(map[string]string)
		}
		cfg.Params[key] = values[len(values)-1]
	}
	return cfg.FormatDSN(), nil
}
