package querier

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gondolav/inventory-connector/config"
	errs "github.com/Gondolav/inventory-connector/errors"
	"github.com/Gondolav/inventory-connector/message"
	"github.com/Gondolav/inventory-connector/translate"
)

func testFields(allowed ...string) config.FieldMapping {
	return config.FieldMapping{
		ID:           "eid",
		Type:         "category",
		Manufacturer: "brand",
		Model:        "model",
		Condition:    config.Condition{Name: "status", AllowedValues: allowed},
	}
}

func dbConfig(url string, allowed ...string) *config.Config {
	return &config.Config{
		ID:       1,
		Kind:     config.KindDB,
		URL:      url,
		Token:    "t",
		Language: config.LanguageEN,
		Fields:   testFields(allowed...),
		DB:       &config.DBParams{Table: "items"},
	}
}

func newDBQuerier(t *testing.T, cfg *config.Config, opts ...Option) *DBQuerier {
	t.Helper()
	q := NewDB(cfg, translate.New(cfg.Fields), opts...)
	t.Cleanup(func() { _ = q.Disconnect() })
	return q
}

var bosch = message.Item{Type: "Bed", Manufacturer: "Bosch", Model: "Med231"}

func TestBuildSelect(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		wantStmt string
		wantArgs []any
	}{
		{
			name:     "sqlite named",
			url:      "sqlite://mem",
			wantStmt: "SELECT eid, category, brand, model FROM items WHERE status = :v1_available OR status = :v2_in_stock",
			wantArgs: []any{sql.Named("v1_available", "available"), sql.Named("v2_in_stock", "in stock")},
		},
		{
			name:     "postgres positional",
			url:      "postgres://u:p@localhost/inv",
			wantStmt: "SELECT eid, category, brand, model FROM items WHERE status = $1 OR status = $2",
			wantArgs: []any{"available", "in stock"},
		},
		{
			name:     "mysql question marks",
			url:      "mysql://u:p@localhost/inv",
			wantStmt: "SELECT eid, category, brand, model FROM items WHERE status = ? OR status = ?",
			wantArgs: []any{"available", "in stock"},
		},
		{
			name:     "oracle named",
			url:      "oracle://u:p@localhost:1521/XE",
			wantStmt: "SELECT eid, category, brand, model FROM items WHERE status = :v1_available OR status = :v2_in_stock",
			wantArgs: []any{sql.Named("v1_available", "available"), sql.Named("v2_in_stock", "in stock")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewDB(dbConfig(tt.url, "available", "in stock"), translate.New(testFields()))
			stmt, args := q.Statement()
			assert.Equal(t, tt.wantStmt, stmt)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestBuildSelect_DeduplicatesColumns(t *testing.T) {
	fields := testFields("available")
	fields.Model = "category"
	d, err := ParseDialect("postgres://localhost/inv")
	require.NoError(t, err)

	stmt, columns, _ := buildSelect(d, "items", fields)
	assert.Equal(t, "SELECT eid, category, brand FROM items WHERE status = $1", stmt)
	assert.Equal(t, []string{"eid", "category", "brand"}, columns)
}

func TestBindName(t *testing.T) {
	assert.Equal(t, "v1_available", BindName(1, "available"))
	assert.Equal(t, "v2_in_stock", BindName(2, "in stock"))
	assert.Equal(t, "v3_a_b_c_", BindName(3, "a-b.c'"))
	assert.Equal(t, "v4_caf_", BindName(4, "café"))
	assert.NotEqual(t, BindName(1, "a b"), BindName(2, "a-b"))
}

func TestDBQuerier_QueryWithMock(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)

	q := newDBQuerier(t, dbConfig("postgres://u:p@localhost/inv", "available", "disponible"), WithDB(db))
	require.NoError(t, q.Connect(context.Background()))

	rows := sqlmock.NewRows([]string{"eid", "category", "brand", "model"}).
		AddRow(int64(1), "Bed", "Bosch", "Med231").
		AddRow(int64(2), []byte("Bed"), "Bosch", "Med232")
	mock.ExpectQuery("SELECT eid, category, brand, model FROM items WHERE status = $1 OR status = $2").
		WithArgs("available", "disponible").
		WillReturnRows(rows)

	items, err := q.Query(context.Background(), bosch)
	require.NoError(t, err)
	assert.Equal(t, []message.Item{
		{ID: "1", Type: "Bed", Manufacturer: "Bosch", Model: "Med231"},
		{ID: "2", Type: "Bed", Manufacturer: "Bosch", Model: "Med232"},
	}, items)

	mock.ExpectClose()
	require.NoError(t, q.Disconnect())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBQuerier_EmptyResultIsNotAnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	q := newDBQuerier(t, dbConfig("postgres://localhost/inv", "available"), WithDB(db))
	require.NoError(t, q.Connect(context.Background()))

	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"eid", "category", "brand", "model"}))

	items, err := q.Query(context.Background(), bosch)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestDBQuerier_BackendError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	q := newDBQuerier(t, dbConfig("postgres://localhost/inv", "available"), WithDB(db))
	require.NoError(t, q.Connect(context.Background()))

	mock.ExpectQuery("SELECT").WillReturnError(sql.ErrConnDone)

	_, err = q.Query(context.Background(), bosch)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrBackendFailed)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.True(t, errs.IsTransient(err))
}

func TestDBQuerier_MissingColumnIsKeyError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	q := newDBQuerier(t, dbConfig("postgres://localhost/inv", "available"), WithDB(db))
	require.NoError(t, q.Connect(context.Background()))

	mock.ExpectQuery("SELECT").WillReturnRows(
		sqlmock.NewRows([]string{"eid", "category"}).AddRow(1, "Bed"))

	_, err = q.Query(context.Background(), bosch)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrKeyNotFound)
}

func TestDBQuerier_PingFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	mock.ExpectPing().WillReturnError(sql.ErrConnDone)

	q := newDBQuerier(t, dbConfig("postgres://localhost/inv", "available"), WithDB(db))
	err = q.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrNoConnection)
	assert.True(t, errs.IsTransient(err))
}

func TestDBQuerier_PingTimeout(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	mock.ExpectPing().WillDelayFor(time.Second)

	q := newDBQuerier(t, dbConfig("postgres://localhost/inv", "available"),
		WithDB(db), WithPingTimeout(20*time.Millisecond))

	start := time.Now()
	err = q.Connect(context.Background())
	require.Error(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.ErrorIs(t, err, errs.ErrNoConnection)
	assert.True(t, errs.IsTransient(err))
}

func TestDBQuerier_QueryBeforeConnect(t *testing.T) {
	q := newDBQuerier(t, dbConfig("sqlite://mem", "available"))

	_, err := q.Query(context.Background(), bosch)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrNoConnection)
}

func TestDBQuerier_UnsupportedScheme(t *testing.T) {
	q := newDBQuerier(t, dbConfig("mongodb://localhost/inv", "available"))

	err := q.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrNoConnection)
	assert.ErrorIs(t, err, errs.ErrUnsupportedBackend)
	assert.True(t, errs.IsFatal(err))
}

func TestDBQuerier_DisconnectIsIdempotent(t *testing.T) {
	q := newDBQuerier(t, dbConfig("sqlite://mem", "available"))

	assert.NoError(t, q.Disconnect())
	require.NoError(t, q.Connect(context.Background()))
	require.NoError(t, q.Connect(context.Background()))
	assert.NoError(t, q.Disconnect())
	assert.NoError(t, q.Disconnect())
}

func seedItems(t *testing.T, db *sql.DB) {
	t.Helper()
	_, err := db.Exec(`CREATE TABLE items (eid INTEGER, category TEXT, brand TEXT, model TEXT, status TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO items VALUES
		(1, 'Bed', 'Bosch', 'Med231', 'available'),
		(2, 'Bed', 'Bosch', 'Med232', 'in stock'),
		(3, 'Bed', 'Bosch', 'Med233', 'sold'),
		(4, 'Chair', 'Ikea', 'Poang', 'available')`)
	require.NoError(t, err)
}

func TestDBQuerier_SQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.db")

	seed, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	seedItems(t, seed)
	require.NoError(t, seed.Close())

	q := newDBQuerier(t, dbConfig("sqlite://"+path, "available", "in stock"))
	require.NoError(t, q.Connect(context.Background()))

	items, err := q.Query(context.Background(), bosch)
	require.NoError(t, err)
	assert.ElementsMatch(t, []message.Item{
		{ID: "1", Type: "Bed", Manufacturer: "Bosch", Model: "Med231"},
		{ID: "2", Type: "Bed", Manufacturer: "Bosch", Model: "Med232"},
		{ID: "4", Type: "Chair", Manufacturer: "Ikea", Model: "Poang"},
	}, items)
}

func TestDBQuerier_SQLiteInMemory(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	seedItems(t, db)

	q := newDBQuerier(t, dbConfig("sqlite://mem", "sold"), WithDB(db))
	require.NoError(t, q.Connect(context.Background()))

	items, err := q.Query(context.Background(), bosch)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Med233", items[0].Model)
}

func TestDBQuerier_MissingTable(t *testing.T) {
	q := newDBQuerier(t, dbConfig("sqlite://mem", "available"))
	require.NoError(t, q.Connect(context.Background()))

	_, err := q.Query(context.Background(), bosch)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrBackendFailed)
}
