//go:build integration
// +build integration

package querier

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Gondolav/inventory-connector/message"
)

// startPostgresContainer starts a PostgreSQL container and returns the container and connection URL
func startPostgresContainer(ctx context.Context, t *testing.T) (testcontainers.Container, string) {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "inv",
			"POSTGRES_PASSWORD": "inv",
			"POSTGRES_DB":       "inventory",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return container, fmt.Sprintf("postgres://inv:inv@%s:%s/inventory?sslmode=disable", host, port.Port())
}

func TestIntegration_PostgresQuerier(t *testing.T) {
	ctx := context.Background()
	container, url := startPostgresContainer(ctx, t)
	defer container.Terminate(ctx)

	seed, err := sql.Open("postgres", url)
	require.NoError(t, err)
	defer seed.Close()
	require.Eventually(t, func() bool { return seed.PingContext(ctx) == nil }, 30*time.Second, 500*time.Millisecond)
	seedItems(t, seed)

	q := newDBQuerier(t, dbConfig(url, "available", "in stock"))
	require.NoError(t, q.Connect(ctx))

	items, err := q.Query(ctx, bosch)
	require.NoError(t, err)
	assert.ElementsMatch(t, []message.Item{
		{ID: "1", Type: "Bed", Manufacturer: "Bosch", Model: "Med231"},
		{ID: "2", Type: "Bed", Manufacturer: "Bosch", Model: "Med232"},
		{ID: "4", Type: "Chair", Manufacturer: "Ikea", Model: "Poang"},
	}, items)
}
