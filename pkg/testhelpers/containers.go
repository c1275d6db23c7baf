// Package testhelpers provides shared fixtures for integration tests that
// need a real warehouse.
package testhelpers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// WarehouseImage is the stock postgres image integration tests run against.
const WarehouseImage = "postgres:16-alpine"

// WarehouseDB holds a shared postgres container and connection pool seeded
// with a small rental schema.
type WarehouseDB struct {
	Container testcontainers.Container
	Pool      *pgxpool.Pool
	ConnStr   string
}

var (
	sharedWarehouseDB     *WarehouseDB
	sharedWarehouseDBOnce sync.Once
	sharedWarehouseDBErr  error
)

// GetWarehouseDB returns a shared postgres container for integration tests.
// The container is created once and reused across all tests in the run.
func GetWarehouseDB(t *testing.T) *WarehouseDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedWarehouseDBOnce.Do(func() {
		sharedWarehouseDB, sharedWarehouseDBErr = setupWarehouseDB()
	})

	if sharedWarehouseDBErr != nil {
		t.Fatalf("Failed to setup warehouse container: %v", sharedWarehouseDBErr)
	}

	return sharedWarehouseDB
}

func setupWarehouseDB() (*WarehouseDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        WarehouseImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "pagila",
			"POSTGRES_USER":     "queryward",
			"POSTGRES_PASSWORD": "test_password",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start warehouse container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://queryward:test_password@%s:%s/pagila?sslmode=disable",
		host, port.Port())

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection with retry
	for i := 0; i < 10; i++ {
		if err := pool.Ping(ctx); err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}

	if err := seedRentalSchema(ctx, pool); err != nil {
		return nil, fmt.Errorf("failed to seed rental schema: %w", err)
	}

	return &WarehouseDB{
		Container: container,
		Pool:      pool,
		ConnStr:   connStr,
	}, nil
}

// seedRentalSchema creates the handful of tables preflight tests plan
// statements against.
func seedRentalSchema(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS film (
			film_id integer PRIMARY KEY,
			title text NOT NULL,
			rating text,
			length integer
		)`,
		`CREATE TABLE IF NOT EXISTS rental (
			rental_id integer PRIMARY KEY,
			film_id integer REFERENCES film (film_id),
			rental_date timestamptz NOT NULL
		)`,
		`INSERT INTO film (film_id, title, rating, length)
			VALUES (1, 'ACADEMY DINOSAUR', 'PG', 86), (2, 'ACE GOLDFINGER', 'G', 48)
			ON CONFLICT DO NOTHING`,
		`INSERT INTO rental (rental_id, film_id, rental_date)
			VALUES (1, 1, now()), (2, 2, now())
			ON CONFLICT DO NOTHING`,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
