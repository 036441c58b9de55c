// Package testenv starts the external services integration tests need.
// POSTGRES_URL and REDIS_ADDR point the tests at already running instances;
// without them a container is started per test binary. Packages sharing one
// database through POSTGRES_URL should be run with -p 1.
package testenv

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	postgresOnce sync.Once
	postgresURL  string
	postgresErr  error

	redisOnce sync.Once
	redisAddr string
	redisErr  error
)

// Postgres returns a connection to a database usable by the calling test.
func Postgres(t *testing.T) *sqlx.DB {
	t.Helper()
	skipShort(t)

	postgresOnce.Do(func() {
		if url := os.Getenv("POSTGRES_URL"); url != "" {
			postgresURL = url
			return
		}
		postgresURL, postgresErr = startPostgresContainer()
	})
	require.NoError(t, postgresErr, "postgres setup failed")

	db, err := sqlx.Open("postgres", postgresURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.Eventually(t, func() bool {
		return db.Ping() == nil
	}, 30*time.Second, 200*time.Millisecond, "postgres is not reachable")

	return db
}

// Redis returns a client of a redis usable by the calling test.
func Redis(t *testing.T) *redis.Client {
	t.Helper()
	skipShort(t)

	redisOnce.Do(func() {
		if addr := os.Getenv("REDIS_ADDR"); addr != "" {
			redisAddr = addr
			return
		}
		redisAddr, redisErr = startRedisContainer()
	})
	require.NoError(t, redisErr, "redis setup failed")

	client := redis.NewClient(&redis.Options{Addr: redisAddr})
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Ping(context.Background()).Err(), "failed to connect to redis")

	return client
}

func skipShort(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
}

// Containers are left running until the test binary exits; ryuk removes them.
func startPostgresContainer() (string, error) {
	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "publisher",
			"POSTGRES_PASSWORD": "publisher",
			"POSTGRES_DB":       "publisher",
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
		return "", err
	}

	host, err := container.Host(ctx)
	if err != nil {
		return "", err
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("postgres://publisher:publisher@%s:%s/publisher?sslmode=disable", host, port.Port()), nil
}

func startRedisContainer() (string, error) {
	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", err
	}

	host, err := container.Host(ctx)
	if err != nil {
		return "", err
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		return "", err
	}

	return host + ":" + port.Port(), nil
}
