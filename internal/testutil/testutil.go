// Package testutil provides postgres for integration tests.
package testutil

import (
	"context"
	"net"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/nkiryanov/chatrooms/internal/db"
)

// Set to run tests against an existing database instead of a container, e.g. in CI with a postgres service.
// Tests never commit, see WithTx.
const dsnEnv = "CHATROOMS_TEST_DATABASE_URI"

const postgresImage = "postgres:17-alpine"

// Return random free port on 127.0.0.1 address
func RandomPort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:")
	if err != nil {
		return 0, err
	}
	defer ln.Close() // nolint:errcheck

	return ln.Addr().(*net.TCPAddr).Port, nil
}

type PostgresContainer struct {
	DSN       string
	Pool      *pgxpool.Pool
	Terminate func()
}

// StartPostgresContainer returns migrated database.
// Test is skipped when docker is not available and no database is given through env.
func StartPostgresContainer(t *testing.T) PostgresContainer {
	t.Helper()

	if dsn := os.Getenv(dsnEnv); dsn != "" {
		pool := connect(t, dsn)
		return PostgresContainer{DSN: dsn, Pool: pool, Terminate: pool.Close}
	}

	testcontainers.SkipIfProviderIsNotHealthy(t)

	container, err := postgres.Run(t.Context(),
		postgresImage,
		postgres.WithDatabase("chatrooms-test"),
		postgres.WithUsername("chatrooms"),
		postgres.WithPassword("pwd"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err, "can't start postgres container")

	dsn, err := container.ConnectionString(t.Context(), "sslmode=disable")
	require.NoError(t, err)
	t.Logf("postgres container started, DSN=%s", dsn)

	pool := connect(t, dsn)

	return PostgresContainer{
		DSN:  dsn,
		Pool: pool,
		Terminate: func() {
			pool.Close()
			testcontainers.CleanupContainer(t, container)
		},
	}
}

func connect(t *testing.T, dsn string) *pgxpool.Pool {
	pool, err := db.ConnectAndMigrate(t.Context(), dsn)
	require.NoError(t, err, "can't connect and migrate %s", dsn)
	return pool
}

type beginner interface {
	Begin(context.Context) (pgx.Tx, error)
}

// WithTx runs testFunc inside a transaction that is always rolled back
func WithTx(db beginner, t *testing.T, testFunc func(tx pgx.Tx)) {
	t.Helper()

	tx, err := db.Begin(t.Context())
	require.NoError(t, err)

	defer func() {
		// context may be done already if testFunc failed the test
		require.NoError(t, tx.Rollback(context.WithoutCancel(t.Context())))
	}()

	testFunc(tx)
}
