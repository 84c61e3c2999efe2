//go:build integration

package postgres

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/activityfeed/internal/domain"
)

func TestRepositoryRecordsEntriesAndOutbox(t *testing.T) {
	ctx := context.Background()
	pool := startDatabase(t, ctx)
	repo := NewRepository(pool)

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i, action := range []domain.ActionType{domain.ActionReservation, domain.ActionInquiry, domain.ActionShare} {
		require.NoError(t, repo.Record(ctx, domain.ActivityLogEntry{
			ID:          uuid.NewString(),
			ActionType:  action,
			SubjectName: "Roadster",
			SessionID:   "session-1",
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		}))
	}

	records, err := repo.FetchRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, string(domain.ActionShare), records[0].ActionType)
	require.Equal(t, string(domain.ActionInquiry), records[1].ActionType)

	ev, err := domain.DecodeRecord(records[0])
	require.NoError(t, err)
	require.True(t, base.Add(2*time.Second).Equal(ev.OccurredAt))
	require.Empty(t, ev.ActorName)

	page, next, err := repo.ListRecent(ctx, nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.NotNil(t, next)

	rest, next, err := repo.ListRecent(ctx, next, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	require.Nil(t, next)
	require.Equal(t, domain.ActionReservation, rest[0].ActionType)

	var pending int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM outbox WHERE published_at IS NULL AND topic = $1`, domain.ActivityLogTopic).Scan(&pending))
	require.Equal(t, 3, pending)
}

func startDatabase(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("storefront"),
		postgrescontainer.WithUsername("storefront"),
		postgrescontainer.WithPassword("storefront"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	runMigrations(t, ctx, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	return pool
}

func runMigrations(t *testing.T, ctx context.Context, connStr string) {
	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	path := resolvePath(t, "../../../db/postgres/migrations/0001_init.up.sql")
	contents, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, string(contents))
	require.NoError(t, err)
}

func resolvePath(t *testing.T, rel string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), rel)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
