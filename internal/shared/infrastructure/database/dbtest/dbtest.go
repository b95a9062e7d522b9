// Package dbtest opens migrated SQLite databases and seeds rows for
// repository tests.
package dbtest

import (
	"context"
	"testing"
	"time"

	"github.com/felixgeelhaar/caravan/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/caravan/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/caravan/internal/shared/infrastructure/migrations"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// Open returns a migrated SQLite connection in a temp dir, closed on cleanup.
func Open(t *testing.T) database.Connection {
	t.Helper()
	ctx := context.Background()
	conn, err := database.NewConnection(ctx, database.Config{
		Driver:     database.DriverSQLite,
		SQLitePath: t.TempDir() + "/test.db",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_, err = migrations.Run(ctx, conn)
	require.NoError(t, err)
	return conn
}

// User inserts a user named first Tester.
func User(t *testing.T, conn database.Connection, first string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	now := time.Now().UTC()
	_, err := conn.Exec(context.Background(),
		`INSERT INTO users (id, email, password_hash, first_name, last_name, created_at, updated_at)
         VALUES (?, ?, 'x', ?, 'Tester', ?, ?)`,
		id.String(), first+"-"+id.String()[:8]+"@example.com", first, now, now)
	require.NoError(t, err)
	return id
}

// Plan inserts a public plan in the given status with an OWNED membership.
func Plan(t *testing.T, conn database.Connection, ownerID uuid.UUID, status string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	now := time.Now().UTC()
	_, err := conn.Exec(context.Background(),
		`INSERT INTO travel_plans (id, owner_id, title, visibility, start_date, end_date, max_members, status, created_at, updated_at)
         VALUES (?, ?, 'Test trip', 'PUBLIC', ?, ?, 6, ?, ?, ?)`,
		id.String(), ownerID.String(), now, now.Add(72*time.Hour), status, now, now)
	require.NoError(t, err)
	Member(t, conn, id, ownerID, "OWNED")
	return id
}

// Member inserts a membership row.
func Member(t *testing.T, conn database.Connection, planID, userID uuid.UUID, status string) {
	t.Helper()
	now := time.Now().UTC()
	_, err := conn.Exec(context.Background(),
		`INSERT INTO memberships (plan_id, user_id, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		planID.String(), userID.String(), status, now, now)
	require.NoError(t, err)
}
