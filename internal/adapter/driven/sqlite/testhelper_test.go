package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

// setupTestDB creates a named shared in-memory SQLite database for testing.
// Writer and reader share the same database via cache=shared; t.Name() keeps tests isolated.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)",
		url.PathEscape(t.Name()),
	)

	writer, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	writer.SetMaxOpenConns(1)
	require.NoError(t, writer.PingContext(context.Background()))

	reader, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	reader.SetMaxOpenConns(4)
	require.NoError(t, reader.PingContext(context.Background()))

	db := &DB{Writer: writer, Reader: reader, path: dsn}
	require.NoError(t, RunMigrations(db.Writer))

	t.Cleanup(func() { _ = db.Close() })

	return db
}
