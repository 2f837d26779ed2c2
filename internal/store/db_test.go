package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_ConfiguresConnection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pragmas.db")
	db, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	assert.Equal(t, path, db.Path)

	var mode string
	require.NoError(t, db.Pool.QueryRow(`PRAGMA journal_mode;`).Scan(&mode))
	assert.Equal(t, "wal", mode)

	var timeout int
	require.NoError(t, db.Pool.QueryRow(`PRAGMA busy_timeout;`).Scan(&timeout))
	assert.Equal(t, 5000, timeout)

	var version int
	require.NoError(t, db.Pool.QueryRow(`PRAGMA user_version;`).Scan(&version))
	assert.Equal(t, schemaVersion, version)

	require.NoError(t, db.Checkpoint(context.Background()))
}

func TestDB_CloseNil(t *testing.T) {
	var db *DB
	assert.NoError(t, db.Close())
}
