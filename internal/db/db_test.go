package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSqliteDB_Memory_Defaults(t *testing.T) {
	database, err := NewSqliteDB()
	require.NoError(t, err)
	defer database.Close()

	_, err = database.Exec("CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT);")
	require.NoError(t, err)
}

func TestNewSqliteDB_File_CreatesParent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "state.db")

	database, err := NewSqliteDB(WithPath(dbPath))
	require.NoError(t, err)
	defer database.Close()

	assert.DirExists(t, filepath.Dir(dbPath))
}

func TestNewSqliteDB_Migrations(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state.db")
	migration := "CREATE TABLE IF NOT EXISTS kv (k TEXT PRIMARY KEY, v TEXT NOT NULL);"

	database, err := NewSqliteDB(WithPath(dbPath), WithMigrations(migration))
	require.NoError(t, err)
	_, err = database.Exec("INSERT INTO kv (k, v) VALUES ('a', '1')")
	require.NoError(t, err)
	require.NoError(t, database.Close())

	// reopening reruns the migration without touching existing rows
	database, err = NewSqliteDB(WithPath(dbPath), WithMigrations(migration))
	require.NoError(t, err)
	defer database.Close()

	var v string
	require.NoError(t, database.Get(&v, "SELECT v FROM kv WHERE k = 'a'"))
	assert.Equal(t, "1", v)
}

func TestNewSqliteDB_BadMigration(t *testing.T) {
	_, err := NewSqliteDB(WithMigrations("CREATE TABLE"))
	assert.Error(t, err)
}

func TestWithTx(t *testing.T) {
	ctx := context.Background()
	database, err := NewSqliteDB(
		WithPath(filepath.Join(t.TempDir(), "tx.db")),
		WithMaxOpenConns(1),
		WithMigrations("CREATE TABLE IF NOT EXISTS n (v INTEGER NOT NULL);"),
	)
	require.NoError(t, err)
	defer database.Close()

	err = WithTx(ctx, database, func(tx *sqlx.Tx) error {
		_, err := tx.Exec("INSERT INTO n (v) VALUES (1)")
		return err
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = WithTx(ctx, database, func(tx *sqlx.Tx) error {
		if _, err := tx.Exec("INSERT INTO n (v) VALUES (2)"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, database.Get(&count, "SELECT COUNT(*) FROM n"))
	assert.Equal(t, 1, count)
}

func TestNewSqliteDB_Pragmas(t *testing.T) {
	database, err := NewSqliteDB(
		WithPath(filepath.Join(t.TempDir(), "pragma.db")),
		WithPragmas("PRAGMA foreign_keys=OFF;"),
		WithMaxIdleConns(1),
	)
	require.NoError(t, err)
	defer database.Close()

	var foreignKeys int
	require.NoError(t, database.Get(&foreignKeys, "PRAGMA foreign_keys"))
	assert.Equal(t, 0, foreignKeys)

	defaults, err := NewSqliteDB(WithMaxOpenConns(1))
	require.NoError(t, err)
	defer defaults.Close()

	require.NoError(t, defaults.Get(&foreignKeys, "PRAGMA foreign_keys"))
	assert.Equal(t, 1, foreignKeys)
}
