package iocache

import (
	"bytes"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/step6836/marketing-attribution/schema"
)

func tableExists(t *testing.T, dbPath, table string) bool {
	t.Helper()
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&n))
	return n == 1
}

func TestMigrateAnalysis_Unsupported(t *testing.T) {
	for _, backend := range []schema.DatabaseBackend{schema.NoneBackend, schema.RedisBackend} {
		err := MigrateAnalysis(backend, "", -1, &bytes.Buffer{})
		assert.ErrorContains(t, err, "migrations are not supported")
	}
}

func TestMigrateAnalysis_SQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "migrate.db")
	var out bytes.Buffer

	require.NoError(t, MigrateAnalysis(schema.SQLiteBackend, dbPath, -1, &out))
	assert.Contains(t, out.String(), "Successfully migrated from version 0 to version 1")
	assert.True(t, tableExists(t, dbPath, analysisRunsTable))

	out.Reset()
	require.NoError(t, MigrateAnalysis(schema.SQLiteBackend, dbPath, -1, &out))
	assert.Contains(t, out.String(), "No migration needed")

	out.Reset()
	require.NoError(t, MigrateAnalysis(schema.SQLiteBackend, dbPath, 1, &out))
	assert.Contains(t, out.String(), "already at version 1")

	out.Reset()
	require.NoError(t, MigrateAnalysis(schema.SQLiteBackend, dbPath, 0, &out))
	assert.Contains(t, out.String(), "rolled back from version 1 to version 0")
	for _, table := range analysisTables {
		assert.False(t, tableExists(t, dbPath, table), table)
	}

	out.Reset()
	require.NoError(t, MigrateAnalysis(schema.SQLiteBackend, dbPath, 1, &out))
	assert.True(t, tableExists(t, dbPath, scenariosTable))
}

func TestMigrateAnalysis_ExistingStore(t *testing.T) {
	// A store created without migrations can still be brought under migration control.
	dbPath := filepath.Join(t.TempDir(), "analysis.db")
	store, err := NewAnalysisStore(schema.SQLiteBackend, dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	assert.NoError(t, MigrateAnalysis(schema.SQLiteBackend, dbPath, -1, &bytes.Buffer{}))
}

func TestMigrateAnalysis_SQLiteInMemory(t *testing.T) {
	require.NoError(t, MigrateAnalysis(schema.SQLiteBackend, ":memory:", -1, &bytes.Buffer{}))
}
