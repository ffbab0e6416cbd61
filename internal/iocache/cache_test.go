package iocache

import (
	"bytes"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/step6836/marketing-attribution/schema"
)

// resetGlobals makes InitStores and CloseCaching runnable again within one test binary.
func resetGlobals(t *testing.T) {
	t.Helper()
	initOnce = sync.Once{}
	closeOnce = sync.Once{}
	Manager = &CacheStoreManager{}
	t.Cleanup(func() {
		CloseCaching()
		initOnce = sync.Once{}
		closeOnce = sync.Once{}
		Manager = &CacheStoreManager{}
	})
}

func TestInitStores(t *testing.T) {
	t.Run("sqlite stores", func(t *testing.T) {
		resetGlobals(t)
		dir := t.TempDir()
		cachePath := filepath.Join(dir, "cache.db")
		analysisPath := filepath.Join(dir, "analysis.db")

		require.NoError(t, InitStores(schema.SQLiteBackend, cachePath, schema.SQLiteBackend, analysisPath))
		assert.NotNil(t, Manager.GetJourneyStore())
		assert.NotNil(t, Manager.GetAnalysisStore())

		CloseCaching()
		_, err := os.Stat(cachePath)
		assert.NoError(t, err, "cache database file should be created")
		_, err = os.Stat(analysisPath)
		assert.NoError(t, err, "analysis database file should be created")
	})

	t.Run("idempotent", func(t *testing.T) {
		resetGlobals(t)
		dir := t.TempDir()
		cachePath := filepath.Join(dir, "cache.db")

		assert.NoError(t, InitStores(schema.SQLiteBackend, cachePath, "", ""))
		assert.NoError(t, InitStores(schema.SQLiteBackend, cachePath, "", ""))
		assert.Nil(t, Manager.GetAnalysisStore())

		CloseCaching()
		CloseCaching()
	})

	t.Run("none backend", func(t *testing.T) {
		resetGlobals(t)
		require.NoError(t, InitStores(schema.NoneBackend, "", schema.NoneBackend, ""))

		store := Manager.GetJourneyStore()
		require.NotNil(t, store)
		_, _, _, err := store.Get("missing")
		assert.ErrorIs(t, err, sql.ErrNoRows)
		assert.NoError(t, store.Set("k", []byte("v"), 1, time.Now().Unix()))

		id, err := Manager.GetAnalysisStore().BeginAnalysis(time.Now(), nil)
		assert.NoError(t, err)
		assert.Zero(t, id)
	})

	t.Run("invalid cache backend", func(t *testing.T) {
		resetGlobals(t)
		err := InitStores("bogus", "", "", "")
		assert.ErrorContains(t, err, "failed to initialize journey caching")
	})

	t.Run("invalid analysis backend", func(t *testing.T) {
		resetGlobals(t)
		err := InitStores(schema.NoneBackend, "", schema.RedisBackend, "")
		assert.ErrorContains(t, err, "failed to initialize analysis store")
	})
}

func TestValidateTableName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "journey_cache", false},
		{"leading underscore", "_cache", false},
		{"digits", "cache2", false},
		{"empty", "", true},
		{"leading digit", "2cache", true},
		{"hyphen", "journey-cache", true},
		{"space", "journey cache", true},
		{"injection", "t; DROP TABLE users", true},
		{"quote", `t"`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateTableName(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestQuoteTableName(t *testing.T) {
	tests := []struct {
		backend schema.DatabaseBackend
		want    string
	}{
		{schema.MySQLBackend, "`journey_cache`"},
		{schema.PostgreSQLBackend, `"journey_cache"`},
		{schema.SQLiteBackend, `"journey_cache"`},
	}

	for _, tt := range tests {
		t.Run(string(tt.backend), func(t *testing.T) {
			assert.Equal(t, tt.want, quoteTableName("journey_cache", tt.backend))
		})
	}
}

func TestRebind(t *testing.T) {
	query := "SELECT a FROM t WHERE b = ? AND c = ?"
	assert.Equal(t, query, rebind(query, schema.SQLiteBackend))
	assert.Equal(t, query, rebind(query, schema.MySQLBackend))
	assert.Equal(t, "SELECT a FROM t WHERE b = $1 AND c = $2", rebind(query, schema.PostgreSQLBackend))
}

func TestNormalizeMySQLDSN(t *testing.T) {
	dsn, err := normalizeMySQLDSN("user:pass@tcp(localhost:3306)/attribution")
	require.NoError(t, err)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "multiStatements=true")

	_, err = normalizeMySQLDSN("not a dsn")
	assert.ErrorContains(t, err, "invalid MySQL connection string")
}

func TestSchemaStatements(t *testing.T) {
	for _, backend := range []schema.DatabaseBackend{schema.SQLiteBackend, schema.MySQLBackend, schema.PostgreSQLBackend} {
		t.Run(string(backend), func(t *testing.T) {
			stmts, err := schemaStatements(backend)
			require.NoError(t, err)
			assert.Len(t, stmts, len(analysisTables))
		})
	}

	_, err := schemaStatements(schema.RedisBackend)
	assert.Error(t, err)
}

func TestGetUpsertQuery(t *testing.T) {
	tests := []struct {
		backend schema.DatabaseBackend
		want    string
	}{
		{schema.SQLiteBackend, "INSERT OR REPLACE"},
		{schema.MySQLBackend, "ON DUPLICATE KEY UPDATE"},
		{schema.PostgreSQLBackend, "ON CONFLICT (cache_key) DO UPDATE"},
	}

	for _, tt := range tests {
		t.Run(string(tt.backend), func(t *testing.T) {
			ps := &CacheStoreImpl{tableName: journeyTable, backend: tt.backend}
			assert.Contains(t, ps.getUpsertQuery(), tt.want)
		})
	}
}

func TestGetCreateTableQuery(t *testing.T) {
	assert.Contains(t, getCreateTableQuery(journeyTable, schema.SQLiteBackend), "BLOB")
	assert.Contains(t, getCreateTableQuery(journeyTable, schema.MySQLBackend), "LONGBLOB")
	assert.Contains(t, getCreateTableQuery(journeyTable, schema.PostgreSQLBackend), "BYTEA")
}

func TestNewCacheStoreErrors(t *testing.T) {
	_, err := NewCacheStore("bad-name", schema.SQLiteBackend, "")
	assert.ErrorContains(t, err, "invalid table name")

	_, err = NewCacheStore(journeyTable, "bogus", "")
	assert.ErrorContains(t, err, "unsupported cache backend")

	_, err = NewCacheStore(journeyTable, schema.RedisBackend, "http://localhost")
	assert.ErrorContains(t, err, "invalid Redis connection string")
}

func TestSQLiteCacheStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	store, err := NewCacheStore(journeyTable, schema.SQLiteBackend, dbPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	t.Run("missing key", func(t *testing.T) {
		_, _, _, err := store.Get("missing")
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})

	t.Run("set and get", func(t *testing.T) {
		require.NoError(t, store.Set("k1", []byte(`{"journeys":[]}`), 2, 1700000000))
		value, version, ts, err := store.Get("k1")
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"journeys":[]}`), value)
		assert.Equal(t, 2, version)
		assert.Equal(t, int64(1700000000), ts)
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, store.Set("k1", []byte("new"), 3, 1700000100))
		value, version, ts, err := store.Get("k1")
		require.NoError(t, err)
		assert.Equal(t, []byte("new"), value)
		assert.Equal(t, 3, version)
		assert.Equal(t, int64(1700000100), ts)
	})

	t.Run("status", func(t *testing.T) {
		require.NoError(t, store.Set("k2", []byte("other"), 3, 1699999000))
		status, err := store.GetStatus()
		require.NoError(t, err)
		assert.Equal(t, "sqlite", status.Backend)
		assert.True(t, status.Connected)
		assert.Equal(t, 2, status.TotalEntries)
		assert.Equal(t, time.Unix(1700000100, 0), status.LastEntryTime)
		assert.Equal(t, time.Unix(1699999000, 0), status.OldestEntryTime)
		assert.Positive(t, status.TableSizeBytes)
	})
}

func TestNoneCacheStoreStatus(t *testing.T) {
	store, err := NewCacheStore(journeyTable, schema.NoneBackend, "")
	require.NoError(t, err)
	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, "none", status.Backend)
	assert.False(t, status.Connected)
	assert.NoError(t, store.Close())
}

func TestClearCache(t *testing.T) {
	t.Run("sqlite removes file", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "cache.db")
		store, err := NewCacheStore(journeyTable, schema.SQLiteBackend, dbPath)
		require.NoError(t, err)
		require.NoError(t, store.Close())

		require.NoError(t, ClearCache(schema.SQLiteBackend, dbPath, ""))
		_, err = os.Stat(dbPath)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("sqlite missing file", func(t *testing.T) {
		assert.NoError(t, ClearCache(schema.SQLiteBackend, filepath.Join(t.TempDir(), "nope.db"), ""))
	})

	t.Run("sqlite empty path", func(t *testing.T) {
		assert.Error(t, ClearCache(schema.SQLiteBackend, "", ""))
	})

	t.Run("none", func(t *testing.T) {
		assert.NoError(t, ClearCache(schema.NoneBackend, "", ""))
	})

	t.Run("unsupported", func(t *testing.T) {
		assert.ErrorContains(t, ClearCache("bogus", "", ""), "unsupported cache backend")
	})
}

func TestRedisKeys(t *testing.T) {
	rs := &RedisCacheStore{prefix: redisPrefix(journeyTable)}
	assert.Equal(t, "attribution:journey_cache:entry:abc", rs.entryKey("abc"))
	assert.Equal(t, "attribution:journey_cache:index", rs.indexKey())

	status, err := rs.GetStatus()
	require.NoError(t, err)
	assert.False(t, status.Connected)
	assert.NoError(t, rs.Close())
}

func TestNewRedisCacheStoreErrors(t *testing.T) {
	_, err := NewRedisCacheStore("bad-name", "redis://localhost:6379/0")
	assert.ErrorContains(t, err, "invalid table name")

	_, err = NewRedisCacheStore(journeyTable, "localhost:6379")
	assert.ErrorContains(t, err, "invalid Redis connection string")
}

func TestCacheStoreManagerConcurrency(t *testing.T) {
	journeys := &MockCacheStore{}
	analysis := &MockAnalysisStore{}
	mgr := NewManager(journeys, analysis)

	var wg sync.WaitGroup
	for range 20 {
		wg.Go(func() {
			assert.Same(t, journeys, mgr.GetJourneyStore())
			assert.Same(t, analysis, mgr.GetAnalysisStore())
		})
	}
	wg.Wait()
}

func TestPrintCacheStatus(t *testing.T) {
	t.Run("disconnected", func(t *testing.T) {
		var buf bytes.Buffer
		PrintCacheStatus(&buf, schema.CacheStatus{Backend: "none"})
		assert.Equal(t, "Cache Backend: none\nConnected: false\n", buf.String())
	})

	t.Run("populated", func(t *testing.T) {
		var buf bytes.Buffer
		ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		PrintCacheStatus(&buf, schema.CacheStatus{
			Backend:         "sqlite",
			Connected:       true,
			TotalEntries:    3,
			LastEntryTime:   ts,
			OldestEntryTime: ts.Add(-time.Hour),
			TableSizeBytes:  4096,
		})
		out := buf.String()
		assert.Contains(t, out, "Total Entries: 3")
		assert.Contains(t, out, "Last Entry: 2024-03-01 12:00:00")
		assert.Contains(t, out, "Oldest Entry: 2024-03-01 11:00:00")
		assert.Contains(t, out, "Table Size: 4096 bytes")
	})
}

func TestPrintAnalysisStatus(t *testing.T) {
	var buf bytes.Buffer
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	PrintAnalysisStatus(&buf, schema.AnalysisStatus{
		Backend:             "sqlite",
		Connected:           true,
		TotalRuns:           2,
		LastRunID:           2,
		LastRunTime:         ts,
		OldestRunTime:       ts,
		TotalEventsAnalyzed: 1200,
		TableSizes:          map[string]int64{scenariosTable: 6, analysisRunsTable: 2},
	})
	out := buf.String()
	assert.Contains(t, out, "Total Events Analyzed: 1200")
	assert.Contains(t, out, "Last Run ID: 2")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte(analysisRunsTable)), bytes.Index(buf.Bytes(), []byte(scenariosTable)),
		"table sizes should be printed in name order")
}
