package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/step6836/marketing-attribution/internal/contract"
	"github.com/step6836/marketing-attribution/internal/iocache"
	"github.com/step6836/marketing-attribution/schema"
)

// cacheSetup loads minimal configuration needed for cache operations.
// This is used by commands that need cache access without full shared setup.
func cacheSetup() error {
	if err := loadConfigFile(); err != nil {
		return err
	}

	backend := schema.DatabaseBackend(viper.GetString("cache-backend"))
	connStr := viper.GetString("cache-db-connect")
	if _, ok := schema.ValidCacheBackends[backend]; !ok {
		return fmt.Errorf("invalid cache backend '%s'. must be sqlite, mysql, postgresql, redis, none", backend)
	}
	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return err
	}

	cfg.CacheBackend = backend
	cfg.CacheDBConnect = connStr
	return nil
}

// cacheSetupWrapper wraps cacheSetup to provide PreRunE for cache commands.
func cacheSetupWrapper(_ *cobra.Command, _ []string) error {
	return cacheSetup()
}

// cacheCmd focused on cache management.
//
// Cache subcommands skip sharedSetup, so no event log is resolved or validated.
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the journey cache (improves performance)",
	Long: `Manage the journey cache that speeds up repeated analyses of the same event log.

Building journeys means parsing, deduplicating, bot filtering and sessionizing
every event. The result is cached under a key made of the input fingerprint and
the journey options, so a second run over an unchanged log skips all of it.

Supported backends: SQLite (default), MySQL, PostgreSQL, Redis, or None (disabled)

Subcommands:
  status - Show cache statistics and connection info
  clear  - Remove all cached data

Examples:
  # Check cache status
  attribution cache status

  # Use a shared Redis cache
  ATTRIBUTION_CACHE_BACKEND=redis ATTRIBUTION_CACHE_DB_CONNECT=redis://localhost:6379/0 attribution cache status`,
}

// cacheClearCmd clears the cache.
var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached journey sets",
	Long: `Delete all cached journey sets from the configured backend.

Use this when:
- Testing performance without cache
- Cache may be stale or corrupted

For SQLite: Deletes the database file
For MySQL/PostgreSQL: Drops the cache table
For Redis: Deletes every key of the cache namespace

Examples:
  # Clear SQLite cache (default)
  attribution cache clear

  # Clear a PostgreSQL cache (set connection string via env variable)
  ATTRIBUTION_CACHE_BACKEND=postgresql ATTRIBUTION_CACHE_DB_CONNECT="..." attribution cache clear`,
	PreRunE: cacheSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := iocache.ClearCache(cfg.CacheBackend, contract.GetCacheDBFilePath(), cfg.CacheDBConnect); err != nil {
			contract.LogFatal("Failed to clear cache", err)
		}
		fmt.Println("Cache cleared successfully.")
	},
}

// cacheStatusCmd shows cache status.
var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display cache statistics and connection details",
	Long: `Show detailed information about the journey cache.

Displays:
- Backend type and connection status
- Total number of cached journey sets
- Last and oldest cache entry timestamps
- Cache size

Examples:
  # Check cache status
  attribution cache status`,
	PreRunE: cacheSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := iocache.InitStores(cfg.CacheBackend, cfg.CacheDBConnect, "", ""); err != nil {
			contract.LogFatal("Failed to initialize cache", err)
		}
		store := iocache.Manager.GetJourneyStore()
		if store == nil {
			contract.LogFatal("Failed to get cache status", errors.New("journey cache is not initialized"))
		}
		status, err := store.GetStatus()
		if err != nil {
			contract.LogFatal("Failed to get cache status", err)
		}
		iocache.PrintCacheStatus(os.Stdout, status)
	},
}
