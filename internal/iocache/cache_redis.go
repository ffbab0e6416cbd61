package iocache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/step6836/marketing-attribution/internal/contract"
	"github.com/step6836/marketing-attribution/schema"
)

// redisTimeout bounds every round trip to the server.
const redisTimeout = 5 * time.Second

// Hash fields of a cached entry.
const (
	fieldValue   = "value"
	fieldVersion = "version"
	fieldTS      = "ts"
)

// RedisCacheStore keeps cache entries as hashes under a common prefix. A sorted set
// indexed by timestamp backs the status report and the clear operation.
type RedisCacheStore struct {
	rdb    *goredis.Client
	prefix string
}

var _ contract.CacheStore = &RedisCacheStore{} // Compile-time check

// NewRedisCacheStore connects to the redis:// or rediss:// URL in connStr.
func NewRedisCacheStore(namespace, connStr string) (*RedisCacheStore, error) {
	if err := validateTableName(namespace); err != nil {
		return nil, err
	}
	opts, err := goredis.ParseURL(connStr)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis connection string: %w. Check connection format: redis://[:password@]host:port/db", err)
	}
	opts.DialTimeout = redisTimeout

	rdb := goredis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis. Check that the server is running: %w", err)
	}
	return &RedisCacheStore{rdb: rdb, prefix: redisPrefix(namespace)}, nil
}

func redisPrefix(namespace string) string {
	return "attribution:" + namespace + ":"
}

func (rs *RedisCacheStore) entryKey(key string) string { return rs.prefix + "entry:" + key }

func (rs *RedisCacheStore) indexKey() string { return rs.prefix + "index" }

// Get retrieves a value by key. A missing key returns goredis.Nil.
func (rs *RedisCacheStore) Get(key string) ([]byte, int, int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	fields, err := rs.rdb.HGetAll(ctx, rs.entryKey(key)).Result()
	if err != nil {
		return nil, 0, 0, err
	}
	raw, ok := fields[fieldValue]
	if !ok {
		return nil, 0, 0, goredis.Nil
	}
	version, err := strconv.Atoi(fields[fieldVersion])
	if err != nil {
		return nil, 0, 0, fmt.Errorf("corrupt cache version for %s: %w", key, err)
	}
	ts, err := strconv.ParseInt(fields[fieldTS], 10, 64)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("corrupt cache timestamp for %s: %w", key, err)
	}
	return []byte(raw), version, ts, nil
}

// Set writes the entry and its index record in one transaction.
func (rs *RedisCacheStore) Set(key string, value []byte, version int, timestamp int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	_, err := rs.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, rs.entryKey(key), fieldValue, value, fieldVersion, version, fieldTS, timestamp)
		pipe.ZAdd(ctx, rs.indexKey(), goredis.Z{Score: float64(timestamp), Member: key})
		return nil
	})
	return err
}

// GetStatus reports entry counts and the timestamp range from the index.
func (rs *RedisCacheStore) GetStatus() (schema.CacheStatus, error) {
	status := schema.CacheStatus{Backend: string(schema.RedisBackend), Connected: rs.rdb != nil}
	if rs.rdb == nil {
		return status, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	total, err := rs.rdb.ZCard(ctx, rs.indexKey()).Result()
	if err != nil {
		return status, fmt.Errorf("failed to get total entries: %w", err)
	}
	status.TotalEntries = int(total)
	if total == 0 {
		return status, nil
	}

	oldest, err := rs.rdb.ZRangeWithScores(ctx, rs.indexKey(), 0, 0).Result()
	if err != nil {
		return status, fmt.Errorf("failed to get oldest entry: %w", err)
	}
	newest, err := rs.rdb.ZRangeWithScores(ctx, rs.indexKey(), -1, -1).Result()
	if err != nil {
		return status, fmt.Errorf("failed to get last entry: %w", err)
	}
	if len(oldest) > 0 {
		status.OldestEntryTime = time.Unix(int64(oldest[0].Score), 0)
	}
	if len(newest) > 0 {
		status.LastEntryTime = time.Unix(int64(newest[0].Score), 0)
	}

	members, err := rs.rdb.ZRange(ctx, rs.indexKey(), 0, -1).Result()
	if err != nil {
		return status, fmt.Errorf("failed to list entries: %w", err)
	}
	for _, m := range members {
		size, err := rs.rdb.MemoryUsage(ctx, rs.entryKey(m)).Result()
		if errors.Is(err, goredis.Nil) {
			continue
		}
		if err != nil {
			// MEMORY USAGE may be disabled, fall back to a rough estimate
			status.TableSizeBytes = total * 1000
			break
		}
		status.TableSizeBytes += size
	}
	return status, nil
}

// Clear removes every entry of the namespace together with its index.
func (rs *RedisCacheStore) Clear(ctx context.Context) error {
	members, err := rs.rdb.ZRange(ctx, rs.indexKey(), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("failed to list entries: %w", err)
	}
	keys := make([]string, 0, len(members)+1)
	for _, m := range members {
		keys = append(keys, rs.entryKey(m))
	}
	keys = append(keys, rs.indexKey())
	if err := rs.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete entries: %w", err)
	}
	return nil
}

// Close closes the client connection pool.
func (rs *RedisCacheStore) Close() error {
	if rs.rdb != nil {
		return rs.rdb.Close()
	}
	return nil
}
