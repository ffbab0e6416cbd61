package core

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/step6836/marketing-attribution/core/ingest"
	"github.com/step6836/marketing-attribution/core/journey"
	"github.com/step6836/marketing-attribution/internal/contract"
	"github.com/step6836/marketing-attribution/internal/logger"
	"github.com/step6836/marketing-attribution/internal/telemetry"
	"github.com/step6836/marketing-attribution/schema"
)

// cacheTTL bounds how long a cached journey set is trusted.
const cacheTTL = 7 * 24 * time.Hour

// journeyCacheEntry is what a cache hit restores: the ingestion counts and the full
// journey set before sampling.
type journeyCacheEntry struct {
	Ingest   ingest.Result    `json:"ingest"`
	Journeys []schema.Journey `json:"journeys"`
}

// cachedJourneys returns the journeys of src, from the cache when possible.
func cachedJourneys(ctx context.Context, cfg *contract.Config, src contract.EventSource, store contract.CacheStore) (journeyCacheEntry, error) {
	if store == nil {
		return buildJourneys(ctx, cfg, src)
	}

	key, ok := generateCacheKey(ctx, cfg, src)
	if !ok {
		return buildJourneys(ctx, cfg, src)
	}

	if entry, hit := checkCacheHit(store, key); hit {
		logger.FromContext(ctx).Debug("journey cache hit",
			zap.String("source", src.Name()),
			zap.Int("journeys", len(entry.Journeys)))
		return entry, nil
	}
	return computeAndStore(ctx, cfg, src, store, key)
}

// checkCacheHit attempts to retrieve and validate a cached journey set
func checkCacheHit(store contract.CacheStore, key string) (journeyCacheEntry, bool) {
	data, version, ts, err := store.Get(key)
	if err != nil {
		return journeyCacheEntry{}, false // Cache miss
	}

	// Validate version and staleness
	if version != contract.CacheVersion || time.Since(time.Unix(ts, 0)) > cacheTTL {
		return journeyCacheEntry{}, false
	}
	var entry journeyCacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return journeyCacheEntry{}, false
	}
	return entry, true
}

// computeAndStore builds the journeys and stores them in the cache
func computeAndStore(ctx context.Context, cfg *contract.Config, src contract.EventSource, store contract.CacheStore, key string) (journeyCacheEntry, error) {
	entry, err := buildJourneys(ctx, cfg, src)
	if err != nil {
		return journeyCacheEntry{}, err
	}

	if data, err := json.Marshal(entry); err == nil {
		if err := store.Set(key, data, contract.CacheVersion, time.Now().Unix()); err != nil {
			logger.FromContext(ctx).Warn("failed to cache journeys", zap.Error(err))
		}
	}
	return entry, nil
}

// generateCacheKey derives the cache key from the source fingerprint and every option
// that changes the journey set. Sources without a fingerprint are not cached.
func generateCacheKey(ctx context.Context, cfg *contract.Config, src contract.EventSource) (string, bool) {
	fingerprint, err := src.Fingerprint(ctx)
	if err != nil {
		logger.FromContext(ctx).Debug("source fingerprint unavailable", zap.Error(err))
		return "", false
	}
	if fingerprint == "" {
		return "", false
	}

	var ignored []string
	for _, s := range slices.Sorted(maps.Keys(cfg.IgnoreStages)) {
		if cfg.IgnoreStages[s] {
			ignored = append(ignored, string(s))
		}
	}

	key := fmt.Sprintf("%s:%s:%s:%t:%d:%d:%v:%d",
		fingerprint,
		cfg.SessionGap,
		cfg.ConversionWindow,
		cfg.Strict,
		cfg.SessionThreshold,
		cfg.RatePerMinute,
		ignored,
		contract.CacheVersion,
	)
	return fmt.Sprintf("%x", sha256.Sum256([]byte(key))), true
}

// buildJourneys loads, filters and assembles the journeys of src.
func buildJourneys(ctx context.Context, cfg *contract.Config, src contract.EventSource) (journeyCacheEntry, error) {
	loadCtx, span := telemetry.Start(ctx, "load", attribute.String("source", src.Name()))
	events, err := src.Load(loadCtx)
	span.SetAttributes(attribute.Int("events", len(events)))
	telemetry.End(span, err)
	if err != nil {
		return journeyCacheEntry{}, err
	}

	ingestCtx, span := telemetry.Start(ctx, "ingest")
	res, err := ingest.Filter(ingestCtx, events, ingestOptions(cfg))
	telemetry.End(span, err)
	if err != nil {
		return journeyCacheEntry{}, err
	}

	_, span = telemetry.Start(ctx, "journeys")
	journeys := journey.Build(res.Events, journeyOptions(cfg))
	span.SetAttributes(attribute.Int("journeys", len(journeys)))
	telemetry.End(span, nil)

	res.Events = nil
	return journeyCacheEntry{Ingest: res, Journeys: journeys}, nil
}

func ingestOptions(cfg *contract.Config) ingest.Options {
	return ingest.Options{
		Strict:       cfg.Strict,
		IgnoreStages: cfg.IgnoreStages,
		Detector:     ingest.DefaultDetector(cfg.SessionThreshold, cfg.RatePerMinute),
	}
}

func journeyOptions(cfg *contract.Config) journey.Options {
	return journey.Options{
		ConversionWindow: cfg.ConversionWindow,
		SessionGap:       cfg.SessionGap,
	}
}
