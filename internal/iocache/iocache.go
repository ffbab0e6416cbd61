// Package iocache persists journey sets between runs and records analysis history.
package iocache

import (
	"sync"

	"github.com/step6836/marketing-attribution/internal/contract"
)

// CacheStoreManager manages multiple CacheStore instances.
type CacheStoreManager struct {
	sync.RWMutex // Protects the store pointers during initialization
	journeys     contract.CacheStore
	analysis     contract.AnalysisStore
}

var _ contract.CacheManager = &CacheStoreManager{} // Compile-time check

// NewManager wraps already opened stores. Either may be nil.
func NewManager(journeys contract.CacheStore, analysis contract.AnalysisStore) *CacheStoreManager {
	return &CacheStoreManager{journeys: journeys, analysis: analysis}
}

// GetJourneyStore returns the journey CacheStore.
func (mgr *CacheStoreManager) GetJourneyStore() contract.CacheStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.journeys
}

// GetAnalysisStore returns the analysis AnalysisStore.
func (mgr *CacheStoreManager) GetAnalysisStore() contract.AnalysisStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.analysis
}
