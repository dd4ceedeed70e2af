package config

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// FeatureFlags toggles optional subsystems of the process. Flags are read
// once from FEATURE_* variables and may be flipped at runtime.
type FeatureFlags struct {
	mu       sync.RWMutex
	features map[string]*Feature
}

// Feature is a single toggle.
type Feature struct {
	Name        string
	Description string
	Enabled     bool
}

// Predefined feature flag names.
const (
	FeatureUnlockViewCache = "cache.unlock_view"     // Redis read-through view cache
	FeatureCatalogLRU      = "cache.catalog_lru"     // in-process LRU in front of the catalog
	FeatureTimerCheckpoint = "scheduler.checkpoint"  // periodic save of running sessions
	FeatureAuditLog        = "events.audit_log"      // log every domain event
	FeatureAsyncEvents     = "events.async_dispatch" // run event handlers off the caller
)

// LoadFeatureFlags builds the defaults and applies environment overrides.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{features: make(map[string]*Feature)}
	ff.initializeDefaults()
	ff.loadFromEnvironment()
	return ff
}

func (ff *FeatureFlags) initializeDefaults() {
	for _, f := range []Feature{
		{Name: FeatureUnlockViewCache, Description: "Cache unlock views in Redis", Enabled: true},
		{Name: FeatureCatalogLRU, Description: "Keep hot courses in memory", Enabled: true},
		{Name: FeatureTimerCheckpoint, Description: "Checkpoint running study sessions", Enabled: true},
		{Name: FeatureAuditLog, Description: "Log domain events", Enabled: true},
		// Async dispatch may serve a stale cached view until the handler runs.
		{Name: FeatureAsyncEvents, Description: "Dispatch events asynchronously", Enabled: false},
	} {
		f := f
		ff.features[f.Name] = &f
	}
}

// loadFromEnvironment reads FEATURE_CACHE_UNLOCK_VIEW=false style overrides.
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		if val := os.Getenv(featureNameToEnvKey(name)); val != "" {
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
			}
		}
	}
}

func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled reports whether a feature is on. Unknown features are off.
func (ff *FeatureFlags) IsEnabled(name string) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()
	f, ok := ff.features[name]
	return ok && f.Enabled
}

// SetEnabled flips a known feature and reports whether it exists.
func (ff *FeatureFlags) SetEnabled(name string, enabled bool) bool {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	f, ok := ff.features[name]
	if ok {
		f.Enabled = enabled
	}
	return ok
}

// List returns a copy of all features sorted by name.
func (ff *FeatureFlags) List() []Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()
	out := make([]Feature, 0, len(ff.features))
	for _, f := range ff.features {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
