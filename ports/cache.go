package ports

import (
	"phonostat/domain/feature"
)

// FeatureCachePort resolves feature vectors with compute-once semantics.
// Concurrent requests for the same (raw_name, version) key must share one
// computation; duplicates are wasteful, never incorrect, since extraction is
// pure.
type FeatureCachePort interface {
	// GetOrCompute returns the cached vector for the key or computes it via
	// the supplied extractor, caching the result.
	GetOrCompute(rawName string, extractor ExtractorPort) feature.Vector

	// Invalidate drops every cached vector for a version (explicit version
	// bump is the only invalidation path).
	Invalidate(version feature.Version)

	// Len reports the number of cached vectors
	Len() int
}
