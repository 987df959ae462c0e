package ports

import (
	"phonostat/domain/feature"
)

// ExtractorPort derives a phonetic feature vector from a raw name. Extraction
// is a total function: it never errors on any UTF-8 input, returning a
// sentinel degenerate vector for unusable names.
type ExtractorPort interface {
	// Version identifies the algorithm + weights producing the vectors
	Version() feature.Version

	// Extract computes the vector for a raw name. Pure and deterministic:
	// identical input and version always yield a bit-identical vector.
	Extract(rawName string) feature.Vector
}
