package ports

import "gonomen/domain/features"

// FeatureExtractor turns a raw name into its linguistic feature vector.
// Implementations must be pure functions of the name.
type FeatureExtractor interface {
	Extract(name string) (features.Vector, error)
}
