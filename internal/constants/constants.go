// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Fingerprinting constants
const (
	// FingerprintBatchSize is the number of items processed per fingerprint batch
	FingerprintBatchSize = 8

	// MaxConcurrentDecodes is the maximum number of decode operations running
	// in parallel within a fingerprint batch
	MaxConcurrentDecodes = 4

	// FingerprintMemoCapacity is the maximum number of memoized fingerprints
	// kept resident per generator
	FingerprintMemoCapacity = 5000
)

// Clustering constants
const (
	// DefaultFlatThreshold is the default Hamming distance for flat clustering
	DefaultFlatThreshold = 10

	// DefaultDateWindowedThreshold is the default Hamming distance for
	// date-windowed clustering
	DefaultDateWindowedThreshold = 14

	// DefaultDayWindow is the default day window for date-windowed clustering
	DefaultDayWindow = 7

	// DefaultStrictThreshold clusters unconditionally in dual-threshold mode
	DefaultStrictThreshold = 8

	// DefaultLooseThreshold clusters only within the day window in
	// dual-threshold mode
	DefaultLooseThreshold = 14

	// DefaultDualDayWindow is the day window for the loose threshold
	DefaultDualDayWindow = 14
)

// Duplicate detection constants
const (
	// DefaultHashWorkers is the number of parallel workers fetching and
	// hashing original bytes
	DefaultHashWorkers = 4

	// DefaultPerceptualThreshold is the average-hash distance for the
	// perceptual duplicate path
	DefaultPerceptualThreshold = 10
)

// Resource cache constants
const (
	// DefaultPlayableCacheCapacity bounds the prepared-playable cache
	DefaultPlayableCacheCapacity = 5

	// DefaultImageCacheCapacity bounds the decoded HD image cache
	DefaultImageCacheCapacity = 8
)

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100
)
