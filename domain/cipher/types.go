// Package cipher defines the hash-likeness profile of the name encoding
// transform. Bands are descriptive analogies, not security properties.
package cipher

import "gonomen/domain/formula"

// Band is a qualitative reference class.
type Band string

const (
	BandCryptographicHash Band = "cryptographic_hash_like"
	BandBlockCipher       Band = "block_cipher_like"
	BandWeakHash          Band = "weak_hash_like"
	BandSimpleEncoding    Band = "simple_encoding_like"
)

// Disclaimer accompanies every classification.
const Disclaimer = "Descriptive analogy only. The encoding transform is not a cipher and offers no security guarantees."

// Reversibility measures how well features are recovered from encodings.
type Reversibility struct {
	ReferenceSize   int     `json:"reference_size"`
	ProbeSize       int     `json:"probe_size"`
	NearestNeighbor float64 `json:"nearest_neighbor_accuracy"`
	WithinTolerance float64 `json:"within_tolerance_rate"`
	LinearR2        float64 `json:"linear_r2"`
	Score           float64 `json:"score"`
}

// Collision measures how close distinct names land in encoding space.
type Collision struct {
	Pairs         int     `json:"pairs"`
	MinDistance   float64 `json:"min_distance"`
	MeanDistance  float64 `json:"mean_distance"`
	CollisionRate float64 `json:"collision_rate"`
	Epsilon       float64 `json:"epsilon"`
	Resistant     bool    `json:"resistant"`
}

// Avalanche measures sensitivity to a single-character change.
type Avalanche struct {
	Samples        int     `json:"samples"`
	Score          float64 `json:"avalanche_score"`
	StrongCaseRate float64 `json:"strong_case_rate"`
	Threshold      float64 `json:"threshold"`
	Strong         bool    `json:"strong"`
	Weak           bool    `json:"weak"`
}

// KeySpace measures occupancy of the discretized encoding space.
type KeySpace struct {
	BinsPerDimension   int     `json:"bins_per_dimension"`
	Dimensions         int     `json:"dimensions"`
	OccupiedCells      int     `json:"occupied_cells"`
	Entropy            float64 `json:"entropy_bits"`
	MaxEntropy         float64 `json:"max_entropy_bits"`
	Uniformity         float64 `json:"uniformity"`
	MarginalUniformity float64 `json:"marginal_uniformity"`
}

// Profile is the full evaluation of one formula over a name corpus.
type Profile struct {
	FormulaType   formula.Type  `json:"formula_type"`
	FormulaID     string        `json:"formula_id"`
	Names         int           `json:"names"`
	Skipped       []string      `json:"skipped,omitempty"`
	Reversibility Reversibility `json:"reversibility"`
	Collision     Collision     `json:"collision"`
	Avalanche     Avalanche     `json:"avalanche"`
	KeySpace      KeySpace      `json:"key_space"`
	Band          Band          `json:"band"`
	Disclaimer    string        `json:"disclaimer"`
}
