// Package features defines the normalized numeric profile of a name.
package features

import (
	"encoding/json"
	"fmt"
	"math"

	"gonomen/domain/core"
)

// Key names a single scalar feature.
type Key string

// Declared feature keys, grouped by the theory that consumes them.
const (
	Harshness        Key = "harshness"
	VowelRatio       Key = "vowel_ratio"
	PlosiveRatio     Key = "plosive_ratio"
	Sonority         Key = "sonority"
	SemanticCategory Key = "semantic_category"
	Authority        Key = "authority"
	Prestige         Key = "prestige"
	SyllableCount    Key = "syllable_count"
	Length           Key = "length"
	ConsonantCluster Key = "consonant_cluster"
	LetterEntropy    Key = "letter_entropy"
	SpectralCentroid Key = "spectral_centroid"
	Repetition       Key = "repetition"
)

// Range is a closed interval a feature value must lie in.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Span returns Max-Min.
func (r Range) Span() float64 { return r.Max - r.Min }

// Normalize maps v from the range onto [0,1].
func (r Range) Normalize(v float64) float64 {
	if r.Span() == 0 {
		return 0
	}
	return (v - r.Min) / r.Span()
}

// Contains reports whether v lies inside the range.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// SemanticCategories is the number of discrete semantic categories encoded
// into SemanticCategory as index/(SemanticCategories-1).
const SemanticCategories = 7

var declared = map[Key]Range{
	Harshness:        {0, 1},
	VowelRatio:       {0, 1},
	PlosiveRatio:     {0, 1},
	Sonority:         {0, 1},
	SemanticCategory: {0, 1},
	Authority:        {0, 1},
	Prestige:         {0, 1},
	SyllableCount:    {0, 12},
	Length:           {0, 32},
	ConsonantCluster: {0, 1},
	LetterEntropy:    {0, 1},
	SpectralCentroid: {0, 1},
	Repetition:       {0, 1},
}

// canonical order used for iteration, distances and serialization
var order = []Key{
	Harshness, VowelRatio, PlosiveRatio, Sonority,
	SemanticCategory, Authority, Prestige,
	SyllableCount, Length, ConsonantCluster,
	LetterEntropy, SpectralCentroid, Repetition,
}

// Keys returns all declared feature keys in canonical order.
func Keys() []Key {
	out := make([]Key, len(order))
	copy(out, order)
	return out
}

// RangeOf returns the declared range of a feature.
func RangeOf(k Key) (Range, bool) {
	r, ok := declared[k]
	return r, ok
}

// Vector is an immutable mapping of named, range-checked features.
// The zero value is empty and fails validation.
type Vector struct {
	values map[Key]float64
}

// New builds a vector from raw values. Every declared feature must be present,
// finite and inside its declared range; undeclared keys are rejected.
func New(values map[Key]float64) (Vector, error) {
	for k := range values {
		if _, ok := declared[k]; !ok {
			return Vector{}, core.NewFeatureError(string(k), "is not a declared feature")
		}
	}
	cp := make(map[Key]float64, len(values))
	for k, v := range values {
		cp[k] = v
	}
	vec := Vector{values: cp}
	if err := vec.Validate(); err != nil {
		return Vector{}, err
	}
	return vec, nil
}

// Validate checks presence, finiteness and range of every declared feature.
func (v Vector) Validate() error {
	for _, k := range order {
		val, ok := v.values[k]
		if !ok {
			return core.NewFeatureError(string(k), "is missing")
		}
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return core.NewFeatureError(string(k), "is not finite")
		}
		r := declared[k]
		if !r.Contains(val) {
			return core.NewFeatureError(string(k), fmt.Sprintf("value %g outside [%g, %g]", val, r.Min, r.Max))
		}
	}
	return nil
}

// Get returns the raw value of a feature.
func (v Vector) Get(k Key) float64 {
	return v.values[k]
}

// Normalized returns the feature mapped onto [0,1] through its declared range.
func (v Vector) Normalized(k Key) float64 {
	return declared[k].Normalize(v.values[k])
}

// Slice returns raw values in canonical key order.
func (v Vector) Slice() []float64 {
	out := make([]float64, len(order))
	for i, k := range order {
		out[i] = v.values[k]
	}
	return out
}

// NormalizedSlice returns [0,1]-normalized values in canonical key order.
func (v Vector) NormalizedSlice() []float64 {
	out := make([]float64, len(order))
	for i, k := range order {
		out[i] = v.Normalized(k)
	}
	return out
}

// FromNormalizedSlice rebuilds a vector from values in canonical order on [0,1].
// Values are clamped to [0,1] before denormalization, so reconstructions that
// drift slightly outside stay valid.
func FromNormalizedSlice(values []float64) (Vector, error) {
	if len(values) != len(order) {
		return Vector{}, core.NewFeatureError("vector", fmt.Sprintf("has %d values, want %d", len(values), len(order)))
	}
	raw := make(map[Key]float64, len(order))
	for i, k := range order {
		u := math.Max(0, math.Min(1, values[i]))
		r := declared[k]
		raw[k] = r.Min + u*r.Span()
	}
	return New(raw)
}

// Map returns a copy of the underlying values.
func (v Vector) Map() map[Key]float64 {
	out := make(map[Key]float64, len(v.values))
	for k, val := range v.values {
		out[k] = val
	}
	return out
}

// MarshalJSON encodes the vector as an object keyed by feature name.
func (v Vector) MarshalJSON() ([]byte, error) {
	out := make(map[string]float64, len(v.values))
	for k, val := range v.values {
		out[string(k)] = val
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes and validates a vector.
func (v *Vector) UnmarshalJSON(data []byte) error {
	var raw map[string]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidFeatureVector, err)
	}
	values := make(map[Key]float64, len(raw))
	for k, val := range raw {
		values[Key(k)] = val
	}
	parsed, err := New(values)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
