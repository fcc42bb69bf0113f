// Package formula defines formula theories and their parameter spaces.
package formula

import (
	"fmt"
	"math"
	"strings"

	"gonomen/domain/core"
)

// Type is the closed set of formula theories.
type Type int

const (
	Phonetic Type = iota
	Semantic
	Structural
	Frequency
	Numerological
	Hybrid
)

var typeNames = [...]string{
	Phonetic:      "phonetic",
	Semantic:      "semantic",
	Structural:    "structural",
	Frequency:     "frequency",
	Numerological: "numerological",
	Hybrid:        "hybrid",
}

// Types returns all theories in enum order.
func Types() []Type {
	return []Type{Phonetic, Semantic, Structural, Frequency, Numerological, Hybrid}
}

// Components returns the five theories a hybrid formula blends, in weight order.
func Components() []Type {
	return []Type{Phonetic, Semantic, Structural, Frequency, Numerological}
}

// Valid reports whether t is a declared theory.
func (t Type) Valid() bool {
	return t >= Phonetic && t <= Hybrid
}

func (t Type) String() string {
	if !t.Valid() {
		return fmt.Sprintf("formula(%d)", int(t))
	}
	return typeNames[t]
}

// ParseType parses a theory name, case-insensitively.
func ParseType(s string) (Type, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range typeNames {
		if n == name {
			return Type(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", core.ErrUnknownFormula, s)
}

// MarshalText encodes the theory by name.
func (t Type) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", core.ErrUnknownFormula, int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText decodes a theory name.
func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParamSpec declares one tunable parameter.
type ParamSpec struct {
	Name    string  `json:"name"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Default float64 `json:"default"`
}

// Span returns Max-Min.
func (p ParamSpec) Span() float64 { return p.Max - p.Min }

// Clamp bounds v into [Min, Max].
func (p ParamSpec) Clamp(v float64) float64 {
	return math.Max(p.Min, math.Min(p.Max, v))
}

// WeightTolerance is the allowed deviation of hybrid weights from summing to 1.
const WeightTolerance = 1e-9

var specs = map[Type][]ParamSpec{
	Phonetic: {
		{Name: "angularity_gain", Min: 0.5, Max: 2.0, Default: 1.0},
		{Name: "vowel_weight", Min: 0, Max: 1, Default: 0.7},
		{Name: "hue_base", Min: 0, Max: 360, Default: 0},
		{Name: "hue_span", Min: 30, Max: 360, Default: 240},
		{Name: "saturation_floor", Min: 0, Max: 0.8, Default: 0.35},
		{Name: "texture_gain", Min: 0.5, Max: 2.0, Default: 1.0},
	},
	Semantic: {
		{Name: "category_offset", Min: 0, Max: 6, Default: 0},
		{Name: "authority_scale", Min: 0.5, Max: 1.5, Default: 1.0},
		{Name: "prestige_gamma", Min: 0.5, Max: 2.0, Default: 1.0},
		{Name: "hue_spread", Min: 10, Max: 120, Default: 360.0 / 7},
		{Name: "saturation_bias", Min: 0, Max: 1, Default: 0.5},
	},
	Structural: {
		{Name: "syllable_stride", Min: 1, Max: 13, Default: 7},
		{Name: "angle_scale", Min: 0.5, Max: 1.5, Default: 1.0},
		{Name: "hue_offset", Min: 0, Max: 360, Default: 0},
		{Name: "symmetry_decay", Min: 0.1, Max: 1.0, Default: 0.35},
		{Name: "complexity_scale", Min: 0.5, Max: 2.0, Default: 1.0},
	},
	Frequency: {
		{Name: "centroid_span", Min: 90, Max: 360, Default: 300},
		{Name: "hue_base", Min: 0, Max: 360, Default: 200},
		{Name: "entropy_gain", Min: 0.5, Max: 2.0, Default: 1.0},
		{Name: "repetition_gain", Min: 0.5, Max: 2.0, Default: 1.0},
		{Name: "saturation_entropy", Min: 0, Max: 1, Default: 0.6},
	},
	Numerological: {
		{Name: "hue_offset", Min: 0, Max: 360, Default: 0},
		{Name: "bucket_width", Min: 10, Max: 40, Default: 360.0 / 11},
		{Name: "shape_offset", Min: 0, Max: 6, Default: 0},
		{Name: "saturation_weight", Min: 0, Max: 1, Default: 0.5},
		{Name: "master_glow", Min: 0, Max: 1, Default: 0.8},
	},
	Hybrid: {
		{Name: "weight_phonetic", Min: 0, Max: 1, Default: 0.25},
		{Name: "weight_semantic", Min: 0, Max: 1, Default: 0.20},
		{Name: "weight_structural", Min: 0, Max: 1, Default: 0.20},
		{Name: "weight_frequency", Min: 0, Max: 1, Default: 0.20},
		{Name: "weight_numerological", Min: 0, Max: 1, Default: 0.15},
	},
}

// Specs returns the parameter declarations of a theory in vector order.
func Specs(t Type) []ParamSpec {
	s := specs[t]
	out := make([]ParamSpec, len(s))
	copy(out, s)
	return out
}

// Definition is a theory tag plus its parameter vector.
type Definition struct {
	ID      string    `json:"id"`
	Type    Type      `json:"type"`
	Version int       `json:"version"`
	Params  []float64 `json:"params"`
}

// Default returns the reference definition of a theory.
func Default(t Type) Definition {
	s := specs[t]
	params := make([]float64, len(s))
	for i, p := range s {
		params[i] = p.Default
	}
	return Definition{
		ID:      fmt.Sprintf("%s@v1", t),
		Type:    t,
		Version: 1,
		Params:  params,
	}
}

// Clone returns a deep copy.
func (d Definition) Clone() Definition {
	out := d
	out.Params = append([]float64(nil), d.Params...)
	return out
}

// Param returns a named parameter, or its default when absent.
func (d Definition) Param(name string) float64 {
	for i, p := range specs[d.Type] {
		if p.Name == name {
			if i < len(d.Params) {
				return d.Params[i]
			}
			return p.Default
		}
	}
	return 0
}

// Named returns the parameters keyed by name.
func (d Definition) Named() map[string]float64 {
	s := specs[d.Type]
	out := make(map[string]float64, len(s))
	for i, p := range s {
		if i < len(d.Params) {
			out[p.Name] = d.Params[i]
		}
	}
	return out
}

// Weights returns the hybrid weights keyed by component theory.
func (d Definition) Weights() map[Type]float64 {
	if d.Type != Hybrid {
		return nil
	}
	out := make(map[Type]float64, len(Components()))
	for i, t := range Components() {
		if i < len(d.Params) {
			out[t] = d.Params[i]
		}
	}
	return out
}

// Validate rejects unknown theories, wrong arity, non-finite or out-of-bounds
// parameters, and hybrid weights that do not sum to 1.
func (d Definition) Validate() error {
	if !d.Type.Valid() {
		return fmt.Errorf("%w: type %d", core.ErrUnknownFormula, int(d.Type))
	}
	s := specs[d.Type]
	if len(d.Params) != len(s) {
		return fmt.Errorf("%w: %s expects %d params, got %d", core.ErrInvalidFormula, d.Type, len(s), len(d.Params))
	}
	for i, p := range s {
		v := d.Params[i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s.%s is not finite", core.ErrInvalidFormula, d.Type, p.Name)
		}
		if v < p.Min || v > p.Max {
			return fmt.Errorf("%w: %s.%s = %g outside [%g, %g]", core.ErrInvalidFormula, d.Type, p.Name, v, p.Min, p.Max)
		}
	}
	if d.Type == Hybrid {
		sum := 0.0
		for _, w := range d.Params {
			sum += w
		}
		if math.Abs(sum-1) > WeightTolerance {
			return fmt.Errorf("%w: hybrid weights sum to %.12f", core.ErrInvalidFormula, sum)
		}
	}
	return nil
}

// Normalize clamps every parameter into bounds and, for hybrid formulas,
// rescales the weights to sum to 1. All-zero weights become uniform.
func (d Definition) Normalize() Definition {
	out := d.Clone()
	s := specs[out.Type]
	for i := range out.Params {
		if i < len(s) {
			out.Params[i] = s[i].Clamp(out.Params[i])
		}
	}
	if out.Type == Hybrid {
		out.Params = NormalizeWeights(out.Params)
	}
	return out
}

// NormalizeWeights rescales non-negative weights to sum to 1.
func NormalizeWeights(w []float64) []float64 {
	out := make([]float64, len(w))
	sum := 0.0
	for i, v := range w {
		if v < 0 || math.IsNaN(v) {
			v = 0
		}
		out[i] = v
		sum += v
	}
	if sum <= 0 {
		for i := range out {
			out[i] = 1 / float64(len(out))
		}
		return out
	}
	for i := range out {
		out[i] /= sum
	}
	// fold the rounding residue into the largest weight
	residue := 1.0
	largest := 0
	for i, v := range out {
		residue -= v
		if v > out[largest] {
			largest = i
		}
	}
	out[largest] += residue
	return out
}
