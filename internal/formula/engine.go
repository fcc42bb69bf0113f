// Package formula maps feature vectors to visual encodings under the six
// formula theories.
package formula

import (
	"fmt"
	"math"

	"gonomen/domain/core"
	"gonomen/domain/encoding"
	"gonomen/domain/features"
	domformula "gonomen/domain/formula"
)

// GoldenAngle is 360·(2−φ) degrees.
const GoldenAngle = 137.50776405003785

// Engine is a deterministic, side-effect-free transform. Its default
// definitions are fixed at construction, so an Engine is safe for concurrent use.
type Engine struct {
	defaults map[domformula.Type]domformula.Definition
}

// Option customizes an Engine.
type Option func(*Engine) error

// WithDefinition replaces the default definition of its theory.
func WithDefinition(def domformula.Definition) Option {
	return func(e *Engine) error {
		if err := def.Validate(); err != nil {
			return err
		}
		e.defaults[def.Type] = def.Clone()
		return nil
	}
}

// NewEngine creates an engine using the reference definition of every theory.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{defaults: make(map[domformula.Type]domformula.Definition)}
	for _, t := range domformula.Types() {
		e.defaults[t] = domformula.Default(t)
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Definition returns the default definition the engine uses for t.
func (e *Engine) Definition(t domformula.Type) (domformula.Definition, error) {
	def, ok := e.defaults[t]
	if !ok {
		return domformula.Definition{}, fmt.Errorf("%w: %s", core.ErrUnknownFormula, t)
	}
	return def.Clone(), nil
}

// Transform encodes a name with the default definition of t.
func (e *Engine) Transform(name string, fv features.Vector, t domformula.Type) (encoding.VisualEncoding, error) {
	def, err := e.Definition(t)
	if err != nil {
		return encoding.VisualEncoding{}, err
	}
	return e.TransformWith(name, fv, def)
}

// TransformAll encodes a name under every theory.
func (e *Engine) TransformAll(name string, fv features.Vector) (map[domformula.Type]encoding.VisualEncoding, error) {
	out := make(map[domformula.Type]encoding.VisualEncoding, len(domformula.Types()))
	for _, t := range domformula.Types() {
		enc, err := e.Transform(name, fv, t)
		if err != nil {
			return nil, err
		}
		out[t] = enc
	}
	return out, nil
}

// TransformWith encodes a name with explicit parameters. Invalid feature
// vectors and definitions are rejected; derived fields are fitted into range.
func (e *Engine) TransformWith(name string, fv features.Vector, def domformula.Definition) (encoding.VisualEncoding, error) {
	if err := fv.Validate(); err != nil {
		return encoding.VisualEncoding{}, err
	}
	if err := def.Validate(); err != nil {
		return encoding.VisualEncoding{}, err
	}
	enc := e.encode(name, fv, def)
	enc.Metadata = encoding.Metadata{FormulaID: def.ID, SourceName: name}
	return enc.Fit(), nil
}

func (e *Engine) encode(name string, fv features.Vector, def domformula.Definition) encoding.VisualEncoding {
	p := def.Named()
	switch def.Type {
	case domformula.Phonetic:
		return phonetic(fv, p)
	case domformula.Semantic:
		return semantic(fv, p)
	case domformula.Structural:
		return structural(fv, p)
	case domformula.Frequency:
		return frequency(fv, p)
	case domformula.Numerological:
		return numerological(name, p)
	case domformula.Hybrid:
		return e.hybrid(name, fv, def)
	}
	panic(fmt.Sprintf("formula: unhandled type %d", int(def.Type)))
}

// hybrid blends the component theories' default encodings.
func (e *Engine) hybrid(name string, fv features.Vector, def domformula.Definition) encoding.VisualEncoding {
	weights := def.Weights()
	components := domformula.Components()
	encs := make([]encoding.VisualEncoding, len(components))
	for i, t := range components {
		encs[i] = e.encode(name, fv, e.defaults[t]).Fit()
	}

	var out encoding.VisualEncoding
	for _, f := range encoding.Fields() {
		b, _ := encoding.BoundsOf(f)
		if b.Circular {
			var sin, cos float64
			for i, t := range components {
				rad := encs[i].Get(f) * math.Pi / 180
				sin += weights[t] * math.Sin(rad)
				cos += weights[t] * math.Cos(rad)
			}
			out.Set(f, math.Atan2(sin, cos)*180/math.Pi)
			continue
		}
		v := 0.0
		for i, t := range components {
			v += weights[t] * encs[i].Get(f)
		}
		out.Set(f, v)
	}

	votes := make([]float64, len(encoding.Shapes))
	for i, t := range components {
		if idx := encoding.ShapeIndex(encs[i].Geometry.Shape); idx >= 0 {
			votes[idx] += weights[t]
		}
	}
	best := 0
	for i := range votes {
		if votes[i] > votes[best] {
			best = i
		}
	}
	out.Geometry.Shape = encoding.Shapes[best]
	return out
}
