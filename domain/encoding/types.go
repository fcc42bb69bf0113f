// Package encoding defines the VisualEncoding record produced by formulas.
package encoding

import (
	"fmt"
	"math"
)

// ShapeType is the discrete geometry of an encoding.
type ShapeType string

const (
	ShapeCircle   ShapeType = "circle"
	ShapeTriangle ShapeType = "triangle"
	ShapeSquare   ShapeType = "square"
	ShapePentagon ShapeType = "pentagon"
	ShapeHexagon  ShapeType = "hexagon"
	ShapeStar     ShapeType = "star"
	ShapeSpiral   ShapeType = "spiral"
)

// Shapes lists every shape in enum order. Vote ties resolve to the earlier entry.
var Shapes = []ShapeType{
	ShapeCircle, ShapeTriangle, ShapeSquare, ShapePentagon,
	ShapeHexagon, ShapeStar, ShapeSpiral,
}

// ShapeAt returns Shapes[i] with i reduced modulo the number of shapes.
func ShapeAt(i int) ShapeType {
	n := len(Shapes)
	return Shapes[((i%n)+n)%n]
}

// ShapeIndex returns the enum position of s, or -1.
func ShapeIndex(s ShapeType) int {
	for i, candidate := range Shapes {
		if candidate == s {
			return i
		}
	}
	return -1
}

// Geometry holds shape descriptors.
type Geometry struct {
	Shape      ShapeType `json:"shape_type"`
	Complexity float64   `json:"complexity"`
	Symmetry   float64   `json:"symmetry"`
	Angularity float64   `json:"angularity"`
}

// Color holds HSB color.
type Color struct {
	Hue        float64 `json:"hue"`
	Saturation float64 `json:"saturation"`
	Brightness float64 `json:"brightness"`
}

// Spatial holds placement.
type Spatial struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	Rotation float64 `json:"rotation"`
}

// Texture holds surface descriptors.
type Texture struct {
	Glow             float64 `json:"glow"`
	FractalDimension float64 `json:"fractal_dimension"`
	PatternDensity   float64 `json:"pattern_density"`
}

// EmbedInfo marks an encoding that carries a steganographic payload.
type EmbedInfo struct {
	Method string `json:"method"`
}

// Metadata identifies the source of an encoding.
type Metadata struct {
	FormulaID  string     `json:"formula_id"`
	SourceName string     `json:"source_name"`
	Embedded   *EmbedInfo `json:"embedded,omitempty"`
}

// VisualEncoding is the structured record derived from a feature vector.
type VisualEncoding struct {
	Geometry Geometry `json:"geometry"`
	Color    Color    `json:"color"`
	Spatial  Spatial  `json:"spatial"`
	Texture  Texture  `json:"texture"`
	Metadata Metadata `json:"metadata"`
}

// Field names a numeric encoding field.
type Field string

const (
	FieldComplexity       Field = "complexity"
	FieldSymmetry         Field = "symmetry"
	FieldAngularity       Field = "angularity"
	FieldHue              Field = "hue"
	FieldSaturation       Field = "saturation"
	FieldBrightness       Field = "brightness"
	FieldX                Field = "x"
	FieldY                Field = "y"
	FieldZ                Field = "z"
	FieldRotation         Field = "rotation"
	FieldGlow             Field = "glow"
	FieldFractalDimension Field = "fractal_dimension"
	FieldPatternDensity   Field = "pattern_density"
)

// Bounds is the declared range of a numeric field. Angular fields are
// half-open [Min, Max) and wrap; all others are closed and clamp.
type Bounds struct {
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Circular bool    `json:"circular"`
}

// Span returns Max-Min.
func (b Bounds) Span() float64 { return b.Max - b.Min }

// Contains reports whether v is inside the declared range.
func (b Bounds) Contains(v float64) bool {
	if math.IsNaN(v) {
		return false
	}
	if b.Circular {
		return v >= b.Min && v < b.Max
	}
	return v >= b.Min && v <= b.Max
}

// Fit clamps or wraps v into range. NaN maps to Min.
func (b Bounds) Fit(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return b.Min
	}
	if b.Circular {
		w := math.Mod(v-b.Min, b.Span())
		if w < 0 {
			w += b.Span()
		}
		// math.Mod can round up to exactly Span for tiny negative inputs
		if w >= b.Span() {
			w = 0
		}
		return b.Min + w
	}
	return math.Max(b.Min, math.Min(b.Max, v))
}

// Normalize maps v onto [0,1].
func (b Bounds) Normalize(v float64) float64 {
	return (v - b.Min) / b.Span()
}

var fieldOrder = []Field{
	FieldComplexity, FieldSymmetry, FieldAngularity,
	FieldHue, FieldSaturation, FieldBrightness,
	FieldX, FieldY, FieldZ, FieldRotation,
	FieldGlow, FieldFractalDimension, FieldPatternDensity,
}

var fieldBounds = map[Field]Bounds{
	FieldComplexity:       {Min: 0, Max: 1},
	FieldSymmetry:         {Min: 0, Max: 1},
	FieldAngularity:       {Min: -1, Max: 1},
	FieldHue:              {Min: 0, Max: 360, Circular: true},
	FieldSaturation:       {Min: 0, Max: 1},
	FieldBrightness:       {Min: 0, Max: 1},
	FieldX:                {Min: -1, Max: 1},
	FieldY:                {Min: -1, Max: 1},
	FieldZ:                {Min: 0, Max: 1},
	FieldRotation:         {Min: 0, Max: 360, Circular: true},
	FieldGlow:             {Min: 0, Max: 1},
	FieldFractalDimension: {Min: 1, Max: 2},
	FieldPatternDensity:   {Min: 0, Max: 1},
}

// NumFields is the number of numeric fields.
var NumFields = len(fieldOrder)

// Fields returns the numeric field names in canonical order.
func Fields() []Field {
	out := make([]Field, len(fieldOrder))
	copy(out, fieldOrder)
	return out
}

// BoundsOf returns the declared range of a field.
func BoundsOf(f Field) (Bounds, bool) {
	b, ok := fieldBounds[f]
	return b, ok
}

// ParseField validates a field name.
func ParseField(s string) (Field, error) {
	f := Field(s)
	if _, ok := fieldBounds[f]; !ok {
		return "", fmt.Errorf("unknown encoding field %q", s)
	}
	return f, nil
}

func (e *VisualEncoding) ptr(f Field) *float64 {
	switch f {
	case FieldComplexity:
		return &e.Geometry.Complexity
	case FieldSymmetry:
		return &e.Geometry.Symmetry
	case FieldAngularity:
		return &e.Geometry.Angularity
	case FieldHue:
		return &e.Color.Hue
	case FieldSaturation:
		return &e.Color.Saturation
	case FieldBrightness:
		return &e.Color.Brightness
	case FieldX:
		return &e.Spatial.X
	case FieldY:
		return &e.Spatial.Y
	case FieldZ:
		return &e.Spatial.Z
	case FieldRotation:
		return &e.Spatial.Rotation
	case FieldGlow:
		return &e.Texture.Glow
	case FieldFractalDimension:
		return &e.Texture.FractalDimension
	case FieldPatternDensity:
		return &e.Texture.PatternDensity
	}
	return nil
}

// Get returns the value of a numeric field. Unknown fields return 0.
func (e VisualEncoding) Get(f Field) float64 {
	if p := e.ptr(f); p != nil {
		return *p
	}
	return 0
}

// Set writes a numeric field without range fitting. Unknown fields are ignored.
func (e *VisualEncoding) Set(f Field, v float64) {
	if p := e.ptr(f); p != nil {
		*p = v
	}
}

// Values returns numeric fields in canonical order.
func (e VisualEncoding) Values() []float64 {
	out := make([]float64, len(fieldOrder))
	for i, f := range fieldOrder {
		out[i] = e.Get(f)
	}
	return out
}

// NormalizedValues returns numeric fields mapped onto [0,1] in canonical order.
func (e VisualEncoding) NormalizedValues() []float64 {
	out := make([]float64, len(fieldOrder))
	for i, f := range fieldOrder {
		out[i] = fieldBounds[f].Normalize(e.Get(f))
	}
	return out
}

// Fit clamps or wraps every numeric field into its declared range and
// replaces an unknown shape with the first enum entry.
func (e VisualEncoding) Fit() VisualEncoding {
	for _, f := range fieldOrder {
		e.Set(f, fieldBounds[f].Fit(e.Get(f)))
	}
	if ShapeIndex(e.Geometry.Shape) < 0 {
		e.Geometry.Shape = Shapes[0]
	}
	return e
}

// CheckRanges returns an error naming the first field outside its range.
func (e VisualEncoding) CheckRanges() error {
	for _, f := range fieldOrder {
		b := fieldBounds[f]
		if v := e.Get(f); !b.Contains(v) {
			return fmt.Errorf("field %s = %g outside declared range [%g, %g]", f, v, b.Min, b.Max)
		}
	}
	if ShapeIndex(e.Geometry.Shape) < 0 {
		return fmt.Errorf("unknown shape %q", e.Geometry.Shape)
	}
	return nil
}

// Distance is the Euclidean distance between normalized field vectors scaled
// to [0,1] by sqrt(NumFields). Circular fields use the shorter arc.
func Distance(a, b VisualEncoding) float64 {
	sum := 0.0
	for _, f := range fieldOrder {
		d := FieldDelta(f, a.Get(f), b.Get(f))
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(fieldOrder)))
}

// FieldDelta is the normalized absolute difference of two values of f.
// For circular fields the shorter arc is used and the result is in [0,0.5].
func FieldDelta(f Field, a, b float64) float64 {
	bounds := fieldBounds[f]
	d := math.Abs(a-b) / bounds.Span()
	if bounds.Circular && d > 0.5 {
		d = 1 - d
	}
	return d
}
