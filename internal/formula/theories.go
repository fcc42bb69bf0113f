package formula

import (
	"math"

	"gonomen/domain/encoding"
	"gonomen/domain/features"
)

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// phoneticShapes orders shapes from curved to angular.
var phoneticShapes = []encoding.ShapeType{
	encoding.ShapeCircle, encoding.ShapeSpiral, encoding.ShapePentagon,
	encoding.ShapeHexagon, encoding.ShapeSquare, encoding.ShapeTriangle, encoding.ShapeStar,
}

func phonetic(fv features.Vector, p map[string]float64) encoding.VisualEncoding {
	h := fv.Normalized(features.Harshness)
	v := fv.Normalized(features.VowelRatio)
	pl := fv.Normalized(features.PlosiveRatio)
	s := fv.Normalized(features.Sonority)
	cc := fv.Normalized(features.ConsonantCluster)
	tg := p["texture_gain"]

	angularity := clamp((2*h-1)*p["angularity_gain"], -1, 1)
	bin := int((angularity + 1) / 2 * float64(len(phoneticShapes)))
	if bin >= len(phoneticShapes) {
		bin = len(phoneticShapes) - 1
	}

	var enc encoding.VisualEncoding
	enc.Geometry = encoding.Geometry{
		Shape:      phoneticShapes[bin],
		Complexity: 0.5*h + 0.5*cc,
		Symmetry:   p["vowel_weight"]*v + (1-p["vowel_weight"])*s,
		Angularity: angularity,
	}
	enc.Color = encoding.Color{
		Hue:        p["hue_base"] + pl*p["hue_span"],
		Saturation: p["saturation_floor"] + (1-p["saturation_floor"])*h,
		Brightness: 0.3 + 0.7*s,
	}
	enc.Spatial = encoding.Spatial{
		X:        2*v - 1,
		Y:        2*h - 1,
		Z:        s,
		Rotation: (angularity + 1) * 180,
	}
	enc.Texture = encoding.Texture{
		Glow:             s * tg * 0.8,
		FractalDimension: 1 + cc*tg,
		PatternDensity:   pl * tg,
	}
	return enc
}

func semantic(fv features.Vector, p map[string]float64) encoding.VisualEncoding {
	cat := fv.Normalized(features.SemanticCategory)
	a := fv.Normalized(features.Authority)
	pr := fv.Normalized(features.Prestige)
	idx := int(math.Round(cat * (features.SemanticCategories - 1)))
	scale := p["authority_scale"]

	var enc encoding.VisualEncoding
	enc.Geometry = encoding.Geometry{
		Shape:      encoding.ShapeAt(idx + int(math.Round(p["category_offset"]))),
		Complexity: 0.5*a + 0.5*pr,
		Symmetry:   1 - math.Abs(a-pr),
		Angularity: a - pr,
	}
	enc.Color = encoding.Color{
		Hue:        float64(idx)*p["hue_spread"] + pr*30,
		Saturation: 0.5*p["saturation_bias"] + 0.5*a,
		Brightness: math.Pow(pr, p["prestige_gamma"]),
	}
	enc.Spatial = encoding.Spatial{
		X:        2*pr - 1,
		Y:        2*a - 1,
		Z:        a * scale,
		Rotation: float64(idx) * 360 / features.SemanticCategories,
	}
	enc.Texture = encoding.Texture{
		Glow:             0.8*a*scale + 0.2*pr,
		FractalDimension: 1 + 0.5*pr + 0.5*a,
		PatternDensity:   cat,
	}
	return enc
}

// structural spreads hue by the golden angle over a structural index so that
// consecutive indices never repeat a hue.
func structural(fv features.Vector, p map[string]float64) encoding.VisualEncoding {
	length := fv.Get(features.Length)
	syl := fv.Get(features.SyllableCount)
	cc := fv.Normalized(features.ConsonantCluster)
	lr, _ := features.RangeOf(features.Length)
	sr, _ := features.RangeOf(features.SyllableCount)
	sylN := syl / sr.Max

	index := length + math.Round(p["syllable_stride"])*syl
	hueBounds, _ := encoding.BoundsOf(encoding.FieldHue)
	hue := hueBounds.Fit(p["hue_offset"] + index*GoldenAngle*p["angle_scale"])

	base := 0.8
	if int(syl)%2 == 0 {
		base = 1
	}
	symmetry := base / (1 + p["symmetry_decay"]*(math.Max(syl, 1)-1))
	r := math.Sqrt(length / lr.Max)
	rad := hue * math.Pi / 180

	var enc encoding.VisualEncoding
	enc.Geometry = encoding.Geometry{
		Shape:      encoding.ShapeAt(int(syl)),
		Complexity: p["complexity_scale"] * length / lr.Max,
		Symmetry:   symmetry,
		Angularity: 2*cc - 1,
	}
	enc.Color = encoding.Color{
		Hue:        hue,
		Saturation: 0.4 + 0.6*sylN,
		Brightness: 0.9 - 0.5*cc,
	}
	enc.Spatial = encoding.Spatial{
		X:        r * math.Cos(rad),
		Y:        r * math.Sin(rad),
		Z:        sylN,
		Rotation: p["hue_offset"] + length*GoldenAngle,
	}
	enc.Texture = encoding.Texture{
		Glow:             1 - 0.5*symmetry,
		FractalDimension: 1 + cc + 0.5*sylN,
		PatternDensity:   syl / math.Max(length, 1),
	}
	return enc
}

func frequency(fv features.Vector, p map[string]float64) encoding.VisualEncoding {
	c := fv.Normalized(features.SpectralCentroid)
	h := fv.Normalized(features.LetterEntropy)
	r := fv.Normalized(features.Repetition)
	eg := p["entropy_gain"]
	se := p["saturation_entropy"]

	var enc encoding.VisualEncoding
	enc.Geometry = encoding.Geometry{
		Shape:      encoding.ShapeAt(int(h * 6.999)),
		Complexity: h * eg,
		Symmetry:   0.5*r + 0.5*(1-h),
		Angularity: (2*c - 1) * h,
	}
	enc.Color = encoding.Color{
		Hue:        p["hue_base"] + c*p["centroid_span"],
		Saturation: se*h + (1-se)*(1-r),
		Brightness: 0.25 + 0.75*c,
	}
	enc.Spatial = encoding.Spatial{
		X:        2*c - 1,
		Y:        2*h - 1,
		Z:        r,
		Rotation: h * 360,
	}
	enc.Texture = encoding.Texture{
		Glow:             1 - h,
		FractalDimension: 1 + h*eg,
		PatternDensity:   r * p["repetition_gain"],
	}
	return enc
}
