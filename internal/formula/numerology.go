package formula

import (
	"math"
	"strings"
	"unicode"

	"gonomen/domain/encoding"
)

// Reduce sums decimal digits repeatedly down to a single digit, keeping the
// master numbers 11 and 22.
func Reduce(n int) int {
	if n < 0 {
		n = -n
	}
	for n > 9 && n != 11 && n != 22 {
		sum := 0
		for n > 0 {
			sum += n % 10
			n /= 10
		}
		n = sum
	}
	return n
}

// IsMaster reports whether a reduced number is a master number.
func IsMaster(n int) bool {
	return n == 11 || n == 22
}

// bucket maps a reduced number onto 0..10: digits 1..9 to 0..8, 11 to 9,
// 22 to 10. Zero stays 0.
func bucket(n int) int {
	switch {
	case n == 11:
		return 9
	case n == 22:
		return 10
	case n >= 1:
		return n - 1
	}
	return 0
}

// NameNumbers returns the reductions of all characters (life), vowels (soul)
// and consonants (persona) of the lowercased name, spaces excluded.
func NameNumbers(name string) (life, soul, persona int) {
	var all, vowels, consonants int
	for _, r := range strings.ToLower(name) {
		if unicode.IsSpace(r) {
			continue
		}
		all += int(r)
		switch {
		case strings.ContainsRune("aeiou", r):
			vowels += int(r)
		case unicode.IsLetter(r):
			consonants += int(r)
		}
	}
	return Reduce(all), Reduce(vowels), Reduce(consonants)
}

func numerological(name string, p map[string]float64) encoding.VisualEncoding {
	life, soul, persona := NameNumbers(name)
	lb := bucket(life)
	lifeN := float64(lb) / 10
	soulN := float64(bucket(soul)) / 10
	personaN := float64(bucket(persona)) / 10

	glow := 0.2 + 0.3*lifeN
	if IsMaster(life) {
		glow = p["master_glow"]
	}

	var enc encoding.VisualEncoding
	enc.Geometry = encoding.Geometry{
		Shape:      encoding.ShapeAt(lb + int(math.Round(p["shape_offset"]))),
		Complexity: lifeN,
		Symmetry:   1 - math.Abs(soulN-personaN),
		Angularity: 2*personaN - 1,
	}
	enc.Color = encoding.Color{
		Hue:        p["hue_offset"] + float64(lb)*p["bucket_width"],
		Saturation: p["saturation_weight"]*soulN + (1-p["saturation_weight"])*0.5,
		Brightness: 0.3 + 0.7*personaN,
	}
	enc.Spatial = encoding.Spatial{
		X:        2*soulN - 1,
		Y:        2*personaN - 1,
		Z:        lifeN,
		Rotation: float64(life) * 40,
	}
	enc.Texture = encoding.Texture{
		Glow:             glow,
		FractalDimension: 1 + lifeN,
		PatternDensity:   soulN,
	}
	return enc
}
