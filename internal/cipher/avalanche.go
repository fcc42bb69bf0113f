package cipher

import (
	domcipher "gonomen/domain/cipher"
	"gonomen/domain/encoding"
	domformula "gonomen/domain/formula"
)

// Perturb replaces the middle ASCII letter of name with the next letter of
// the alphabet, wrapping z to a and keeping case. It reports false when the
// name has no ASCII letter.
func Perturb(name string) (string, bool) {
	rs := []rune(name)
	var letters []int
	for i, r := range rs {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			letters = append(letters, i)
		}
	}
	if len(letters) == 0 {
		return name, false
	}
	i := letters[len(letters)/2]
	switch r := rs[i]; r {
	case 'z':
		rs[i] = 'a'
	case 'Z':
		rs[i] = 'A'
	default:
		rs[i] = r + 1
	}
	return string(rs), true
}

// avalanche applies one single-character change per name and counts the
// encoding fields that move by more than the threshold.
func (d *Detector) avalanche(samples []sample, def domformula.Definition) domcipher.Avalanche {
	out := domcipher.Avalanche{Threshold: d.config.AvalancheThreshold}
	fields := encoding.Fields()
	total, strong := 0.0, 0
	for _, s := range samples {
		changed, ok := Perturb(s.name)
		if !ok {
			continue
		}
		p, err := d.encode(changed, def)
		if err != nil {
			continue
		}
		moved := 0
		for _, f := range fields {
			if encoding.FieldDelta(f, s.encoding.Get(f), p.encoding.Get(f)) > d.config.AvalancheThreshold {
				moved++
			}
		}
		frac := float64(moved) / float64(len(fields))
		total += frac
		if frac >= d.config.StrongAvalanche {
			strong++
		}
		out.Samples++
	}
	if out.Samples > 0 {
		out.Score = total / float64(out.Samples)
		out.StrongCaseRate = float64(strong) / float64(out.Samples)
	}
	out.Strong = out.Score >= d.config.StrongAvalanche && out.StrongCaseRate >= d.config.StrongAvalanche
	out.Weak = !out.Strong
	return out
}
