// Package features implements the reference linguistic feature extractor.
package features

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"gonomen/domain/core"
	domfeatures "gonomen/domain/features"
)

const (
	maxSyllables = 12
	maxLength    = 32
	alphabet     = 26
)

// LinguisticExtractor derives phonetic, semantic, structural and frequency
// primitives from the letters of a name. It is stateless and safe for
// concurrent use.
type LinguisticExtractor struct{}

// NewLinguisticExtractor creates the reference extractor.
func NewLinguisticExtractor() *LinguisticExtractor {
	return &LinguisticExtractor{}
}

// Fold strips diacritics, lowercases and keeps ASCII letters and word breaks.
func Fold(name string) (string, error) {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrInvalidName, err)
	}
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z':
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.':
			space = true
		}
	}
	return b.String(), nil
}

// Extract implements ports.FeatureExtractor.
func (e *LinguisticExtractor) Extract(name string) (domfeatures.Vector, error) {
	folded, err := Fold(name)
	if err != nil {
		return domfeatures.Vector{}, err
	}
	letters := strings.ReplaceAll(folded, " ", "")
	if letters == "" {
		return domfeatures.Vector{}, fmt.Errorf("%w: %q", core.ErrInvalidName, name)
	}
	words := strings.Fields(folded)
	n := float64(len(letters))

	var vowels, plosives, harsh, consonants int
	sonority := 0.0
	counts := make([]int, alphabet)
	for _, r := range letters {
		counts[r-'a']++
		sonority += sonorityOf(r)
		switch {
		case isVowel(r):
			vowels++
		default:
			consonants++
			if isPlosive(r) {
				plosives++
			}
		}
		if strings.ContainsRune("kgtdpbxzqc", r) {
			harsh++
		}
	}

	plosiveRatio := 0.0
	if consonants > 0 {
		plosiveRatio = float64(plosives) / float64(consonants)
	}
	harshness := float64(harsh) / n

	return domfeatures.New(map[domfeatures.Key]float64{
		domfeatures.Harshness:        harshness,
		domfeatures.VowelRatio:       float64(vowels) / n,
		domfeatures.PlosiveRatio:     plosiveRatio,
		domfeatures.Sonority:         sonority / n,
		domfeatures.SemanticCategory: float64(category(letters)) / float64(domfeatures.SemanticCategories-1),
		domfeatures.Authority:        authority(letters, harshness),
		domfeatures.Prestige:         prestige(letters, words),
		domfeatures.SyllableCount:    float64(syllables(words)),
		domfeatures.Length:           math.Min(n, maxLength),
		domfeatures.ConsonantCluster: clusterRatio(letters),
		domfeatures.LetterEntropy:    entropy(counts, n),
		domfeatures.SpectralCentroid: centroid(counts, n),
		domfeatures.Repetition:       repetition(counts, n),
	})
}

func isVowel(r rune) bool {
	return strings.ContainsRune("aeiou", r)
}

func isPlosive(r rune) bool {
	return strings.ContainsRune("pbtdkgqc", r)
}

// sonorityOf ranks a letter on a simplified sonority hierarchy.
func sonorityOf(r rune) float64 {
	switch {
	case isVowel(r):
		return 1.0
	case r == 'w' || r == 'y':
		return 0.8
	case r == 'l' || r == 'r':
		return 0.6
	case r == 'm' || r == 'n':
		return 0.5
	case strings.ContainsRune("fvszhj", r):
		return 0.3
	case isPlosive(r):
		return 0.1
	}
	return 0.2
}

// syllables counts vowel groups per word, dropping a silent trailing e.
func syllables(words []string) int {
	total := 0
	for _, w := range words {
		count := 0
		prev := false
		for _, r := range w {
			v := isVowel(r) || r == 'y'
			if v && !prev {
				count++
			}
			prev = v
		}
		if count > 1 && len(w) > 2 && strings.HasSuffix(w, "e") && !strings.HasSuffix(w, "le") {
			count--
		}
		if count == 0 {
			count = 1
		}
		total += count
	}
	if total > maxSyllables {
		total = maxSyllables
	}
	return total
}

// clusterRatio is the fraction of letters inside runs of two or more consonants.
func clusterRatio(letters string) float64 {
	inCluster := 0
	run := 0
	for _, r := range letters {
		if isVowel(r) || r == 'y' {
			if run >= 2 {
				inCluster += run
			}
			run = 0
			continue
		}
		run++
	}
	if run >= 2 {
		inCluster += run
	}
	return float64(inCluster) / float64(len(letters))
}

func entropy(counts []int, n float64) float64 {
	h := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		h -= p * math.Log2(p)
	}
	return math.Min(1, h/math.Log2(alphabet))
}

func centroid(counts []int, n float64) float64 {
	sum := 0.0
	for i, c := range counts {
		sum += float64(i) * float64(c)
	}
	return sum / n / (alphabet - 1)
}

func repetition(counts []int, n float64) float64 {
	if n <= 1 {
		return 0
	}
	distinct := 0
	for _, c := range counts {
		if c > 0 {
			distinct++
		}
	}
	return (n - float64(distinct)) / (n - 1)
}

func countRoots(letters string, roots []string) int {
	hits := 0
	for _, root := range roots {
		if strings.Contains(letters, root) {
			hits++
		}
	}
	return hits
}

// category picks the category with the most matching roots. Ties resolve to
// the earlier category; no match is neutral.
func category(letters string) int {
	best, bestHits := CategoryNeutral, 0
	for c, roots := range categoryRoots {
		if hits := countRoots(letters, roots); hits > bestHits {
			best, bestHits = c, hits
		}
	}
	return best
}

func authority(letters string, harshness float64) float64 {
	hits := math.Min(1, float64(countRoots(letters, authorityRoots))/2)
	initial := 0.2
	first := rune(letters[0])
	switch {
	case isPlosive(first):
		initial = 1.0
	case strings.ContainsRune("fvszhj", first):
		initial = 0.5
	}
	return clamp01(0.5*hits + 0.3*initial + 0.2*harshness)
}

func prestige(letters string, words []string) float64 {
	hits := math.Min(1, float64(countRoots(letters, prestigeRoots)))
	vowelEnd := 0.0
	for _, w := range words {
		if isVowel(rune(w[len(w)-1])) {
			vowelEnd++
		}
	}
	vowelEnd /= float64(len(words))
	long := 0.0
	if len(letters) >= 7 {
		long = 1
	}
	return clamp01(0.5*hits + 0.3*vowelEnd + 0.2*long)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
