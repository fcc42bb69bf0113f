package evolution

import (
	"math"
	"math/rand"

	"gonomen/domain/evolution"
	domformula "gonomen/domain/formula"
)

// extremeMargin is the fraction of a parameter's range near either bound
// that counts against simplicity.
const extremeMargin = 0.05

// activeWeight is the hybrid weight above which a component counts as used.
const activeWeight = 0.05

// Simplicity rewards moderate parameters. Non-hybrid formulas lose credit
// for every parameter within 5% of a bound; hybrid formulas lose credit for
// every active component beyond the first.
func Simplicity(def domformula.Definition) float64 {
	if len(def.Params) == 0 {
		return 1
	}
	if def.Type == domformula.Hybrid {
		active := 0
		for _, w := range def.Params {
			if w > activeWeight {
				active++
			}
		}
		if active <= 1 || len(def.Params) == 1 {
			return 1
		}
		return 1 - float64(active-1)/float64(len(def.Params)-1)
	}

	specs := domformula.Specs(def.Type)
	extreme := 0
	for i, v := range def.Params {
		if i >= len(specs) {
			break
		}
		margin := specs[i].Span() * extremeMargin
		if v <= specs[i].Min+margin || v >= specs[i].Max-margin {
			extreme++
		}
	}
	return 1 - float64(extreme)/float64(len(def.Params))
}

// Fitness combines the validation scores with simplicity.
func Fitness(correlation, consistency, simplicity float64) float64 {
	return evolution.CorrelationWeight*correlation +
		evolution.ConsistencyWeight*consistency +
		evolution.SimplicityWeight*simplicity
}

// randomDefinition samples every parameter uniformly within its bounds.
func randomDefinition(rng *rand.Rand, t domformula.Type) domformula.Definition {
	specs := domformula.Specs(t)
	params := make([]float64, len(specs))
	for i, s := range specs {
		params[i] = s.Min + rng.Float64()*s.Span()
	}
	return domformula.Definition{Type: t, Version: 1, Params: params}.Normalize()
}

// crossover blends two parents parameter by parameter with independent
// mixing ratios.
func crossover(rng *rand.Rand, a, b domformula.Definition) domformula.Definition {
	child := a.Clone()
	for i := range child.Params {
		mix := rng.Float64()
		child.Params[i] = mix*a.Params[i] + (1-mix)*b.Params[i]
	}
	return child.Normalize()
}

// mutate perturbs each parameter with probability rate by a Gaussian step
// of sigma times the parameter's range.
func mutate(rng *rand.Rand, def domformula.Definition, rate, sigma float64) domformula.Definition {
	out := def.Clone()
	specs := domformula.Specs(def.Type)
	for i := range out.Params {
		if rng.Float64() >= rate {
			continue
		}
		out.Params[i] = specs[i].Clamp(out.Params[i] + rng.NormFloat64()*sigma*specs[i].Span())
	}
	return out.Normalize()
}

// tournament returns the fittest of size uniformly drawn individuals.
// Equal fitness keeps the earlier draw.
func tournament(rng *rand.Rand, pop []evolution.Individual, size int) evolution.Individual {
	best := pop[rng.Intn(len(pop))]
	for i := 1; i < size; i++ {
		c := pop[rng.Intn(len(pop))]
		if c.Fitness > best.Fitness {
			best = c
		}
	}
	return best
}

func meanFitness(pop []evolution.Individual) float64 {
	if len(pop) == 0 {
		return 0
	}
	sum := 0.0
	for _, ind := range pop {
		sum += ind.Fitness
	}
	return sum / float64(len(pop))
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
