// Package convergence mines evolved parameter populations for ratios and
// constants that recur across runs and domains.
package convergence

import (
	"fmt"
	"math"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/montanaflynn/stats"

	"gonomen/domain/convergence"
	"gonomen/domain/core"
	"gonomen/domain/encoding"
	"gonomen/domain/evolution"
	domformula "gonomen/domain/formula"
	domstats "gonomen/domain/stats"
	"gonomen/internal"
)

var phi = (1 + math.Sqrt(5)) / 2

// RatioConstants are the references parameter-pair ratios are matched
// against. Ratios are taken as max/min so every constant is >= 1.
var RatioConstants = []convergence.Constant{
	{Name: "unity", Value: 1},
	{Name: "4:3", Value: 4.0 / 3},
	{Name: "sqrt2", Value: math.Sqrt2},
	{Name: "3:2", Value: 1.5},
	{Name: "8:5", Value: 1.6},
	{Name: "phi", Value: phi},
	{Name: "13:8", Value: 13.0 / 8},
	{Name: "5:3", Value: 5.0 / 3},
	{Name: "2", Value: 2},
	{Name: "e", Value: math.E},
	{Name: "3", Value: 3},
	{Name: "pi", Value: math.Pi},
}

// ParameterConstants are the references single parameters are matched against.
var ParameterConstants = []convergence.Constant{
	{Name: "phi", Value: phi},
	{Name: "inv_phi", Value: 1 / phi},
	{Name: "inv_phi2", Value: 1 / (phi * phi)},
	{Name: "pi", Value: math.Pi},
	{Name: "e", Value: math.E},
	{Name: "sqrt2", Value: math.Sqrt2},
	{Name: "golden_angle", Value: 360 * (2 - phi)},
}

// Config controls invariant detection and universality.
type Config struct {
	TopK                 int     `json:"top_k" yaml:"top_k" validate:"gte=1"`
	Tolerance            float64 `json:"tolerance" yaml:"tolerance" validate:"gt=0,lt=1"`
	MinOccurrence        float64 `json:"min_occurrence" yaml:"min_occurrence" validate:"gt=0,lte=1"`
	MinIndependent       int     `json:"min_independent" yaml:"min_independent" validate:"gte=1"`
	CorrelationThreshold float64 `json:"correlation_threshold" yaml:"correlation_threshold" validate:"gt=0,lt=1"`
}

// DefaultConfig returns the reference settings.
func DefaultConfig() Config {
	return Config{
		TopK:                 10,
		Tolerance:            0.02,
		MinOccurrence:        0.7,
		MinIndependent:       3,
		CorrelationThreshold: 0.15,
	}
}

// Validate checks the config against its struct tags.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return core.NewConfigError("convergence", err.Error())
	}
	return nil
}

// Analyzer is stateless after construction.
type Analyzer struct {
	config Config
	logger *internal.Logger
}

// Option customizes an Analyzer.
type Option func(*Analyzer)

// WithConfig overrides the default settings.
func WithConfig(cfg Config) Option {
	return func(a *Analyzer) { a.config = cfg }
}

// WithLogger sets the logger.
func WithLogger(l *internal.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(opts ...Option) (*Analyzer, error) {
	a := &Analyzer{config: DefaultConfig(), logger: internal.DefaultLogger}
	for _, opt := range opts {
		opt(a)
	}
	if err := a.config.Validate(); err != nil {
		return nil, err
	}
	a.logger = a.logger.With("Convergence")
	return a, nil
}

// observation is one parameter vector from a final population, tagged with
// the run it came from.
type observation struct {
	params  []float64
	seed    int64
	domains []core.DomainID
}

// AnalyzeEvolution summarizes a single history.
func (a *Analyzer) AnalyzeEvolution(h *evolution.History) (*convergence.Signature, error) {
	return a.AnalyzeRuns([]*evolution.History{h})
}

// AnalyzeRuns pools the final populations of several histories of the same
// formula type. Invariants are mined over the top-K individuals of each run.
func (a *Analyzer) AnalyzeRuns(histories []*evolution.History) (*convergence.Signature, error) {
	if len(histories) == 0 {
		return nil, fmt.Errorf("%w: no histories to analyze", core.ErrInputValidation)
	}
	t := histories[0].Config.FormulaType
	specs := domformula.Specs(t)

	sig := &convergence.Signature{
		FormulaType: t,
		Histories:   make([]core.HistoryID, 0, len(histories)),
		Parameters:  make([]convergence.ParameterStats, 0, len(specs)),
		Invariants:  []convergence.Invariant{},
	}
	var best evolution.Individual
	var final []evolution.Individual
	var top []observation
	for i, h := range histories {
		if h == nil {
			return nil, fmt.Errorf("%w: nil history", core.ErrInputValidation)
		}
		if h.Config.FormulaType != t {
			return nil, fmt.Errorf("%w: mixed formula types %s and %s", core.ErrInputValidation, t, h.Config.FormulaType)
		}
		gen, ok := h.Final()
		if !ok || len(gen.Population) == 0 {
			return nil, fmt.Errorf("%w: history %s has no generations", core.ErrInputValidation, h.ID)
		}
		sig.Histories = append(sig.Histories, h.ID)
		if i == 0 || h.Best.Fitness > best.Fitness {
			best = h.Best
		}
		final = append(final, gen.Population...)
		k := a.config.TopK
		if k > len(gen.Population) {
			k = len(gen.Population)
		}
		for _, ind := range gen.Population[:k] {
			top = append(top, observation{params: ind.Definition.Params, seed: h.Config.Seed, domains: h.Config.Domains})
		}
	}

	sig.BestFitness = best.Fitness
	sig.BestParams = best.Definition.Named()
	for j, s := range specs {
		col := make([]float64, len(final))
		for i, ind := range final {
			col[i] = ind.Definition.Params[j]
		}
		ps, err := parameterStats(s.Name, best.Definition.Params[j], col)
		if err != nil {
			return nil, err
		}
		sig.Parameters = append(sig.Parameters, ps)
	}

	sig.Invariants = append(sig.Invariants, a.constantInvariants(t, specs, top)...)
	sig.Invariants = append(sig.Invariants, a.ratioInvariants(t, specs, top)...)
	a.logger.Debug("%s: %d histories, %d invariants", t, len(histories), len(sig.Invariants))
	return sig, nil
}

func parameterStats(name string, best float64, col []float64) (convergence.ParameterStats, error) {
	ps := convergence.ParameterStats{Name: name, Best: best}
	var err error
	if ps.Mean, err = stats.Mean(col); err != nil {
		return ps, fmt.Errorf("failed to summarize %s: %w", name, err)
	}
	if ps.Variance, err = stats.PopulationVariance(col); err != nil {
		return ps, fmt.Errorf("failed to summarize %s: %w", name, err)
	}
	if ps.Min, err = stats.Min(col); err != nil {
		return ps, fmt.Errorf("failed to summarize %s: %w", name, err)
	}
	if ps.Max, err = stats.Max(col); err != nil {
		return ps, fmt.Errorf("failed to summarize %s: %w", name, err)
	}
	return ps, nil
}

func (a *Analyzer) constantInvariants(t domformula.Type, specs []domformula.ParamSpec, obs []observation) []convergence.Invariant {
	var out []convergence.Invariant
	for j, s := range specs {
		values := make([]float64, len(obs))
		for i, o := range obs {
			values[i] = o.params[j]
		}
		if inv, ok := a.match(ParameterConstants, values, obs); ok {
			inv.FormulaType = t
			inv.Kind = convergence.KindConstant
			inv.Params = []string{s.Name}
			out = append(out, inv)
		}
	}
	return out
}

func (a *Analyzer) ratioInvariants(t domformula.Type, specs []domformula.ParamSpec, obs []observation) []convergence.Invariant {
	var out []convergence.Invariant
	for i := 0; i < len(specs); i++ {
		for j := i + 1; j < len(specs); j++ {
			ratios := make([]float64, len(obs))
			for k, o := range obs {
				ratios[k] = ratio(o.params[i], o.params[j])
			}
			if inv, ok := a.match(RatioConstants, ratios, obs); ok {
				inv.FormulaType = t
				inv.Kind = convergence.KindRatio
				inv.Params = []string{specs[i].Name, specs[j].Name}
				out = append(out, inv)
			}
		}
	}
	return out
}

// ratio is max(|a|,|b|)/min(|a|,|b|), NaN when the smaller magnitude is zero.
func ratio(a, b float64) float64 {
	hi, lo := math.Abs(a), math.Abs(b)
	if lo > hi {
		hi, lo = lo, hi
	}
	if lo == 0 {
		return math.NaN()
	}
	return hi / lo
}

// match finds the constant the most values lie within tolerance of. Equal
// counts prefer the smaller total relative error, then the earlier constant.
// Reports false below MinOccurrence.
func (a *Analyzer) match(constants []convergence.Constant, values []float64, obs []observation) (convergence.Invariant, bool) {
	if len(values) == 0 {
		return convergence.Invariant{}, false
	}
	bestIdx, bestCount, bestErr := -1, 0, math.Inf(1)
	for ci, c := range constants {
		count, relErr := 0, 0.0
		for _, v := range values {
			if near(v, c.Value, a.config.Tolerance) {
				count++
				relErr += math.Abs(v-c.Value) / math.Abs(c.Value)
			}
		}
		if count == 0 {
			continue
		}
		if count > bestCount || (count == bestCount && relErr < bestErr-1e-12) {
			bestIdx, bestCount, bestErr = ci, count, relErr
		}
	}
	if bestIdx < 0 {
		return convergence.Invariant{}, false
	}
	occurrence := float64(bestCount) / float64(len(values))
	if occurrence < a.config.MinOccurrence {
		return convergence.Invariant{}, false
	}

	c := constants[bestIdx]
	matched := make([]float64, 0, bestCount)
	seeds := make(map[int64]bool)
	domains := make(map[core.DomainID]bool)
	for i, v := range values {
		if !near(v, c.Value, a.config.Tolerance) {
			continue
		}
		matched = append(matched, v)
		seeds[obs[i].seed] = true
		for _, d := range obs[i].domains {
			domains[d] = true
		}
	}
	mean, _ := stats.Mean(matched)
	return convergence.Invariant{
		Constant:   c,
		MeanValue:  mean,
		Occurrence: occurrence,
		Support:    bestCount,
		Total:      len(values),
		Runs:       sortedSeeds(seeds),
		Domains:    sortedDomains(domains),
	}, true
}

func near(v, target, tolerance float64) bool {
	if math.IsNaN(v) {
		return false
	}
	return math.Abs(v-target) <= tolerance*math.Abs(target)
}

// UniversalPatterns separates invariants and validated fields that recur
// across at least MinIndependent distinct seeds or single-domain runs from
// those seen in fewer.
func (a *Analyzer) UniversalPatterns(histories []*evolution.History, reports []*domstats.CrossDomainReport) (*convergence.PatternReport, error) {
	out := &convergence.PatternReport{
		UniversalInvariants:      []convergence.Invariant{},
		DomainSpecificInvariants: []convergence.Invariant{},
		UniversalProperties:      []convergence.PropertyPattern{},
		DomainSpecificProperties: []convergence.PropertyPattern{},
	}

	type group struct {
		inv           convergence.Invariant
		weightedMean  float64
		seeds         map[int64]bool
		singleDomains map[core.DomainID]bool
		domains       map[core.DomainID]bool
	}
	groups := make(map[string]*group)
	for _, h := range histories {
		sig, err := a.AnalyzeEvolution(h)
		if err != nil {
			return nil, err
		}
		for _, inv := range sig.Invariants {
			g, ok := groups[inv.Key()]
			if !ok {
				g = &group{
					inv:           convergence.Invariant{FormulaType: inv.FormulaType, Kind: inv.Kind, Params: inv.Params, Constant: inv.Constant},
					seeds:         make(map[int64]bool),
					singleDomains: make(map[core.DomainID]bool),
					domains:       make(map[core.DomainID]bool),
				}
				groups[inv.Key()] = g
			}
			g.inv.Support += inv.Support
			g.inv.Total += inv.Total
			g.weightedMean += inv.MeanValue * float64(inv.Support)
			g.seeds[h.Config.Seed] = true
			if len(h.Config.Domains) == 1 {
				g.singleDomains[h.Config.Domains[0]] = true
			}
			for _, d := range h.Config.Domains {
				g.domains[d] = true
			}
		}
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		g := groups[k]
		inv := g.inv
		if inv.Support > 0 {
			inv.MeanValue = g.weightedMean / float64(inv.Support)
		}
		if inv.Total > 0 {
			inv.Occurrence = float64(inv.Support) / float64(inv.Total)
		}
		inv.Runs = sortedSeeds(g.seeds)
		inv.Domains = sortedDomains(g.domains)
		if len(g.seeds) >= a.config.MinIndependent || len(g.singleDomains) >= a.config.MinIndependent {
			out.UniversalInvariants = append(out.UniversalInvariants, inv)
		} else {
			out.DomainSpecificInvariants = append(out.DomainSpecificInvariants, inv)
		}
	}

	fieldDomains := make(map[encoding.Field]map[core.DomainID]bool)
	for _, r := range reports {
		if r == nil {
			continue
		}
		for _, d := range r.Domains {
			if !d.Eligible() {
				continue
			}
			for _, fc := range d.Fields {
				if math.Abs(fc.Pearson) <= a.config.CorrelationThreshold {
					continue
				}
				if fieldDomains[fc.Field] == nil {
					fieldDomains[fc.Field] = make(map[core.DomainID]bool)
				}
				fieldDomains[fc.Field][d.Domain] = true
			}
		}
	}
	for _, f := range encoding.Fields() {
		ds, ok := fieldDomains[f]
		if !ok {
			continue
		}
		p := convergence.PropertyPattern{Field: f, Domains: sortedDomains(ds)}
		if len(p.Domains) >= a.config.MinIndependent {
			out.UniversalProperties = append(out.UniversalProperties, p)
		} else {
			out.DomainSpecificProperties = append(out.DomainSpecificProperties, p)
		}
	}

	a.logger.Info("patterns: %d universal / %d domain-specific invariants, %d universal / %d domain-specific properties",
		len(out.UniversalInvariants), len(out.DomainSpecificInvariants),
		len(out.UniversalProperties), len(out.DomainSpecificProperties))
	return out, nil
}

func sortedSeeds(m map[int64]bool) []int64 {
	out := make([]int64, 0, len(m))
	for s := range m {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedDomains(m map[core.DomainID]bool) []core.DomainID {
	out := make([]core.DomainID, 0, len(m))
	for d := range m {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
