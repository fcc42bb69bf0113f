package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	domcipher "gonomen/domain/cipher"
	"gonomen/domain/convergence"
	"gonomen/domain/encoding"
	domevolution "gonomen/domain/evolution"
	"gonomen/domain/features"
	domformula "gonomen/domain/formula"
	"gonomen/domain/stats"
	apperrors "gonomen/internal/errors"
)

// Output formats
const (
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// markdowner is implemented by results with a Markdown rendering
type markdowner interface {
	Markdown() string
}

// render writes v as indented JSON, or as Markdown or an HTML page when v
// has a Markdown rendering.
func render(w io.Writer, format, title string, v interface{}) error {
	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatMarkdown, FormatHTML:
		md, ok := v.(markdowner)
		if !ok {
			return render(w, FormatJSON, title, v)
		}
		text := md.Markdown()
		if format == FormatMarkdown {
			_, err := io.WriteString(w, text)
			return err
		}
		_, err := w.Write(toHTML(title, text))
		return err
	}
	return apperrors.InvalidInput(fmt.Sprintf("unknown output format %q: use json, markdown or html", format))
}

func toHTML(title, md string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	r := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage,
		Title: title,
	})
	return markdown.ToHTML([]byte(md), p, r)
}

func table(b *strings.Builder, header []string, rows [][]string) {
	b.WriteString("| " + strings.Join(header, " | ") + " |\n")
	sep := make([]string, len(header))
	for i := range sep {
		sep[i] = "---"
	}
	b.WriteString("| " + strings.Join(sep, " | ") + " |\n")
	for _, row := range rows {
		b.WriteString("| " + strings.Join(row, " | ") + " |\n")
	}
	b.WriteString("\n")
}

func f4(v float64) string { return fmt.Sprintf("%.4f", v) }

// transformView is the result of the transform command
type transformView struct {
	Name      string                            `json:"name"`
	Features  features.Vector                   `json:"features"`
	Encodings map[string]encoding.VisualEncoding `json:"encodings"`
}

func (v transformView) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n## Features\n\n", v.Name)
	var rows [][]string
	for _, k := range features.Keys() {
		rows = append(rows, []string{string(k), f4(v.Features.Get(k))})
	}
	table(&b, []string{"feature", "value"}, rows)

	theories := make([]string, 0, len(v.Encodings))
	for t := range v.Encodings {
		theories = append(theories, t)
	}
	sort.Strings(theories)

	b.WriteString("## Encodings\n\n")
	header := append([]string{"field"}, theories...)
	rows = [][]string{}
	shapes := []string{"shape"}
	for _, t := range theories {
		shapes = append(shapes, string(v.Encodings[t].Geometry.Shape))
	}
	rows = append(rows, shapes)
	for _, f := range encoding.Fields() {
		row := []string{string(f)}
		for _, t := range theories {
			row = append(row, f4(v.Encodings[t].Get(f)))
		}
		rows = append(rows, row)
	}
	table(&b, header, rows)
	return b.String()
}

// reportView renders a cross-domain validation report
type reportView struct {
	*stats.CrossDomainReport
}

func (v reportView) Markdown() string {
	r := v.CrossDomainReport
	var b strings.Builder
	fmt.Fprintf(&b, "# Validation: %s\n\n", r.Formula.Type)
	fmt.Fprintf(&b, "- report: `%s`\n- overall correlation: %s\n- consistency: %s\n- best field: %s\n- threshold: %s, min sample: %d\n\n",
		r.ID, f4(r.OverallCorrelation), f4(r.ConsistencyScore), fieldOrDash(r.BestField), f4(r.Threshold), r.MinSampleSize)

	b.WriteString("## Domains\n\n")
	var rows [][]string
	for _, d := range r.Domains {
		rows = append(rows, []string{d.Domain.String(), string(d.Status), fmt.Sprint(d.SampleSize), fmt.Sprint(d.Labeled)})
	}
	table(&b, []string{"domain", "status", "sample", "labeled"}, rows)

	b.WriteString("## Fields\n\n")
	rows = nil
	for _, f := range r.Fields {
		universal := ""
		if f.Universal {
			universal = "yes"
		}
		rows = append(rows, []string{string(f.Field), f4(f.WeightedMeanAbsR), f4(f.WeightedVariance),
			fmt.Sprintf("%d/%d", f.DomainsAboveThreshold, f.EligibleDomains), universal})
	}
	table(&b, []string{"field", "mean abs r", "variance", "above threshold", "universal"}, rows)

	if len(r.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "- %s (%s): %s\n", w.Domain, w.Kind, w.Message)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func fieldOrDash(f encoding.Field) string {
	if f == "" {
		return "-"
	}
	return string(f)
}

// historyView renders an evolution history without its populations
type historyView struct {
	*domevolution.History
}

func (v historyView) Markdown() string {
	h := v.History
	var b strings.Builder
	fmt.Fprintf(&b, "# Evolution: %s\n\n", h.Config.FormulaType)
	fmt.Fprintf(&b, "- history: `%s`\n- stop reason: %s\n- best fitness: %s (correlation %s, consistency %s)\n- fingerprint: `%s`\n\n",
		h.ID, h.StopReason, f4(h.Best.Fitness), f4(h.Best.Correlation), f4(h.Best.Consistency), h.Fingerprint)

	b.WriteString("## Generations\n\n")
	var rows [][]string
	for _, g := range h.Generations {
		rows = append(rows, []string{fmt.Sprint(g.Index), f4(g.Best.Fitness), f4(g.MeanFitness), f4(g.Improvement), fmt.Sprint(g.Stalled)})
	}
	table(&b, []string{"generation", "best", "mean", "improvement", "stalled"}, rows)

	b.WriteString("## Best parameters\n\n")
	specs := domformula.Specs(h.Best.Definition.Type)
	rows = nil
	for i, value := range h.Best.Definition.Params {
		name := fmt.Sprintf("param_%d", i)
		if i < len(specs) {
			name = specs[i].Name
		}
		rows = append(rows, []string{name, f4(value)})
	}
	table(&b, []string{"parameter", "value"}, rows)
	return b.String()
}

// profileView renders a cipher profile
type profileView struct {
	*domcipher.Profile
}

func (v profileView) Markdown() string {
	p := v.Profile
	var b strings.Builder
	fmt.Fprintf(&b, "# Cipher profile: %s\n\n> %s\n\n", p.FormulaType, p.Disclaimer)
	fmt.Fprintf(&b, "Band: **%s** over %d names\n\n", p.Band, p.Names)
	table(&b, []string{"measure", "value"}, [][]string{
		{"reversibility score", f4(p.Reversibility.Score)},
		{"nearest neighbor accuracy", f4(p.Reversibility.NearestNeighbor)},
		{"linear r2", f4(p.Reversibility.LinearR2)},
		{"collision rate", f4(p.Collision.CollisionRate)},
		{"min distance", f4(p.Collision.MinDistance)},
		{"avalanche score", f4(p.Avalanche.Score)},
		{"key space entropy (bits)", f4(p.KeySpace.Entropy)},
		{"uniformity", f4(p.KeySpace.Uniformity)},
	})
	return b.String()
}

// signatureView renders a convergence signature and optional patterns
type signatureView struct {
	Signature *convergence.Signature     `json:"signature"`
	Patterns  *convergence.PatternReport `json:"patterns,omitempty"`
}

func (v signatureView) Markdown() string {
	s := v.Signature
	var b strings.Builder
	fmt.Fprintf(&b, "# Convergence: %s\n\n%d runs, best fitness %s\n\n", s.FormulaType, len(s.Histories), f4(s.BestFitness))

	b.WriteString("## Parameters\n\n")
	var rows [][]string
	for _, p := range s.Parameters {
		rows = append(rows, []string{p.Name, f4(p.Best), f4(p.Mean), f4(p.Variance), f4(p.Min), f4(p.Max)})
	}
	table(&b, []string{"parameter", "best", "mean", "variance", "min", "max"}, rows)

	invariants(&b, "Invariants", s.Invariants)
	if v.Patterns != nil {
		invariants(&b, "Universal invariants", v.Patterns.UniversalInvariants)
		invariants(&b, "Domain-specific invariants", v.Patterns.DomainSpecificInvariants)
		for _, p := range v.Patterns.UniversalProperties {
			fmt.Fprintf(&b, "- universal property %s across %d domains\n", p.Field, len(p.Domains))
		}
	}
	return b.String()
}

func invariants(b *strings.Builder, title string, invs []convergence.Invariant) {
	if len(invs) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", title)
	var rows [][]string
	for _, inv := range invs {
		constant := "-"
		if inv.Constant.Name != "" {
			constant = inv.Constant.Name
		}
		rows = append(rows, []string{string(inv.Kind), strings.Join(inv.Params, " / "), f4(inv.MeanValue), constant, f4(inv.Occurrence)})
	}
	table(b, []string{"kind", "params", "mean", "constant", "occurrence"}, rows)
}
