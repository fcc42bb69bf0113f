package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"gonomen/adapters/excel"
	"gonomen/adapters/postgres"
	"gonomen/domain/core"
	"gonomen/domain/encoding"
	domevolution "gonomen/domain/evolution"
	domformula "gonomen/domain/formula"
	domstats "gonomen/domain/stats"
	domstego "gonomen/domain/stego"
	"gonomen/internal"
	"gonomen/internal/config"
	"gonomen/internal/container"
	apperrors "gonomen/internal/errors"
)

// cli carries state shared by every command
type cli struct {
	out io.Writer
	in  io.Reader

	format   string
	source   string
	dataDir  string
	stegoKey string

	cfg *config.Config
	c   *container.Container
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stdin).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer, in io.Reader) *cobra.Command {
	app := &cli{out: out, in: in}

	rootCmd := &cobra.Command{
		Use:           "gonomen",
		Short:         "Encode names, validate and evolve encoding theories, embed messages",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app.c != nil {
				app.c.Shutdown()
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&app.format, "format", FormatJSON, "Output format: json|markdown|html")
	flags.StringVar(&app.source, "source", "", "Dataset source: synthetic|excel|postgres (default from DATA_SOURCE)")
	flags.StringVar(&app.dataDir, "data-dir", "", "Directory of .xlsx/.csv domain files (default from DATA_DIR)")
	flags.StringVar(&app.stegoKey, "stego-key", "", "Steganography key (default from STEGO_KEY)")

	rootCmd.AddCommand(
		app.newDomainsCmd(),
		app.newTransformCmd(),
		app.newValidateCmd(),
		app.newEvolveCmd(),
		app.newConvergeCmd(),
		app.newReproduceCmd(),
		app.newCipherCmd(),
		app.newStegoCmd(),
		app.newImportCmd(),
	)
	return rootCmd
}

func (a *cli) setup(ctx context.Context) error {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.source != "" {
		cfg.Data.Source = strings.ToLower(a.source)
	}
	if a.dataDir != "" {
		cfg.Data.Dir = a.dataDir
	}
	if a.stegoKey != "" {
		cfg.Stego.Key = a.stegoKey
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := internal.NewLoggerTo(os.Stderr, internal.ParseLogLevel(cfg.LogLevel))
	if ctx == nil {
		ctx = context.Background()
	}
	c, err := container.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	a.cfg, a.c = cfg, c
	return nil
}

func (a *cli) render(title string, v interface{}) error {
	return render(a.out, a.format, title, v)
}

func parseDomains(raw []string) []core.DomainID {
	var out []core.DomainID
	for _, r := range raw {
		if id, err := core.ParseDomainID(r); err == nil {
			out = append(out, id)
		}
	}
	return out
}

func (a *cli) domains(ctx context.Context, raw []string) ([]core.DomainID, error) {
	if ids := parseDomains(raw); len(ids) > 0 {
		return ids, nil
	}
	return a.c.Dataset.Domains(ctx)
}

func (a *cli) newDomainsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "domains",
		Short: "List the domains of the configured dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			domains, err := a.c.Dataset.Domains(cmd.Context())
			if err != nil {
				return err
			}
			return a.render("Domains", map[string][]core.DomainID{"domains": domains})
		},
	}
}

func (a *cli) newTransformCmd() *cobra.Command {
	var formula string

	cmd := &cobra.Command{
		Use:   "transform [name]",
		Short: "Encode a name under one theory or all of them",
		Long: `Extract the linguistic features of a name and encode them.

Example: gonomen transform Bitcoin --formula phonetic --format markdown`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			fv, err := a.c.Extractor.Extract(name)
			if err != nil {
				return err
			}
			view := transformView{Name: name, Features: fv, Encodings: make(map[string]encoding.VisualEncoding)}
			if formula == "" {
				all, err := a.c.Engine.TransformAll(name, fv)
				if err != nil {
					return err
				}
				for t, enc := range all {
					view.Encodings[t.String()] = enc
				}
			} else {
				t, err := domformula.ParseType(formula)
				if err != nil {
					return err
				}
				enc, err := a.c.Engine.Transform(name, fv, t)
				if err != nil {
					return err
				}
				view.Encodings[t.String()] = enc
			}
			return a.render(name, view)
		},
	}

	cmd.Flags().StringVar(&formula, "formula", "", "Theory to encode with (default: all)")
	return cmd
}

func (a *cli) newValidateCmd() *cobra.Command {
	var formula string
	var domains []string
	var limit int

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a theory across domains",
		Long: `Correlate every encoding field with entity outcomes in each domain and
aggregate the results across domains.

Example: gonomen validate --formula hybrid --domains crypto,bands --limit 300`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := domformula.ParseType(formula)
			if err != nil {
				return err
			}
			ids, err := a.domains(cmd.Context(), domains)
			if err != nil {
				return err
			}
			if limit == 0 {
				limit = a.cfg.Evolution.LimitPerDomain
			}
			report, err := a.c.Validator.Validate(cmd.Context(), t, ids, limit)
			if err != nil {
				return err
			}
			return a.render("Validation "+t.String(), reportView{report})
		},
	}

	cmd.Flags().StringVar(&formula, "formula", domformula.Hybrid.String(), "Theory to validate")
	cmd.Flags().StringSliceVar(&domains, "domains", nil, "Domains to validate over (default: all)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Entities per domain (default from EVOLUTION_LIMIT_PER_DOMAIN)")
	return cmd
}

func (a *cli) newEvolveCmd() *cobra.Command {
	var formula string
	var domains []string
	var population, generations, runs int
	var seed int64
	var save string

	cmd := &cobra.Command{
		Use:   "evolve",
		Short: "Evolve the parameters of a theory",
		Long: `Run the genetic search over a theory's parameters, scoring each candidate by
cross-domain validation. With --runs above one, independent runs with
consecutive seeds are summarized as a convergence signature.

Example: gonomen evolve --formula structural --generations 20 --save run.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := domformula.ParseType(formula)
			if err != nil {
				return err
			}
			ids, err := a.domains(cmd.Context(), domains)
			if err != nil {
				return err
			}
			cfg := a.cfg.EvolutionDefaults(t, ids)
			if population > 0 {
				cfg.PopulationSize = population
			}
			if generations > 0 {
				cfg.Generations = generations
			}
			if cmd.Flags().Changed("seed") {
				cfg.Seed = seed
			}
			if cfg.TournamentSize > cfg.PopulationSize {
				cfg.TournamentSize = cfg.PopulationSize
			}

			if runs > 1 {
				histories, err := a.c.Evolver.EvolveRuns(cmd.Context(), cfg, runs)
				if err != nil {
					return err
				}
				for _, h := range histories {
					a.persist(cmd.Context(), h)
				}
				sig, err := a.c.Analyzer.AnalyzeRuns(histories)
				if err != nil {
					return err
				}
				if save != "" {
					if err := writeJSON(save, histories); err != nil {
						return err
					}
				}
				return a.render("Convergence "+t.String(), signatureView{Signature: sig})
			}

			h, err := a.c.Evolver.Evolve(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			a.persist(cmd.Context(), h)
			if save != "" {
				if err := writeJSON(save, []*domevolution.History{h}); err != nil {
					return err
				}
			}
			return a.render("Evolution "+t.String(), historyView{h})
		},
	}

	cmd.Flags().StringVar(&formula, "formula", domformula.Hybrid.String(), "Theory to evolve")
	cmd.Flags().StringSliceVar(&domains, "domains", nil, "Domains to score over (default: all)")
	cmd.Flags().IntVar(&population, "population", 0, "Population size (default from EVOLUTION_POPULATION)")
	cmd.Flags().IntVar(&generations, "generations", 0, "Generation budget (default from EVOLUTION_GENERATIONS)")
	cmd.Flags().IntVar(&runs, "runs", 1, "Independent runs with consecutive seeds")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed for deterministic operations")
	cmd.Flags().StringVar(&save, "save", "", "Write the histories to this JSON file")
	return cmd
}

func (a *cli) persist(ctx context.Context, h *domevolution.History) {
	if h.StopReason == domevolution.StopCancelled {
		return
	}
	if err := a.c.Histories.Save(ctx, h); err != nil {
		a.c.Logger.Warn("failed to persist history %s: %v", h.ID, err)
	}
}

func (a *cli) newConvergeCmd() *cobra.Command {
	var validate bool

	cmd := &cobra.Command{
		Use:   "converge [histories.json...]",
		Short: "Summarize saved evolution runs as a convergence signature",
		Long: `Pool the histories written by evolve --save and find stable parameters
and mathematical invariants. With --validate the best formula of each run is
validated and universal patterns are separated from domain-specific ones.

Example: gonomen converge run1.json run2.json --validate`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var histories []*domevolution.History
			for _, path := range args {
				var hs []*domevolution.History
				if err := readJSON(path, a.in, &hs); err != nil {
					return err
				}
				histories = append(histories, hs...)
			}
			sig, err := a.c.Analyzer.AnalyzeRuns(histories)
			if err != nil {
				return err
			}
			view := signatureView{Signature: sig}
			if validate {
				reports := make([]*domstats.CrossDomainReport, 0, len(histories))
				for _, h := range histories {
					corpus, err := a.c.Validator.Prepare(cmd.Context(), h.Config.Domains, h.Config.LimitPerDomain)
					if err != nil {
						return err
					}
					report, err := a.c.Validator.ValidateDefinition(cmd.Context(), corpus, h.Frozen())
					if err != nil {
						return err
					}
					reports = append(reports, report)
				}
				if view.Patterns, err = a.c.Analyzer.UniversalPatterns(histories, reports); err != nil {
					return err
				}
			}
			return a.render("Convergence "+sig.FormulaType.String(), view)
		},
	}

	cmd.Flags().BoolVar(&validate, "validate", false, "Validate each run's best formula and report universal patterns")
	return cmd
}

func (a *cli) newReproduceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reproduce [histories.json]",
		Short: "Re-run saved evolutions and check they are bit-identical",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var histories []*domevolution.History
			if err := readJSON(args[0], a.in, &histories); err != nil {
				return err
			}
			results := make([]map[string]interface{}, 0, len(histories))
			for _, h := range histories {
				result := map[string]interface{}{"history": h.ID, "reproduced": true}
				if err := a.c.Evolver.Reproduce(cmd.Context(), h); err != nil {
					if !core.IsDeterminismError(err) {
						return err
					}
					result["reproduced"] = false
					result["error"] = err.Error()
				}
				results = append(results, result)
			}
			return a.render("Reproduction", map[string]interface{}{"results": results})
		},
	}
}

func (a *cli) newCipherCmd() *cobra.Command {
	var formula string
	var file string

	cmd := &cobra.Command{
		Use:   "cipher [names...]",
		Short: "Profile a theory's encoding transform with cipher-analysis measures",
		Long: `Measure reversibility, collision resistance, avalanche and key-space
coverage of the transform over a name corpus. Names come from arguments or
from --file, one per line.

Example: gonomen cipher --file names.txt --formula numerological`,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := domformula.ParseType(formula)
			if err != nil {
				return err
			}
			names := args
			if file != "" {
				lines, err := readLines(file, a.in)
				if err != nil {
					return err
				}
				names = append(names, lines...)
			}
			profile, err := a.c.Detector.Analyze(cmd.Context(), names, t)
			if err != nil {
				return err
			}
			return a.render("Cipher profile "+t.String(), profileView{profile})
		},
	}

	cmd.Flags().StringVar(&formula, "formula", domformula.Hybrid.String(), "Theory to profile")
	cmd.Flags().StringVar(&file, "file", "", "File of names, one per line (- for stdin)")
	return cmd
}

func (a *cli) newStegoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stego",
		Short: "Embed, extract and authenticate messages in encodings",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd.Context()); err != nil {
				return err
			}
			if a.c.Stego == nil {
				return apperrors.ConfigInvalid("steganography needs a key: set STEGO_KEY or --stego-key")
			}
			return nil
		},
	}
	cmd.AddCommand(a.newInjectCmd(), a.newExtractCmd(), a.newAuthCmd(), a.newVerifyCmd())
	return cmd
}

func (a *cli) newInjectCmd() *cobra.Command {
	var formula, msgType, data, method string

	cmd := &cobra.Command{
		Use:   "inject [name]",
		Short: "Encode a name and embed a message in the encoding",
		Long: `Example: gonomen stego inject Bitcoin --type text --data hi --method multi_channel > enc.json`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := domformula.ParseType(formula)
			if err != nil {
				return err
			}
			mt, err := domstego.ParseMessageType(msgType)
			if err != nil {
				return err
			}
			fv, err := a.c.Extractor.Extract(args[0])
			if err != nil {
				return err
			}
			enc, err := a.c.Engine.Transform(args[0], fv, t)
			if err != nil {
				return err
			}
			msg, err := a.c.Stego.CreateMessage(mt, []byte(data))
			if err != nil {
				return err
			}
			out, err := a.c.Stego.Inject(enc, msg, domstego.Method(method))
			if err != nil {
				return err
			}
			return render(a.out, FormatJSON, "", map[string]interface{}{
				"encoding":  out,
				"message":   msg,
				"auth_code": a.c.Stego.GenerateAuthCode(out),
			})
		},
	}

	cmd.Flags().StringVar(&formula, "formula", domformula.Hybrid.String(), "Theory to encode with")
	cmd.Flags().StringVar(&msgType, "type", "text", "Message type: signature|timestamp|metadata|checksum|text")
	cmd.Flags().StringVar(&data, "data", "", "Message data")
	cmd.Flags().StringVar(&method, "method", string(domstego.MethodMultiChannel), "Injection method: lsb|position|multi_channel")
	return cmd
}

// readEncoding accepts a bare encoding or the output of stego inject.
func (a *cli) readEncoding(path string) (encoding.VisualEncoding, error) {
	var wrapped struct {
		Encoding *encoding.VisualEncoding `json:"encoding"`
	}
	raw, err := readAll(path, a.in)
	if err != nil {
		return encoding.VisualEncoding{}, err
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Encoding != nil {
		return *wrapped.Encoding, nil
	}
	var enc encoding.VisualEncoding
	if err := json.Unmarshal(raw, &enc); err != nil {
		return encoding.VisualEncoding{}, apperrors.InvalidInput(fmt.Sprintf("%s is not an encoding: %v", path, err))
	}
	return enc, nil
}

func (a *cli) newExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract [encoding.json]",
		Short: "Recover an embedded message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enc, err := a.readEncoding(args[0])
			if err != nil {
				return err
			}
			return render(a.out, FormatJSON, "", a.c.Stego.Extract(enc))
		},
	}
}

func (a *cli) newAuthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth [encoding.json]",
		Short: "Compute the authentication code of an encoding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enc, err := a.readEncoding(args[0])
			if err != nil {
				return err
			}
			return render(a.out, FormatJSON, "", map[string]string{"code": a.c.Stego.GenerateAuthCode(enc)})
		},
	}
}

func (a *cli) newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [encoding.json] [code]",
		Short: "Check an authentication code",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			enc, err := a.readEncoding(args[0])
			if err != nil {
				return err
			}
			return render(a.out, FormatJSON, "", map[string]bool{"valid": a.c.Stego.Verify(enc, args[1])})
		},
	}
}

func (a *cli) newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [dir]",
		Short: "Load .xlsx/.csv domain files into PostgreSQL",
		Long: `Read every workbook in dir and replace the matching domains in the
domain_entities table. Requires DATABASE_URL.

Example: DATABASE_URL=postgres://... gonomen import ./data`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.c.DB == nil {
				return apperrors.ConfigInvalid("import needs DATABASE_URL")
			}
			src, err := excel.NewDataset(excel.DefaultConfig(args[0]), a.c.Logger)
			if err != nil {
				return err
			}
			dst := postgres.NewEntityDataset(a.c.DB)

			ctx := cmd.Context()
			domains, err := src.Domains(ctx)
			if err != nil {
				return err
			}
			imported := make(map[core.DomainID]int, len(domains))
			for _, d := range domains {
				entities, err := src.Load(ctx, d, math.MaxInt32)
				if err != nil {
					return err
				}
				if err := dst.Import(ctx, d, entities); err != nil {
					return apperrors.Wrapf(err, "failed to import domain %s", d)
				}
				imported[d] = len(entities)
				a.c.Logger.Info("imported %d entities into %s", len(entities), d)
			}
			return a.render("Import", map[string]interface{}{"imported": imported})
		},
	}
}

func readAll(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}
	return data, nil
}

func readJSON(path string, stdin io.Reader, v interface{}) error {
	data, err := readAll(path, stdin)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperrors.InvalidInput(fmt.Sprintf("failed to parse %s: %v", path, err))
	}
	return nil
}

func readLines(path string, stdin io.Reader) ([]string, error) {
	data, err := readAll(path, stdin)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
