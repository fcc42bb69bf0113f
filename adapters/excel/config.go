package excel

// Config describes where domain files live and which columns they use.
// A domain named "crypto" is read from Dir/crypto.xlsx or Dir/crypto.csv.
type Config struct {
	Dir   string `json:"dir"`
	Sheet string `json:"sheet"`

	// Column candidates, matched case-insensitively in order.
	NameColumns    []string `json:"name_columns"`
	OutcomeColumns []string `json:"outcome_columns"`
	SuccessColumns []string `json:"success_columns"`

	// NormalizeOutcomes min-max scales the outcome column per domain.
	// Disable it only when files already carry outcomes in [0,1].
	NormalizeOutcomes bool `json:"normalize_outcomes"`
}

// DefaultConfig returns sensible defaults for domain files in dir
func DefaultConfig(dir string) Config {
	return Config{
		Dir:               dir,
		Sheet:             "Sheet1",
		NameColumns:       []string{"name", "entity", "title", "symbol"},
		OutcomeColumns:    []string{"outcome", "score", "market_cap", "value"},
		SuccessColumns:    []string{"success", "label", "succeeded"},
		NormalizeOutcomes: true,
	}
}
