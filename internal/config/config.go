package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"gonomen/domain/core"
	"gonomen/domain/evolution"
	"gonomen/domain/formula"
	"gonomen/internal/cipher"
	"gonomen/internal/convergence"
	"gonomen/internal/errors"
	"gonomen/internal/validation"
)

// Dataset sources
const (
	SourceSynthetic = "synthetic"
	SourceExcel     = "excel"
	SourcePostgres  = "postgres"
)

// Config represents the complete application configuration
type Config struct {
	Server      ServerConfig       `yaml:"server"`
	Database    DatabaseConfig     `yaml:"database"`
	Data        DataConfig         `yaml:"data"`
	Evolution   EvolutionConfig    `yaml:"evolution"`
	Validator   validation.Config  `yaml:"validator"`
	Cipher      cipher.Config      `yaml:"cipher"`
	Convergence convergence.Config `yaml:"convergence"`
	Stego       StegoConfig        `yaml:"stego"`
	LogLevel    string             `yaml:"log_level"`
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port      string `yaml:"port" validate:"required,numeric"`
	AdminPort string `yaml:"admin_port" validate:"required,numeric,nefield=Port"`
	GinMode   string `yaml:"gin_mode" validate:"oneof=debug release test"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// DataConfig selects where domain entities come from
type DataConfig struct {
	Source string `yaml:"source" validate:"oneof=synthetic excel postgres"`
	Dir    string `yaml:"dir" validate:"required_if=Source excel"`
	Seed   int64  `yaml:"seed"`
}

// EvolutionConfig holds the defaults applied to evolution requests
type EvolutionConfig struct {
	PopulationSize int     `yaml:"population_size" validate:"gte=2"`
	Generations    int     `yaml:"generations" validate:"gte=1"`
	MutationRate   float64 `yaml:"mutation_rate" validate:"gte=0,lte=1"`
	EliteSize      int     `yaml:"elite_size" validate:"gte=1,ltfield=PopulationSize"`
	LimitPerDomain int     `yaml:"limit_per_domain" validate:"gte=1"`
	Seed           int64   `yaml:"seed"`
	Workers        int     `yaml:"workers" validate:"gte=0"`
}

// StegoConfig holds steganography key material
type StegoConfig struct {
	Key string `yaml:"key" validate:"omitempty,max=64"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	evo := evolution.DefaultConfig(formula.Hybrid, nil)
	return &Config{
		Server: ServerConfig{Port: "8080", AdminPort: "9090", GinMode: "debug"},
		Data:   DataConfig{Source: SourceSynthetic, Seed: 42},
		Evolution: EvolutionConfig{
			PopulationSize: evo.PopulationSize,
			Generations:    evo.Generations,
			MutationRate:   evo.MutationRate,
			EliteSize:      evo.EliteSize,
			LimitPerDomain: evo.LimitPerDomain,
			Seed:           evo.Seed,
		},
		Validator:   validation.DefaultConfig(),
		Cipher:      cipher.DefaultConfig(),
		Convergence: convergence.DefaultConfig(),
		LogLevel:    "INFO",
	}
}

// Load reads configuration from environment variables, overlays the YAML
// file named by CONFIG_FILE when set, and validates the result
func Load() (*Config, error) {
	config := Defaults()
	if err := loadEnv(config); err != nil {
		return nil, err
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := overlayFile(config, path); err != nil {
			return nil, err
		}
	}

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func loadEnv(c *Config) error {
	env := &envReader{}
	c.Server.Port = env.String("PORT", c.Server.Port)
	c.Server.AdminPort = env.String("ADMIN_PORT", c.Server.AdminPort)
	c.Server.GinMode = env.String("GIN_MODE", c.Server.GinMode)

	c.Database.URL = env.String("DATABASE_URL", c.Database.URL)

	c.Data.Source = strings.ToLower(env.String("DATA_SOURCE", c.Data.Source))
	c.Data.Dir = env.String("DATA_DIR", c.Data.Dir)
	c.Data.Seed = env.Int64("DATA_SEED", c.Data.Seed)

	c.Evolution.PopulationSize = env.Int("EVOLUTION_POPULATION", c.Evolution.PopulationSize)
	c.Evolution.Generations = env.Int("EVOLUTION_GENERATIONS", c.Evolution.Generations)
	c.Evolution.MutationRate = env.Float("EVOLUTION_MUTATION_RATE", c.Evolution.MutationRate)
	c.Evolution.EliteSize = env.Int("EVOLUTION_ELITE_SIZE", c.Evolution.EliteSize)
	c.Evolution.LimitPerDomain = env.Int("EVOLUTION_LIMIT_PER_DOMAIN", c.Evolution.LimitPerDomain)
	c.Evolution.Seed = env.Int64("EVOLUTION_SEED", c.Evolution.Seed)
	c.Evolution.Workers = env.Int("EVOLUTION_WORKERS", c.Evolution.Workers)

	c.Validator.MinSampleSize = env.Int("VALIDATOR_MIN_SAMPLE_SIZE", c.Validator.MinSampleSize)
	c.Validator.Threshold = env.Float("VALIDATOR_THRESHOLD", c.Validator.Threshold)

	c.Cipher.CollisionEpsilon = env.Float("CIPHER_COLLISION_EPSILON", c.Cipher.CollisionEpsilon)
	c.Cipher.AvalancheThreshold = env.Float("CIPHER_AVALANCHE_THRESHOLD", c.Cipher.AvalancheThreshold)

	c.Convergence.Tolerance = env.Float("CONVERGENCE_TOLERANCE", c.Convergence.Tolerance)

	c.Stego.Key = env.String("STEGO_KEY", c.Stego.Key)
	c.LogLevel = env.String("LOG_LEVEL", c.LogLevel)
	return env.err
}

func overlayFile(c *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(errors.ConfigInvalid(err.Error()), "failed to read config file %s", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrapf(errors.ConfigInvalid(err.Error()), "failed to parse config file %s", path)
	}
	return nil
}

// Validate checks every section against its struct tags
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return core.NewConfigError("config", err.Error())
	}
	if c.Data.Source == SourcePostgres && c.Database.URL == "" {
		return core.NewConfigError("database.url", "is required for the postgres source")
	}
	return nil
}

// EvolutionDefaults builds an evolution config from the configured defaults.
func (c *Config) EvolutionDefaults(t formula.Type, domains []core.DomainID) evolution.Config {
	cfg := evolution.DefaultConfig(t, domains)
	cfg.PopulationSize = c.Evolution.PopulationSize
	cfg.Generations = c.Evolution.Generations
	cfg.MutationRate = c.Evolution.MutationRate
	cfg.EliteSize = c.Evolution.EliteSize
	cfg.LimitPerDomain = c.Evolution.LimitPerDomain
	cfg.Seed = c.Evolution.Seed
	cfg.Workers = c.Evolution.Workers
	if cfg.TournamentSize > cfg.PopulationSize {
		cfg.TournamentSize = cfg.PopulationSize
	}
	return cfg
}

// envReader reads typed environment variables, keeping the first value that
// fails to parse so Load can report it instead of falling back silently.
type envReader struct {
	err error
}

func (r *envReader) String(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (r *envReader) Int(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		r.fail(key, value, "integer")
		return defaultValue
	}
	return intValue
}

func (r *envReader) Int64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		r.fail(key, value, "integer")
		return defaultValue
	}
	return intValue
}

func (r *envReader) Float(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		r.fail(key, value, "number")
		return defaultValue
	}
	return floatValue
}

func (r *envReader) fail(key, value, kind string) {
	if r.err == nil {
		r.err = core.NewConfigError(key, fmt.Sprintf("%q is not a valid %s", value, kind))
	}
}
