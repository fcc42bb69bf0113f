package container

import (
	"context"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"gonomen/adapters/excel"
	"gonomen/adapters/postgres"
	"gonomen/internal"
	"gonomen/internal/api"
	"gonomen/internal/cipher"
	"gonomen/internal/config"
	"gonomen/internal/convergence"
	"gonomen/internal/errors"
	"gonomen/internal/evolution"
	"gonomen/internal/formula"
	"gonomen/internal/migration"
	"gonomen/internal/stego"
	"gonomen/internal/testkit"
	"gonomen/internal/validation"
	"gonomen/ports"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	DB *sqlx.DB

	// Data access
	Dataset   ports.DomainDataset
	Extractor ports.FeatureExtractor
	Histories ports.HistoryRepository
	RNG       ports.RNGPort

	// Engine components
	Engine    *formula.Engine
	Validator *validation.Validator
	Evolver   *evolution.Evolver
	Analyzer  *convergence.Analyzer
	Detector  *cipher.Detector
	Stego     *stego.Encoder

	kit *testkit.TestKit
}

// New builds every component from cfg. The postgres source and a set
// DATABASE_URL open, ping and migrate the database; histories are then
// persisted there, otherwise in memory.
func New(ctx context.Context, cfg *config.Config, logger *internal.Logger) (*Container, error) {
	if cfg == nil {
		return nil, errors.ConfigInvalid("config cannot be nil")
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}

	c := &Container{
		Config: cfg,
		Logger: logger,
		kit:    testkit.NewTestKitWithDomains(cfg.Data.Seed, testkit.DefaultDomains()...),
	}
	c.Extractor = c.kit.FeatureExtractor()
	c.RNG = c.kit.RNGAdapter()

	if cfg.Database.URL != "" {
		if err := c.initDatabase(ctx); err != nil {
			return nil, err
		}
	}
	if err := c.initDataset(); err != nil {
		c.Shutdown()
		return nil, err
	}
	if err := c.initEngine(); err != nil {
		c.Shutdown()
		return nil, err
	}

	logger.With("Container").Info("initialized: source=%s persistence=%t stego=%t",
		cfg.Data.Source, c.DB != nil, c.Stego != nil)
	return c, nil
}

func (c *Container) initDatabase(ctx context.Context) error {
	db, err := sqlx.ConnectContext(ctx, "postgres", c.Config.Database.URL)
	if err != nil {
		return errors.DatabaseError("failed to connect to database", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return errors.DatabaseError("failed to ping database", err)
	}
	if err := migration.NewRunner().Run(ctx, db); err != nil {
		db.Close()
		return errors.Wrap(err, "database migration failed")
	}
	c.DB = db
	c.Histories = postgres.NewHistoryRepository(db)
	return nil
}

func (c *Container) initDataset() error {
	switch c.Config.Data.Source {
	case config.SourceExcel:
		ds, err := excel.NewDataset(excel.DefaultConfig(c.Config.Data.Dir), c.Logger)
		if err != nil {
			return err
		}
		c.Dataset = ds
	case config.SourcePostgres:
		if c.DB == nil {
			return errors.ConfigInvalid("the postgres source requires DATABASE_URL")
		}
		c.Dataset = postgres.NewEntityDataset(c.DB)
	default:
		c.Dataset = c.kit.DomainDataset()
	}
	if c.Histories == nil {
		c.Histories = c.kit.HistoryRepository()
	}
	return nil
}

func (c *Container) initEngine() error {
	var err error
	if c.Engine, err = formula.NewEngine(); err != nil {
		return err
	}
	c.Validator, err = validation.NewValidator(c.Engine, c.Dataset, c.Extractor,
		validation.WithConfig(c.Config.Validator), validation.WithLogger(c.Logger))
	if err != nil {
		return err
	}
	c.Evolver = evolution.NewEvolver(c.Validator, c.RNG, evolution.WithLogger(c.Logger))
	if c.Analyzer, err = convergence.NewAnalyzer(convergence.WithConfig(c.Config.Convergence), convergence.WithLogger(c.Logger)); err != nil {
		return err
	}
	if c.Detector, err = cipher.NewDetector(c.Engine, c.Extractor, cipher.WithConfig(c.Config.Cipher), cipher.WithLogger(c.Logger)); err != nil {
		return err
	}
	if c.Config.Stego.Key != "" {
		if c.Stego, err = stego.NewEncoder([]byte(c.Config.Stego.Key), stego.WithLogger(c.Logger)); err != nil {
			return err
		}
	}
	return nil
}

// APIDeps returns the collaborators of the HTTP server
func (c *Container) APIDeps() api.Deps {
	return api.Deps{
		Engine:            c.Engine,
		Extractor:         c.Extractor,
		Dataset:           c.Dataset,
		Validator:         c.Validator,
		Evolver:           c.Evolver,
		Analyzer:          c.Analyzer,
		Detector:          c.Detector,
		Stego:             c.Stego,
		Histories:         c.Histories,
		EvolutionDefaults: c.Config.EvolutionDefaults,
	}
}

// Shutdown releases the database connection
func (c *Container) Shutdown() {
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.Logger.Warn("failed to close database: %v", err)
		}
		c.DB = nil
	}
}
