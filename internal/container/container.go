// Package container wires application dependencies from configuration and
// manages their lifecycle.
package container

import (
	"runtime"

	"github.com/jmoiron/sqlx"

	"phonostat/adapters/battery"
	"phonostat/adapters/featurecache"
	"phonostat/adapters/phonetics"
	"phonostat/adapters/postgres"
	"phonostat/app"
	"phonostat/internal"
	"phonostat/internal/builder"
	"phonostat/internal/config"
	"phonostat/internal/errors"
	"phonostat/ports"
)

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	DB *sqlx.DB

	// Core pipeline
	Extractor ports.ExtractorPort
	Cache     ports.FeatureCachePort
	Builder   *builder.Builder
	Battery   ports.BatteryPort

	// Repositories (nil when no database is configured)
	FeatureRepo ports.FeatureRepository
	ResultRepo  ports.ResultRepository

	Service *app.AnalysisService
}

// New builds the dependency graph. source may be nil when every request
// carries inline entities (the HTTP surface does).
func New(cfg *config.Config, source ports.EntitySourcePort) (*Container, error) {
	logger := internal.NewDefaultLogger()

	weights := phonetics.DefaultWeights()
	if cfg.Engine.WeightsFile != "" {
		loaded, err := phonetics.LoadWeights(cfg.Engine.WeightsFile)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load weights file")
		}
		weights = loaded
	}
	extractor := phonetics.New(weights)
	cache := featurecache.New()

	workers := cfg.Engine.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	c := &Container{
		Config:    cfg,
		Logger:    logger,
		Extractor: extractor,
		Cache:     cache,
		Builder:   builder.New(extractor, cache, cfg.Engine.OutlierZThreshold, workers),
		Battery: battery.New(battery.Defaults{
			MinSampleCorrelation: cfg.Engine.MinSampleCorrelation,
			MinGroupSize:         cfg.Engine.MinGroupSize,
			PermutationShuffles:  cfg.Engine.PermutationShuffles,
			BootstrapResamples:   cfg.Engine.BootstrapResamples,
			CVFolds:              cfg.Engine.CVFolds,
			Alpha:                cfg.Engine.Alpha,
			CILevel:              cfg.Engine.CILevel,
			Workers:              workers,
		}),
	}

	if cfg.Database.Enabled {
		db, err := postgres.Connect(cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		if err := postgres.EnsureSchema(db); err != nil {
			db.Close()
			return nil, err
		}
		c.DB = db
		c.FeatureRepo = postgres.NewFeatureRepository(db)
		c.ResultRepo = postgres.NewResultRepository(db)
		logger.Info("result cache database connected")
	}

	c.Service = app.NewAnalysisService(
		source, c.Builder, c.Battery, c.Extractor, c.Cache, c.ResultRepo, logger, workers)
	return c, nil
}

// Close releases held resources
func (c *Container) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
