package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/morita/kabuto/internal/digest"
	"github.com/morita/kabuto/internal/digestconfig"
	"github.com/morita/kabuto/internal/external/gemini"
	"github.com/morita/kabuto/internal/external/kabutan"
	"github.com/morita/kabuto/internal/report"
	"github.com/morita/kabuto/pkg/config"
	"github.com/morita/kabuto/pkg/database"
	"github.com/morita/kabuto/pkg/httputil"
	"github.com/morita/kabuto/pkg/logger"
	"github.com/morita/kabuto/pkg/redis"
)

// pipeline bundles everything a digest run needs
// ⭐ SSOT: 依存関係の組み立てはこのファイルだけ
type pipeline struct {
	cfg          *config.Config
	digestCfg    *digestconfig.Config
	log          *logger.Logger
	db           *database.DB
	redisClient  *redis.Client
	repo         *report.Repository
	orchestrator *digest.Orchestrator
}

// initPipeline wires the full digest pipeline from config
func initPipeline() (*pipeline, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// 2. Initialize logger
	log := logger.New(cfg)
	if verbose {
		log = logger.NewWithWriter(os.Stderr, "debug")
	}

	// 3. Load digest settings (section titles, schedule, threshold)
	digestCfg, err := loadDigestConfig(cfg, log)
	if err != nil {
		return nil, err
	}

	// 4. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// 5. Connect to Redis (no-op when disabled)
	redisClient, err := redis.New(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	// 6. Create external clients
	kabutanHTTP := httputil.NewWithTimeout(cfg, log, cfg.Kabutan.Timeout)
	scraper := kabutan.NewClient(cfg, kabutanHTTP, log)

	geminiHTTP := httputil.New(cfg, log)
	if redisClient.Enabled() {
		// Backstop limiter shared across concurrently running instances
		limiter := redis.NewRateLimiter(redisClient, "kabuto")
		geminiHTTP = geminiHTTP.WithRateLimiter(limiter, redis.RateLimitConfig{
			Key:    "gemini",
			Limit:  60,
			Window: time.Minute,
		})
	}
	analyzer := gemini.NewClient(cfg, geminiHTTP, log)

	// 7. Create repository, builder, cache
	repo := report.NewRepository(db.Pool)
	builder := report.NewBuilder(digestCfg, log)
	cache := redis.NewCache(redisClient, "kabuto")

	// 8. Create orchestrator
	orchestrator := digest.New(digest.Deps{
		Scraper:    scraper,
		Analyzer:   analyzer,
		Repository: repo,
		Builder:    builder,
		Cache:      cache,
		Config:     digestCfg,
		CallDelay:  cfg.Gemini.CallDelay,
		Logger:     log,
	})

	return &pipeline{
		cfg:          cfg,
		digestCfg:    digestCfg,
		log:          log,
		db:           db,
		redisClient:  redisClient,
		repo:         repo,
		orchestrator: orchestrator,
	}, nil
}

// Close releases pooled connections
func (p *pipeline) Close() {
	if p.redisClient != nil {
		p.redisClient.Close()
	}
	if p.db != nil {
		p.db.Close()
	}
}

// loadDigestConfig reads the digest YAML, falling back to built-in
// defaults when no file is present
func loadDigestConfig(cfg *config.Config, log *logger.Logger) (*digestconfig.Config, error) {
	path := cfg.Digest.ConfigPath
	if configFile != "" {
		path = configFile
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.WithField("path", path).Info("Digest config not found, using built-in defaults")
		return digestconfig.Default(), nil
	}

	digestCfg, _, err := digestconfig.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load digest config %s: %w", path, err)
	}

	hash, err := digestconfig.Hash(digestCfg)
	if err != nil {
		return nil, fmt.Errorf("hash digest config: %w", err)
	}
	log.WithFields(map[string]interface{}{
		"path":        path,
		"config_hash": hash[:12],
	}).Info("Digest config loaded")

	return digestCfg, nil
}
