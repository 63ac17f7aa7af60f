package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/GIL794/algorand-ai-contract-creator/internal/artifact"
	"github.com/GIL794/algorand-ai-contract-creator/internal/audit"
	"github.com/GIL794/algorand-ai-contract-creator/internal/cache"
	"github.com/GIL794/algorand-ai-contract-creator/internal/compiler"
	"github.com/GIL794/algorand-ai-contract-creator/internal/config"
	"github.com/GIL794/algorand-ai-contract-creator/internal/database"
	"github.com/GIL794/algorand-ai-contract-creator/internal/deployer"
	"github.com/GIL794/algorand-ai-contract-creator/internal/generator"
	"github.com/GIL794/algorand-ai-contract-creator/internal/ledger"
	"github.com/GIL794/algorand-ai-contract-creator/internal/messaging"
	"github.com/GIL794/algorand-ai-contract-creator/internal/metrics"
	"github.com/GIL794/algorand-ai-contract-creator/internal/provider"
	"github.com/GIL794/algorand-ai-contract-creator/internal/validator"
)

// app wires the pipeline from configuration. Optional backends (Postgres,
// Redis, RabbitMQ) are connected only when configured, and a failure to
// reach one of them is logged and skipped.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	pusher  *metrics.Pusher

	node      *ledger.Client
	audit     *audit.Log
	auditPG   *audit.PostgresSink
	db        *database.Database
	redis     *redis.Client
	publisher messaging.EventPublisher

	generator *generator.Orchestrator
	compiler  *compiler.Service
	deployer  *deployer.Service
	artifacts *artifact.Store

	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (*app, error) {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		pusher:  metrics.NewPusher(cfg.Metrics.PushgatewayURL, cfg.Metrics.Job, m, logger),
	}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	v, err := validator.New(validator.Config{
		EntryMarkers: cfg.Validator.EntryMarkers,
		DenyPatterns: cfg.Validator.DenyPatterns,
		DenyRegexps:  cfg.Validator.DenyRegexps,
	})
	if err != nil {
		return nil, err
	}

	a.node, err = ledger.NewClient(ledger.Config{
		Address: cfg.Algod.Address,
		Token:   cfg.Algod.Token,
		Timeout: cfg.Algod.Timeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := a.openAudit(ctx); err != nil {
		return nil, err
	}

	var compileCache compiler.Cache
	if cfg.Redis.Addr != "" {
		client, err := cache.Connect(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Warn("Compile cache disabled", zap.Error(err))
		} else {
			a.redis = client
			a.closers = append(a.closers, func() { _ = client.Close() })
			compileCache = cache.NewCompileCache(client, cfg.Redis.CacheTTL, logger)
		}
	}

	a.publisher = messaging.Nop{}
	if cfg.RabbitMQ.URL != "" {
		pub, err := messaging.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, logger)
		if err != nil {
			logger.Warn("Deployment events disabled", zap.Error(err))
		} else {
			a.publisher = pub
			a.closers = append(a.closers, func() { _ = pub.Close() })
		}
	}

	registry, err := provider.NewRegistry(cfg.AI, m, logger)
	if err != nil {
		return nil, err
	}
	systemPrompt := ""
	if cfg.AI.SystemPromptPath != "" {
		data, err := os.ReadFile(cfg.AI.SystemPromptPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read system prompt: %w", err)
		}
		systemPrompt = string(data)
	}

	a.generator = generator.New(registry, v, a.audit, m, logger, generator.Config{
		SystemPrompt:   systemPrompt,
		MaxTokens:      cfg.AI.MaxTokens,
		BaseRetryDelay: cfg.AI.BaseRetryDelay,
	})
	a.compiler = compiler.New(a.node, v, compileCache, a.audit, m, logger, compiler.Config{
		TEALVersion: cfg.Algod.TEALVersion,
	})
	a.deployer = deployer.New(a.node, a.publisher, a.audit, m, logger, deployer.Config{
		WaitRounds: cfg.Algod.WaitRounds,
		Explorer:   ledger.Explorer{BaseURL: cfg.Algod.ExplorerURL},
	})
	a.artifacts = artifact.NewStore(cfg.Artifacts.Dir, logger)

	ok = true
	return a, nil
}

func (a *app) openAudit(ctx context.Context) error {
	var sinks []audit.Sink
	if a.cfg.Audit.FilePath != "" {
		fileSink, err := audit.OpenFile(a.cfg.Audit.FilePath)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() { _ = fileSink.Close() })
		sinks = append(sinks, fileSink)
	}

	if a.cfg.Audit.Postgres {
		db, err := database.Open(ctx, a.cfg.Database, a.logger)
		switch {
		case errors.Is(err, database.ErrNotConfigured):
			a.logger.Warn("Postgres audit sink requested without a database DSN")
		case err != nil:
			a.logger.Warn("Postgres audit sink disabled", zap.Error(err))
		default:
			a.db = db
			a.closers = append(a.closers, db.Close)
			a.auditPG = audit.NewPostgresSink(db.Pool, a.logger)
			sinks = append(sinks, a.auditPG)
		}
	}

	a.audit = audit.New(a.logger, a.metrics, sinks...)
	return nil
}

// Close pushes metrics and releases connections in reverse order.
func (a *app) Close() {
	a.pusher.Push()
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
