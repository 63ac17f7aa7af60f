// Package compiler turns a generated program document into node-verified
// bytecode. It never executes the document.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GIL794/algorand-ai-contract-creator/internal/audit"
	"github.com/GIL794/algorand-ai-contract-creator/internal/ledger"
	"github.com/GIL794/algorand-ai-contract-creator/internal/metrics"
	"github.com/GIL794/algorand-ai-contract-creator/internal/models"
	"github.com/GIL794/algorand-ai-contract-creator/internal/program"
	"github.com/GIL794/algorand-ai-contract-creator/internal/teal"
)

// Validator is the structural gate applied before parsing.
type Validator interface {
	Validate(source string) models.ValidationOutcome
}

// Cache stores node compile results keyed by TEAL hash. Implementations
// must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (ledger.CompileResult, bool, error)
	Set(ctx context.Context, key string, res ledger.CompileResult) error
}

type Config struct {
	TEALVersion int
}

type Service struct {
	node      ledger.Node
	validator Validator
	cache     Cache
	audit     audit.Recorder
	metrics   *metrics.Metrics
	logger    *zap.Logger
	version   int
	now       func() time.Time
}

// New returns a Service. cache and rec may be nil.
func New(node ledger.Node, v Validator, cache Cache, rec audit.Recorder, m *metrics.Metrics, logger *zap.Logger, cfg Config) *Service {
	if rec == nil {
		rec = audit.Nop{}
	}
	version := cfg.TEALVersion
	if version == 0 {
		version = teal.DefaultVersion
	}
	return &Service{
		node:      node,
		validator: v,
		cache:     cache,
		audit:     rec,
		metrics:   m,
		logger:    logger.Named("compiler"),
		version:   version,
		now:       time.Now,
	}
}

// Compile builds the approval program, or the whole program in signature mode.
func (s *Service) Compile(ctx context.Context, source string, mode teal.Mode) (*Artifact, error) {
	return s.compile(ctx, source, mode, func(doc *program.Document) (*program.Expr, error) {
		return doc.Approval()
	})
}

// CompileClear builds the document's clear_program, or an approve-only
// program when the document has none.
func (s *Service) CompileClear(ctx context.Context, source string) (*Artifact, error) {
	return s.compile(ctx, source, teal.ModeApplication, func(doc *program.Document) (*program.Expr, error) {
		e, ok, err := doc.Clear()
		if err != nil {
			return nil, err
		}
		if !ok {
			return program.DefaultClear(), nil
		}
		return e, nil
	})
}

func (s *Service) compile(ctx context.Context, source string, mode teal.Mode, pick func(*program.Document) (*program.Expr, error)) (*Artifact, error) {
	sourceHash := sha256Hex(source)
	log := s.logger.With(zap.String("mode", mode.String()), zap.String("source_hash", sourceHash[:12]))

	artifact, err := s.build(ctx, source, sourceHash, mode, pick, log)
	rec := audit.Record{
		Stage:   audit.StageCompilation,
		Summary: fmt.Sprintf("%s compilation", mode),
		Snippet: source,
	}
	if err != nil {
		kind := KindOf(err)
		s.metrics.Compile(mode.String(), string(kind))
		rec.Outcome, rec.Error = audit.OutcomeFailure, err.Error()
		s.audit.Record(ctx, rec)
		log.Warn("Compilation failed", zap.String("kind", string(kind)), zap.Error(err))
		return nil, err
	}

	s.metrics.Compile(mode.String(), "ok")
	rec.Outcome, rec.ContentHash = audit.OutcomeSuccess, artifact.ContentHash
	if artifact.Name != "" {
		rec.Summary = fmt.Sprintf("%s compilation of %s", mode, artifact.Name)
	}
	s.audit.Record(ctx, rec)
	log.Info("Compilation succeeded", zap.String("hash", artifact.ContentHash), zap.Int("bytes", len(artifact.Bytecode)))
	return artifact, nil
}

func (s *Service) build(ctx context.Context, source, sourceHash string, mode teal.Mode, pick func(*program.Document) (*program.Expr, error), log *zap.Logger) (*Artifact, error) {
	if outcome := s.validator.Validate(source); !outcome.Valid {
		return nil, newError(KindValidation, errors.New(outcome.Reason))
	}

	doc, err := program.Parse(source)
	if err != nil {
		return nil, newError(KindSyntax, err)
	}
	expr, err := pick(doc)
	if err != nil {
		return nil, newError(KindSyntax, err)
	}

	tealSource, err := teal.Lower(expr, teal.Options{Mode: mode, Version: s.version})
	if err != nil {
		return nil, newError(KindLowering, err)
	}

	res, err := s.assemble(ctx, tealSource, log)
	if err != nil {
		if errors.Is(err, ledger.ErrBadRequest) {
			return nil, newError(KindLowering, err)
		}
		return nil, newError(KindNetwork, err)
	}

	return &Artifact{
		Mode:         mode,
		Name:         doc.Name,
		TEAL:         tealSource,
		Bytecode:     res.Bytecode,
		ContentHash:  res.Hash,
		SourceHash:   sourceHash,
		CompiledAt:   s.now().UTC(),
		GlobalSchema: doc.GlobalSchema,
		LocalSchema:  doc.LocalSchema,
		minted:       s,
	}, nil
}

// assemble asks the node for bytecode, consulting the cache first. Cache
// failures only cost a round trip.
func (s *Service) assemble(ctx context.Context, tealSource string, log *zap.Logger) (ledger.CompileResult, error) {
	key := sha256Hex(tealSource)
	if s.cache != nil {
		res, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			log.Warn("Compile cache lookup failed", zap.Error(err))
		case ok:
			log.Debug("Compile cache hit", zap.String("key", key))
			return res, nil
		}
	}

	res, err := s.node.Compile(ctx, tealSource)
	if err != nil {
		return ledger.CompileResult{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, res); err != nil {
			log.Warn("Compile cache store failed", zap.Error(err))
		}
	}
	return res, nil
}
