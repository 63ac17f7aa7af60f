package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GIL794/algorand-ai-contract-creator/internal/api"
	"github.com/GIL794/algorand-ai-contract-creator/internal/metrics"
	"github.com/GIL794/algorand-ai-contract-creator/internal/models"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the generation API over HTTP",
	Long: `Starts the HTTP API used by the web UI: generate, compile and explain
contracts, list audit records and look up balances. Deployment is only
available from the command line.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	m := metrics.New().WithRuntimeCollectors()
	a, err := newApp(ctx, cfg, log, m)
	if err != nil {
		return err
	}
	defer a.Close()

	if round, err := a.node.Ping(ctx); err != nil {
		log.Warn("Algorand node is not reachable", zap.String("address", cfg.Algod.Address), zap.Error(err))
	} else {
		log.Info("Algorand node reachable", zap.String("network", cfg.Algod.Network), zap.Uint64("last_round", round))
	}

	deps := api.Dependencies{
		Generator: a.generator,
		Compiler:  a.compiler,
		Balances:  a.node,
		Artifacts: a.artifacts,
	}
	if a.auditPG != nil {
		deps.Audit = a.auditPG
	}
	handler := api.NewHandler(deps, api.Defaults{
		Provider:    models.Provider(cfg.AI.Provider),
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		MaxRetries:  cfg.AI.MaxRetries,
	}, log)
	router := api.NewRouter(handler, api.RouterOptions{
		Server:  cfg.Server,
		Env:     cfg.Env,
		Metrics: m,
		Redis:   a.redis,
	}, log)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server forced to shutdown", zap.Error(err))
			return err
		}
		return nil
	})

	err = g.Wait()
	log.Info("Server exiting")
	return err
}
